package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"
)

// FakeEmbedder hashes lowercase words into a fixed number of buckets, so texts
// sharing words land close together under cosine similarity.
type FakeEmbedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

func (f *FakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *FakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeEmbedder) vector(text string) []float32 {
	dim := f.Dim
	if dim == 0 {
		dim = 64
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[int(h.Sum32())%dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / math.Sqrt(norm))
	}
	return vec
}

// FakeCompleter records prompts and answers them with Respond.
type FakeCompleter struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (f *FakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.Respond == nil {
		return "ok", nil
	}
	return f.Respond(prompt)
}

func (f *FakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *FakeCompleter) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

const (
	SampleResume = `Jane Doe
Senior Software Engineer
Experience: 8 years of work experience building distributed systems in Go and Python.
Education: BSc Computer Science, University of Lagos.
Skills: Go, Kubernetes, PostgreSQL, gRPC, AWS.`

	SampleRole = `Role: Backend Engineer
We are hiring a backend engineer with 5+ years of experience in Go.
Requirements: Go, PostgreSQL, Kubernetes, cloud infrastructure.
Nice to have: gRPC, observability tooling.`
)
