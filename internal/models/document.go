package models

import "time"

// Kind is the declared format of an uploaded document.
type Kind string

const (
	KindUnknown Kind = ""
	KindText    Kind = "text"
	KindPDF     Kind = "pdf"
	KindDOCX    Kind = "docx"
	KindHTML    Kind = "html"
)

// Source tells which upload a document or chunk came from.
type Source string

const (
	SourceResume Source = "resume"
	SourceRole   Source = "role"
	SourceData   Source = "data"
)

type Document struct {
	ID     string
	Name   string
	Kind   Kind
	Source Source
	Data   []byte
}

// Empty reports whether nothing was uploaded.
func (d *Document) Empty() bool {
	return d == nil || len(d.Data) == 0
}

type ExtractedDocument struct {
	Document
	Text string
}

// Chunk is a rune-offset slice [Start, End) of a document's extracted text.
type Chunk struct {
	ID        string
	Source    Source
	Index     int
	Start     int
	End       int
	Text      string
	Embedding []float32
}

type ScoredChunk struct {
	Chunk
	Score float32
}

type AttributeAnswer struct {
	Label string
	Text  string
}

// StreamChunk is one piece of a streamed answer. A chunk with Err set ends
// the stream.
type StreamChunk struct {
	Text string
	Err  error
}

type ReportKind string

const (
	ReportAttributes    ReportKind = "attributes"
	ReportComprehensive ReportKind = "comprehensive"
)

type Report struct {
	ID        string
	Kind      ReportKind
	Rows      []AttributeAnswer
	Summary   string
	Score     int
	Body      string
	CreatedAt time.Time
}
