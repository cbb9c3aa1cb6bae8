// Package extractor turns uploaded resume and role documents into plain text.
//
// Valid UTF-8 content is returned untouched. Anything else is handed to a PDF
// reader, with DOCX recognised by its magic bytes. HTML is only parsed when
// declared as such.
package extractor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xhad/brightpath/internal/models"
)

// ErrUnreadable is returned when a document is neither text nor a readable PDF.
var ErrUnreadable = errors.New("document could not be decoded as text or PDF")

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text of doc. Valid text is returned unchanged.
func (e *Extractor) Extract(doc models.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrUnreadable, displayName(doc))
	}

	switch {
	case bytes.HasPrefix(doc.Data, pdfMagic):
		return e.extractPDF(doc)
	case bytes.HasPrefix(doc.Data, zipMagic):
		return e.extractDocx(doc)
	case utf8.Valid(doc.Data):
		if doc.Kind == models.KindHTML {
			return extractHTML(bytes.NewReader(doc.Data))
		}
		return string(doc.Data), nil
	default:
		return e.extractPDF(doc)
	}
}

func (e *Extractor) extractPDF(doc models.Document) (text string, err error) {
	// the pdf reader panics on some malformed object streams
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: malformed pdf: %v", ErrUnreadable, displayName(doc), r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: failed to read pdf: %v", ErrUnreadable, displayName(doc), err)
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: %s: page %d: %v", ErrUnreadable, displayName(doc), i, err)
		}
		if textBuilder.Len() > 0 && pageText != "" {
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString(pageText)
	}

	if strings.TrimSpace(textBuilder.String()) == "" {
		return "", fmt.Errorf("%w: %s: pdf contains no extractable text", ErrUnreadable, displayName(doc))
	}
	return textBuilder.String(), nil
}

func (e *Extractor) extractDocx(doc models.Document) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: failed to parse docx: %v", ErrUnreadable, displayName(doc), err)
	}
	defer r.Close()

	text, err := wordXMLText(r.Editable().GetContent())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnreadable, displayName(doc), err)
	}
	return text, nil
}

// wordXMLText keeps the runs of a WordprocessingML body, one line per paragraph.
func wordXMLText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func extractHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse html: %v", ErrUnreadable, err)
	}
	return MainContent(doc), nil
}

// MainContent returns the visible text of the page's main content area,
// falling back to the whole body.
func MainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, footer").Remove()

	selectors := []string{
		"main",
		"article",
		"[role=main]",
		".job-description",
		"#job-description",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if strings.TrimSpace(content) == "" {
		content = doc.Find("body").Text()
	}

	return strings.Join(strings.Fields(content), " ")
}

// DetectKind guesses a document's kind from its name and leading bytes.
func DetectKind(name string, data []byte) models.Kind {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return models.KindPDF
	case bytes.HasPrefix(data, zipMagic):
		return models.KindDOCX
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return models.KindPDF
	case ".docx":
		return models.KindDOCX
	case ".html", ".htm":
		return models.KindHTML
	case ".txt", ".md":
		return models.KindText
	}

	if looksLikeHTML(data) {
		return models.KindHTML
	}
	return models.KindText
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func displayName(doc models.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	if doc.Source != "" {
		return string(doc.Source)
	}
	return "document"
}
