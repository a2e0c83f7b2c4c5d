package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/spigell/atsctl/internal/ats"
)

// ErrNoText is returned when a file carries no extractable text layer.
var ErrNoText = errors.New("no text layer found")

var (
	xmlTag  = regexp.MustCompile(`<[^>]+>`)
	xmlPara = regexp.MustCompile(`</w:p>`)
)

type ocrStage struct {
	disabled bool
	reason   string
}

// NewOCR creates the text extraction stage. Documents that already carry
// text skip extraction.
func NewOCR() Stage {
	return &ocrStage{}
}

func (s *ocrStage) Name() string { return "OCR" }

func (s *ocrStage) Disable(reason string) {
	s.disabled = true
	s.reason = reason
}

func (s *ocrStage) IsEnabled() bool { return !s.disabled }

func (s *ocrStage) Apply(_ context.Context, _ Deps, doc *Doc) (ats.PipelineStep, error) {
	step := ats.PipelineStep{Name: s.Name(), Status: ats.StepCompleted}

	if strings.TrimSpace(doc.RawText) != "" {
		step.Note = "Text input"
		return step, nil
	}

	text, err := extractText(doc.ContentType, doc.Content)
	if err != nil {
		return step, err
	}
	if strings.TrimSpace(text) == "" {
		return step, ErrNoText
	}

	doc.RawText = text
	step.Note = doc.ContentType
	return step, nil
}

func (s *ocrStage) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}

func extractText(contentType string, content []byte) (string, error) {
	switch contentType {
	case ats.MIMEPDF:
		return pdfText(content)
	case ats.MIMEDOCX:
		return docxText(content)
	default:
		return "", fmt.Errorf("cannot extract text from %s: %w", contentType, ErrNoText)
	}
}

// pdfText reads the text layer of every page. The reader panics on some
// malformed object graphs, so that is reported like any other unreadable file.
func pdfText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v: %w", r, ErrNoText)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %v: %w", err, ErrNoText)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		// A page that fails to decode is skipped; the others may still carry text.
		plain, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if plain = cleanText(plain); plain != "" {
			pages = append(pages, plain)
		}
	}

	return strings.Join(pages, "\n"), nil
}

// cleanText trims every line and drops the empty ones.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func docxText(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range archive.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}
		text := xmlPara.ReplaceAllString(string(data), "\n")
		return strings.TrimSpace(xmlTag.ReplaceAllString(text, "")), nil
	}

	return "", ErrNoText
}
