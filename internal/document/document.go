// Package document turns uploaded resume files into plain text.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtraction        = errors.New("document text extraction failed")
)

var (
	paragraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:cr/>`)
	tabTag       = regexp.MustCompile(`<w:tab/>`)
	anyTag       = regexp.MustCompile(`<[^>]*>`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// DetectMIME sniffs the media type of data, without parameters.
func DetectMIME(data []byte) string {
	return baseType(mimetype.Detect(data).String())
}

// ReadFile reads path, sniffs its type and extracts its text.
func ReadFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read %q: %w", path, err)
	}
	mimeType := DetectMIME(data)
	text, err := ExtractText(data, mimeType)
	return text, mimeType, err
}

// ExtractText returns the plain text of a PDF or DOCX document.
func ExtractText(data []byte, mimeType string) (string, error) {
	switch baseType(mimeType) {
	case MIMEPDF:
		return extractPDF(data)
	case MIMEDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrExtraction, err)
	}

	fonts := make(map[string]*pdf.Font)
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", ErrExtraction, i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx: %v", ErrExtraction, err)
	}
	defer r.Close()

	return bodyText(r.Editable().GetContent()), nil
}

// bodyText strips WordprocessingML markup, keeping one line per paragraph.
func bodyText(raw string) string {
	if i := strings.Index(raw, "<w:body"); i >= 0 {
		raw = raw[i:]
	}
	s := paragraphEnd.ReplaceAllString(raw, "\n")
	s = tabTag.ReplaceAllString(s, "\t")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	s = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

func baseType(mimeType string) string {
	t, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}
