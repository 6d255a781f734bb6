package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"examstruct/internal/document"
)

// PDFParser handles PDF files. It tries the Go library first, then falls
// back to pdftotext if available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "examstruct-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPDFPages(tmpPath)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotextPages(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pages, nil
}

func extractPDFPages(path string) ([]document.Page, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []document.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" && !pageHasImages(page) {
			continue
		}
		pages = append(pages, document.Page{
			Number:    i,
			Text:      text,
			HasImages: pageHasImages(page),
			HasMath:   DetectMath(text),
		})
	}
	return pages, nil
}

// pageHasImages checks the page's XObject resources for image content.
func pageHasImages(page pdflib.Page) bool {
	res := page.V.Key("Resources")
	if res.IsNull() {
		return false
	}
	xobj := res.Key("XObject")
	if xobj.IsNull() {
		return false
	}
	for _, key := range xobj.Keys() {
		obj := xobj.Key(key)
		if obj.Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}

func extractPdftotextPages(path string) ([]document.Page, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}

	var pages []document.Page
	// pdftotext separates pages with form feeds.
	for i, part := range strings.Split(string(out), "\f") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pages = append(pages, document.Page{
			Number:  i + 1,
			Text:    part,
			HasMath: DetectMath(part),
		})
	}
	return pages, nil
}
