package parser

import (
	"io"
	"strings"

	"examstruct/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages; a file
// without any becomes a single page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pages []document.Page
	for _, part := range strings.Split(string(data), "\f") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pages = append(pages, document.Page{
			Number:  len(pages) + 1,
			Text:    part,
			HasMath: DetectMath(part),
		})
	}
	return pages, nil
}
