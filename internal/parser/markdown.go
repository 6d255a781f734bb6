package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"examstruct/internal/document"
)

// MarkdownParser handles Markdown files using goldmark. Top-level headings
// delimit pages; a file without headings becomes a single page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]document.Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	var sections []string
	var current bytes.Buffer

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sections = append(sections, s)
		}
		current.Reset()
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			// Pages break on h1/h2; deeper headings stay inline so
			// sub-questions do not split their exercise apart.
			if node.Level <= 2 {
				flush()
			}
			title := string(node.Text(src))
			if title != "" {
				if current.Len() > 0 {
					current.WriteString("\n\n")
				}
				current.WriteString(title)
			}
		default:
			t := mdText(n, src)
			if t != "" {
				if current.Len() > 0 {
					current.WriteString("\n\n")
				}
				current.WriteString(t)
			}
		}
	}
	flush()

	pages := make([]document.Page, 0, len(sections))
	for i, s := range sections {
		pages = append(pages, document.Page{
			Number:  i + 1,
			Text:    s,
			HasMath: DetectMath(s),
		})
	}
	return pages, nil
}

// mdText gets the text content of a goldmark AST node.
func mdText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	// Also handle inline children.
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			buf.WriteString(mdText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
