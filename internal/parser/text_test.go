package parser

import (
	"strings"
	"testing"
)

func TestTextParser_SinglePage(t *testing.T) {
	p := &TextParser{}
	pages, err := p.Parse(strings.NewReader("just one block of text"), "exam.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 || pages[0].Text != "just one block of text" {
		t.Errorf("unexpected page: %+v", pages[0])
	}
}

func TestTextParser_FormFeedPages(t *testing.T) {
	p := &TextParser{}
	pages, err := p.Parse(strings.NewReader("page one\fpage two\f\fpage three"), "exam.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages (empty part skipped), got %d", len(pages))
	}
	if pages[2].Number != 3 || pages[2].Text != "page three" {
		t.Errorf("unexpected third page: %+v", pages[2])
	}
}

func TestTextParser_MathFlag(t *testing.T) {
	p := &TextParser{}
	pages, err := p.Parse(strings.NewReader("compute $x^2 + 1$ for all x"), "exam.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || !pages[0].HasMath {
		t.Error("expected math flag on page with inline LaTeX")
	}
}

func TestDetectMath(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{`$$\int_0^1 x dx$$`, true},
		{`inline $a+b$ math`, true},
		{`\begin{equation}E=mc^2\end{equation}`, true},
		{`\frac{a}{b}`, true},
		{`\sum over terms`, true},
		{`the greek letter \alpha appears`, true},
		{`plain prose about money, $5 total`, false},
		{`no math here`, false},
	}
	for _, c := range cases {
		if got := DetectMath(c.text); got != c.want {
			t.Errorf("DetectMath(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestForFile(t *testing.T) {
	for _, name := range []string{"a.txt", "b.md", "c.html", "d.pdf", "e.docx"} {
		if _, err := ForFile(name); err != nil {
			t.Errorf("expected parser for %s, got error: %v", name, err)
		}
	}
	if _, err := ForFile("archive.zip"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestIsSupportedExtension(t *testing.T) {
	if !IsSupportedExtension("exam.PDF") {
		t.Error("expected case-insensitive extension check")
	}
	if IsSupportedExtension("exam.csv") {
		t.Error("expected csv to be unsupported")
	}
}
