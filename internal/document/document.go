package document

import (
	"fmt"
	"sort"
	"strings"
)

// PageSeparator joins page texts in the combined document text. The
// PositionIndex accounts for its length at every page boundary.
const PageSeparator = "\n\n"

// Page is one rendered page of an exam document, as produced by the
// upstream renderer. Immutable once built.
type Page struct {
	Number    int    // 1-based
	Text      string
	HasImages bool
	HasMath   bool
}

// Document holds the ordered pages of one exam plus the combined text
// and the offset index derived from it. Built once, read-only afterward.
type Document struct {
	pages []Page
	text  string
	index *PositionIndex
}

// New validates the pages and builds the combined text and index.
// A page with a non-positive number is a contract violation from the
// renderer and fails fast.
func New(pages []Page) (*Document, error) {
	for i, p := range pages {
		if p.Number <= 0 {
			return nil, fmt.Errorf("page at index %d: invalid page number %d", i, p.Number)
		}
		if i > 0 && p.Number <= pages[i-1].Number {
			return nil, fmt.Errorf("page at index %d: page number %d not increasing", i, p.Number)
		}
	}

	d := &Document{pages: pages}
	var sb strings.Builder
	idx := &PositionIndex{}
	for i, p := range pages {
		if i > 0 {
			sb.WriteString(PageSeparator)
		}
		idx.starts = append(idx.starts, sb.Len())
		idx.numbers = append(idx.numbers, p.Number)
		sb.WriteString(p.Text)
	}
	d.text = sb.String()
	idx.docLen = len(d.text)
	d.index = idx
	return d, nil
}

// Text returns the combined document text. Character offsets into this
// string are the canonical identity for all derived entities.
func (d *Document) Text() string { return d.text }

// Index returns the page/offset index.
func (d *Document) Index() *PositionIndex { return d.index }

// Pages returns the underlying pages in order.
func (d *Document) Pages() []Page { return d.pages }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Page returns the page with the given number, if present.
func (d *Document) Page(number int) (Page, bool) {
	for _, p := range d.pages {
		if p.Number == number {
			return p, true
		}
	}
	return Page{}, false
}

// PageText returns the text of the page with the given number.
func (d *Document) PageText(number int) (string, bool) {
	p, ok := d.Page(number)
	return p.Text, ok
}

// LastPageNumber returns the highest page number, or 0 for an empty document.
func (d *Document) LastPageNumber() int {
	if len(d.pages) == 0 {
		return 0
	}
	return d.pages[len(d.pages)-1].Number
}

// PositionIndex maps between document-wide character offsets and page
// numbers. starts[i] is the offset where page numbers[i] begins in the
// combined text.
type PositionIndex struct {
	starts  []int
	numbers []int
	docLen  int
}

// PageStart returns the offset at which the given page's text begins.
// Unknown pages map to the document start.
func (x *PositionIndex) PageStart(number int) int {
	for i, n := range x.numbers {
		if n == number {
			return x.starts[i]
		}
	}
	return 0
}

// PageOf returns the page number owning the given offset via predecessor
// lookup. Offsets past the end clamp to the last known page.
func (x *PositionIndex) PageOf(offset int) int {
	if len(x.starts) == 0 {
		return 0
	}
	// First boundary strictly greater than offset; its predecessor owns it.
	i := sort.Search(len(x.starts), func(i int) bool { return x.starts[i] > offset })
	if i == 0 {
		return x.numbers[0]
	}
	return x.numbers[i-1]
}

// DocLen returns the length of the combined text.
func (x *PositionIndex) DocLen() int { return x.docLen }
