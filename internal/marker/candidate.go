package marker

// Candidate is an approximately-specified exercise marker, proposed by the
// classification oracle or by pattern detection. Its page and line are
// hints, never trusted positions.
type Candidate struct {
	Number       string // "2" for a parent, "2a" for a sub-question
	Marker       string // verbatim marker text as it appears in the document
	Page         int    // hinted start page, 1-based
	EndPage      int    // hinted end page; 0 means same as Page
	LineHint     int    // approximate line on the page, 1-based
	IsSub        bool
	ParentNumber string // parent exercise number when IsSub
	SubMarker    string // "a", "b", "i", "ii" when IsSub
}

// HintedEndPage returns the end-page hint, defaulting to the start page.
func (c Candidate) HintedEndPage() int {
	if c.EndPage >= c.Page {
		return c.EndPage
	}
	return c.Page
}

// Resolved is a Candidate whose document-wide start offset has been
// confirmed. Page reflects the page the marker was actually found on,
// which may differ from the original hint.
type Resolved struct {
	Candidate
	Start int
}
