// Package pattern infers exercise numbering conventions directly from
// document text, with no language-specific dictionary. It finds a recurring
// "keyword + number" pair (any script) and falls back to structural
// numbering patterns when no convention emerges.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
)

// wordNumberRe tokenizes "word number" occurrences. The word class covers
// Latin (including extended ranges), CJK ideographs and Kana, so the
// detector works across scripts.
var wordNumberRe = regexp.MustCompile(`([\p{Latin}\p{Han}\p{Hiragana}\p{Katakana}]+)[ \t]+(\d+)`)

// Compiled is a detected marker convention: the keyword plus a regex
// anchored at line start matching "keyword N" and capturing N.
type Compiled struct {
	Keyword string
	Re      *regexp.Regexp
}

// DetectKeyword statistically infers the document's marker keyword: the word
// that precedes the most distinct numbers (at least two). Ties break to the
// word seen first. Returns nil when no word qualifies, signalling the caller
// to try structural patterns instead.
func DetectKeyword(text string, prefixLimit int) *Compiled {
	if prefixLimit > 0 && len(text) > prefixLimit {
		text = text[:prefixLimit]
	}

	type stats struct {
		numbers map[string]bool
		first   int
	}
	words := make(map[string]*stats)

	for _, m := range wordNumberRe.FindAllStringSubmatchIndex(text, -1) {
		word := strings.ToLower(text[m[2]:m[3]])
		number := text[m[4]:m[5]]
		s, ok := words[word]
		if !ok {
			s = &stats{numbers: make(map[string]bool), first: m[0]}
			words[word] = s
		}
		s.numbers[number] = true
	}

	var best string
	bestCount, bestFirst := 0, 0
	for word, s := range words {
		n := len(s.numbers)
		if n < 2 {
			continue
		}
		if n > bestCount || (n == bestCount && s.first < bestFirst) {
			best = word
			bestCount = n
			bestFirst = s.first
		}
	}
	if best == "" {
		return nil
	}

	re, err := regexp.Compile(`(?mi)^[ \t]*(` + regexp.QuoteMeta(best) + `)[ \t]+(\d+(?:\.\d+)*)`)
	if err != nil {
		return nil
	}
	return &Compiled{Keyword: best, Re: re}
}

// Found is a marker located by pattern scanning, with its exact offset in
// the scanned text.
type Found struct {
	Offset int
	Number string
	Marker string
}

// ScanKeyword applies a detected keyword convention to the full text.
func ScanKeyword(text string, p *Compiled) []Found {
	if p == nil {
		return nil
	}
	var out []Found
	for _, m := range p.Re.FindAllStringSubmatchIndex(text, -1) {
		// Anchor at the keyword, not the leading indentation.
		out = append(out, Found{
			Offset: m[2],
			Number: text[m[4]:m[5]],
			Marker: text[m[2]:m[5]],
		})
	}
	return out
}

// Structural numbering fallbacks: bare "N.", "N)", "[N]" and roman numerals
// at line start. Tried only when no keyword convention was detected.
var structuralRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[ \t]*(\d+)[\.\)][ \t]`),
	regexp.MustCompile(`(?m)^[ \t]*\[(\d+)\][ \t]*`),
	regexp.MustCompile(`(?m)^[ \t]*([ivxlcdm]+|[IVXLCDM]+)[\.\)][ \t]`),
}

// ScanStructural tries each structural pattern in order and returns the
// first one whose matches carve the text into spans of at least minSpan
// characters. The span-length filter rejects disconnected list items that
// merely look like numbering.
func ScanStructural(text string, minSpan int) []Found {
	for _, re := range structuralRes {
		var found []Found
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			found = append(found, Found{
				Offset: m[2],
				Number: text[m[2]:m[3]],
				Marker: strings.TrimSpace(text[m[0]:m[1]]),
			})
		}
		if len(found) < 2 {
			continue
		}
		if minSpanLength(found, len(text)) >= minSpan {
			return found
		}
	}
	return nil
}

func minSpanLength(found []Found, textLen int) int {
	shortest := textLen
	for i, f := range found {
		end := textLen
		if i+1 < len(found) {
			end = found[i+1].Offset
		}
		if n := end - f.Offset; n < shortest {
			shortest = n
		}
	}
	return shortest
}

// RomanValue parses a roman numeral, so structural markers like "iv)" get a
// usable exercise number. Returns 0 for invalid input.
func RomanValue(s string) int {
	values := map[byte]int{'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000}
	s = strings.ToLower(s)
	total, prev := 0, 0
	for i := len(s) - 1; i >= 0; i-- {
		v, ok := values[s[i]]
		if !ok {
			return 0
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	return total
}

// NormalizeNumber turns a structural marker capture into a flat exercise
// number: decimal captures pass through, roman numerals convert.
func NormalizeNumber(s string) string {
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	if v := RomanValue(s); v > 0 {
		return strconv.Itoa(v)
	}
	return s
}
