package oracle

import (
	"fmt"
	"strings"

	"examstruct/internal/document"
)

// DefaultMaxPromptChars bounds the document text included in a proposal
// prompt, roughly 12k tokens.
const DefaultMaxPromptChars = 50000

const proposalSystemPrompt = `You are an expert at analyzing academic documents in ANY language. Your task is to identify individual exercises and problems in exam papers, homework sheets, and exercise collections.

RULES:
1. An exercise is a problem a student must solve.
2. Sub-questions (a, b, c or i, ii, iii or 1.1, 1.2) are separate entries: one entry for the parent, plus one per sub-question with is_sub_question=true, parent_exercise and sub_question_marker set.
3. Instructions, headers, and administrative text are NOT exercises.
4. Use the "--- Page N ---" banners to determine page numbers.
5. Copy each exercise marker EXACTLY as it appears in the document, in its original language. Never translate or rephrase it.

Return ONLY valid JSON, no explanations.`

const proposalUserTemplate = `Analyze this academic document and identify each distinct exercise/problem.

For each exercise (including sub-questions), provide:
- exercise_number: the identifier ("1", "2", "2a", "3")
- page: the page number where the exercise STARTS (see the "--- Page N ---" banners)
- end_page: the page number where the exercise content ENDS (same as page if single-page; never include solution pages; if unsure, set end_page = page)
- marker: the EXACT marker text as written in the document, copied verbatim
- line_hint: approximate line number within the page (1 = top), used to disambiguate repeated markers
- is_sub_question: true for a sub-part, false otherwise
- parent_exercise: the parent exercise number for sub-questions ("2" for "2a"), null otherwise
- sub_question_marker: just the letter or numeral ("a", "b", "i"), null otherwise

DOCUMENT:
---
%s
---

Return a JSON object:
{
  "exercises": [
    {"exercise_number": "1", "page": 1, "end_page": 1, "marker": "<exact marker>", "line_hint": 5, "is_sub_question": false, "parent_exercise": null, "sub_question_marker": null}
  ],
  "total_count": 1,
  "notes": "observations about the document structure"
}

If no exercises are found, return: {"exercises": [], "total_count": 0, "notes": "reason"}`

// buildProposalPrompt renders the document with page banners so the model
// can attribute markers to pages. The banners exist only in the prompt; the
// canonical coordinate space never contains them.
func buildProposalPrompt(doc *document.Document, maxChars int) string {
	var sb strings.Builder
	for i, p := range doc.Pages() {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "--- Page %d ---\n\n", p.Number)
		sb.WriteString(p.Text)
		if sb.Len() > maxChars {
			break
		}
	}
	text := sb.String()
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return fmt.Sprintf(proposalUserTemplate, text)
}

const matchSystemPrompt = `Match exam exercises with their solution pages. Be conservative - only match when confident.`

// buildMatchPrompt lists unmatched exercises and short previews of the
// remaining orphan pages.
func buildMatchPrompt(exercises []ExerciseRef, pages []PagePreview) string {
	var sb strings.Builder
	sb.WriteString("Match each exercise with its solution page.\n\nEXERCISES:\n")
	for _, ex := range exercises {
		fmt.Fprintf(&sb, "Exercise %s (page %d)\n", ex.Number, ex.Page)
	}
	sb.WriteString("\nCANDIDATE SOLUTION PAGES:\n")
	for _, p := range pages {
		preview := strings.ReplaceAll(p.Preview, "\n", " ")
		fmt.Fprintf(&sb, "Page %d: %s...\n", p.Page, preview)
	}
	sb.WriteString(`
Return a JSON array of matches:
[{"exercise_number": "1", "solution_page": 2}]

Only include matches you are confident about. Return an empty array if unsure.`)
	return sb.String()
}
