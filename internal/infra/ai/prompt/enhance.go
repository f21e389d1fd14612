package prompt

import "fmt"

// EnhanceSystemPrompt instructs the model to clean raw OCR/PDF output
// without inventing content.
func EnhanceSystemPrompt() string {
	return `You clean up text extracted from scanned exam question papers.
Fix OCR mistakes, broken words and misplaced line breaks. Keep question
numbering, marks and years exactly as they appear. Do not answer, summarize
or add questions. Return only the corrected plain text, no markdown.`
}

// EnhanceUserPrompt wraps the raw text for the enhancement call.
func EnhanceUserPrompt(raw string) string {
	return fmt.Sprintf("Clean this extracted question paper text:\n\n%s", raw)
}
