package assistant

import "strings"

const (
	promptPreamble   = "You are a professional medical data analyst.\nHere is a preview of the uploaded dataset:"
	promptTransition = "Now respond professionally and insightfully to this question:"
)

// ComposePrompt joins the instruction preamble, the dataset preview, the
// transition phrase and the question, in that order. The question is
// embedded verbatim.
func ComposePrompt(preview, question string) string {
	var b strings.Builder
	b.Grow(len(promptPreamble) + len(preview) + len(promptTransition) + len(question) + 8)
	b.WriteString("\n")
	b.WriteString(promptPreamble)
	b.WriteString("\n\n")
	b.WriteString(preview)
	b.WriteString("\n\n")
	b.WriteString(promptTransition)
	b.WriteString("\n")
	b.WriteString(question)
	b.WriteString("\n")
	return b.String()
}
