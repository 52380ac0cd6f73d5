package explain

import (
	"strings"

	"github.com/gift-practice/giftpractice/internal/gift"
)

// BuildPrompt assembles the generation prompt: the user's template followed
// by the question text and its options as a bullet list.
func BuildPrompt(template string, q *gift.Question) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(template))
	b.WriteString("\n\nQuestion:\n")
	b.WriteString(q.Text)
	b.WriteString("\n\nPossible answers:\n")
	for _, opt := range q.Options {
		b.WriteString("- ")
		b.WriteString(opt.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
