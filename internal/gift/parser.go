package gift

import (
	"os"
	"regexp"
	"strings"
)

// Option is one answer choice of a multiple-choice question.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is one parsed GIFT question. Questions are immutable after parsing.
type Question struct {
	Number   string   `json:"number"`
	Text     string   `json:"text"`
	Options  []Option `json:"options"`
	Category string   `json:"category,omitempty"`
}

// CorrectIndex returns the index of the first option marked correct, or -1.
// With multiple correct options only the first one counts; zero correct
// options yield -1 and are reported by Validate, not here.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.IsCorrect {
			return i
		}
	}
	return -1
}

// Bank is the result of parsing one GIFT file: the ordered question list plus
// an index from category name to the questions tagged with it.
type Bank struct {
	File       string                 `json:"file,omitempty"`
	Questions  []Question             `json:"questions"`
	Categories map[string][]*Question `json:"-"`

	// categoryOrder preserves first-seen order for listing.
	categoryOrder []string
}

// CategoryNames returns category names in first-seen order.
func (b *Bank) CategoryNames() []string {
	out := make([]string, len(b.categoryOrder))
	copy(out, b.categoryOrder)
	return out
}

// QuestionsByCategory returns the questions tagged with category, in file order.
func (b *Bank) QuestionsByCategory(category string) []*Question {
	return b.Categories[category]
}

// FindQuestion returns the question with the given number, or nil.
func (b *Bank) FindQuestion(number string) *Question {
	for i := range b.Questions {
		if b.Questions[i].Number == number {
			return &b.Questions[i]
		}
	}
	return nil
}

var (
	headerRe = regexp.MustCompile(`^::(.+?)::(.*)$`)
	tagRe    = regexp.MustCompile(`\[tags:\s*topico="([^"]+)"\]`)
	tagCutRe = regexp.MustCompile(`\s*\[tags:[^\]]+\]`)
)

// ParseFile reads a UTF-8 GIFT file and parses it.
func ParseFile(path string) (*Bank, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	bank := Parse(string(b))
	bank.File = path
	return bank, nil
}

// Parse converts GIFT text into a Bank with a single forward scan over lines.
// Malformed blocks are dropped silently: the format is free-form authored
// input and best-effort leniency is the intended policy.
func Parse(content string) *Bank {
	bank := &Bank{Categories: map[string][]*Question{}}
	lines := strings.Split(content, "\n")

	currentCategory := ""
	ensureCategory := func(name string) {
		if _, ok := bank.Categories[name]; !ok {
			bank.Categories[name] = nil
			bank.categoryOrder = append(bank.categoryOrder, name)
		}
	}

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if after, ok := strings.CutPrefix(line, "$CATEGORY:"); ok {
			currentCategory = strings.TrimSpace(after)
			ensureCategory(currentCategory)
			continue
		}

		if !strings.HasPrefix(line, "::") {
			continue
		}
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		numberFull := strings.TrimSpace(m[1])
		remainder := strings.TrimSpace(m[2])

		// An inline tag switches the running category for this and all
		// following questions, and is stripped from the stored number.
		number := numberFull
		if tm := tagRe.FindStringSubmatch(numberFull); tm != nil {
			currentCategory = tm[1]
			ensureCategory(currentCategory)
			number = strings.TrimSpace(tagCutRe.ReplaceAllString(numberFull, ""))
		}

		var text string
		var options []Option
		blockDone := false
		if idx := strings.Index(remainder, "{"); remainder != "" && idx >= 0 {
			// Question text inline on the header line, before the brace.
			text = strings.TrimSpace(remainder[:idx])
			rest := remainder[idx+1:]
			if end := strings.Index(rest, "}"); end >= 0 {
				// Whole answer block inline: {=right~wrong~wrong}
				options = parseInlineOptions(rest[:end])
				blockDone = true
			}
		} else {
			var textLines []string
			if remainder != "" {
				textLines = append(textLines, remainder)
			}
			i++
			for i < len(lines) {
				l := strings.TrimSpace(lines[i])
				if l == "{" {
					break
				}
				textLines = append(textLines, l)
				i++
			}
			text = strings.TrimSpace(strings.Join(textLines, "\n"))
		}
		text = Unescape(text)

		if !blockDone {
			i++
			for i < len(lines) {
				l := strings.TrimSpace(lines[i])
				if l == "}" {
					break
				}
				switch {
				case strings.HasPrefix(l, "="):
					options = append(options, Option{Text: strings.TrimSpace(Unescape(l[1:])), IsCorrect: true})
				case strings.HasPrefix(l, "~"):
					options = append(options, Option{Text: strings.TrimSpace(Unescape(l[1:])), IsCorrect: false})
				}
				i++
			}
		}

		bank.Questions = append(bank.Questions, Question{
			Number:   number,
			Text:     text,
			Options:  options,
			Category: currentCategory,
		})
		if currentCategory != "" {
			ensureCategory(currentCategory)
		}
	}

	// Index questions only after the slice has stopped growing, so the
	// pointers reference the final backing array.
	for i := range bank.Questions {
		q := &bank.Questions[i]
		if q.Category != "" {
			bank.Categories[q.Category] = append(bank.Categories[q.Category], q)
		}
	}
	return bank
}

// parseInlineOptions splits the body of a one-line answer block on unescaped
// = and ~ markers. Text before the first marker belongs to no option and is
// dropped.
func parseInlineOptions(body string) []Option {
	var options []Option
	var cur []rune
	inOption := false
	curCorrect := false
	flush := func() {
		if !inOption {
			cur = cur[:0]
			return
		}
		if text := strings.TrimSpace(Unescape(string(cur))); text != "" {
			options = append(options, Option{Text: text, IsCorrect: curCorrect})
		}
		cur = cur[:0]
	}
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			cur = append(cur, c, runes[i+1])
			i++
			continue
		}
		if c == '=' || c == '~' {
			flush()
			inOption = true
			curCorrect = c == '='
			continue
		}
		cur = append(cur, c)
	}
	flush()
	return options
}

var unescaper = strings.NewReplacer(
	`\~`, "~",
	`\=`, "=",
	`\#`, "#",
	`\{`, "{",
	`\}`, "}",
	`\:`, ":",
	`\\`, `\`,
)

// Unescape removes GIFT escape sequences from text.
func Unescape(s string) string {
	return unescaper.Replace(s)
}
