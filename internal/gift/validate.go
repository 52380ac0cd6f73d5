package gift

// Report summarizes the structural health of a parsed bank. It is advisory
// only: a question flagged here still loads and runs in a practice session.
type Report struct {
	TotalQuestions int            `json:"total_questions"`
	Categories     map[string]int `json:"categories"`

	NoCorrect       []string `json:"no_correct"`
	MultipleCorrect []string `json:"multiple_correct"`
	TooFewOptions   []string `json:"too_few_options"`
}

// MinOptions is the smallest option count considered usable for practice.
const MinOptions = 2

// Validate inspects every question of a bank and reports the ones with zero
// or multiple correct answers, or fewer than MinOptions options.
func Validate(bank *Bank) Report {
	rep := Report{Categories: map[string]int{}}
	for i := range bank.Questions {
		q := &bank.Questions[i]
		rep.TotalQuestions++
		if q.Category != "" {
			rep.Categories[q.Category]++
		}

		correct := 0
		for _, opt := range q.Options {
			if opt.IsCorrect {
				correct++
			}
		}
		switch {
		case correct == 0:
			rep.NoCorrect = append(rep.NoCorrect, q.Number)
		case correct > 1:
			rep.MultipleCorrect = append(rep.MultipleCorrect, q.Number)
		}
		if len(q.Options) < MinOptions {
			rep.TooFewOptions = append(rep.TooFewOptions, q.Number)
		}
	}
	return rep
}

// Clean reports whether no question was flagged.
func (r Report) Clean() bool {
	return len(r.NoCorrect) == 0 && len(r.MultipleCorrect) == 0 && len(r.TooFewOptions) == 0
}
