package session

import (
	"errors"

	"github.com/gift-practice/giftpractice/internal/gift"
)

// State is the lifecycle phase of a quiz session.
type State int

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// NoAnswer is the recorded-answer sentinel for a skipped question.
const NoAnswer = -1

// Sentinel answer texts used in score details when an answer or a correct
// option is absent.
const (
	NoAnswerText      = "no answer"
	NotApplicableText = "n/a"
)

var (
	ErrNotInProgress = errors.New("session not in progress")
	ErrFinished      = errors.New("session already finished")
)

// WrongDetail describes one incorrectly answered (or unanswered) question.
type WrongDetail struct {
	QuestionNumber string `json:"question_number"`
	QuestionText   string `json:"question_text"`
	Category       string `json:"category"`
	UserAnswer     string `json:"user_answer"`
	CorrectAnswer  string `json:"correct_answer"`
}

// Session drives one quiz attempt over an already-selected, already-shuffled
// question sequence. It is not safe for concurrent use; the Store serializes
// access.
type Session struct {
	ID        string
	GiftFile  string
	Questions []gift.Question
	Answers   map[string]int
	Current   int

	state         State
	historyLogged bool
}

// New returns an unstarted session.
func New(id, giftFile string) *Session {
	return &Session{ID: id, GiftFile: giftFile, Answers: map[string]int{}, state: NotStarted}
}

// Start stores the question sequence, resets the cursor and clears recorded
// answers. Starting a finished session is an error; a session instance runs
// one attempt.
func (s *Session) Start(questions []gift.Question) error {
	if s.state == Finished {
		return ErrFinished
	}
	if len(questions) == 0 {
		return errors.New("no questions selected")
	}
	s.Questions = questions
	s.Answers = map[string]int{}
	s.Current = 0
	s.state = InProgress
	return nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State { return s.state }

// CurrentQuestion returns the question under the cursor, or nil when the
// session is not in progress.
func (s *Session) CurrentQuestion() *gift.Question {
	if s.state != InProgress || s.Current >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.Current]
}

// RecordAnswer stores the user's option pick for a question. NoAnswer (-1)
// records an explicit skip.
func (s *Session) RecordAnswer(questionNumber string, optionIndex int) error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	s.Answers[questionNumber] = optionIndex
	return nil
}

// Advance moves the cursor forward. Stepping past the last question
// transitions the session to Finished.
func (s *Session) Advance() error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	s.Current++
	if s.Current >= len(s.Questions) {
		s.Current = len(s.Questions)
		s.state = Finished
	}
	return nil
}

// Retreat moves the cursor back one question, clamped at the first. The
// previously recorded answer for the revisited question stays in Answers and
// becomes the active selection again.
func (s *Session) Retreat() error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if s.Current > 0 {
		s.Current--
	}
	return nil
}

// FinishEarly truncates the question list at atIndex and finishes the
// session. The question at atIndex is kept when it has a real recorded
// answer (>= 0), dropped otherwise; questions never shown do not count.
// This transition is one-way for the session instance.
func (s *Session) FinishEarly(atIndex int) error {
	if s.state != InProgress {
		return ErrNotInProgress
	}
	if atIndex < 0 || atIndex >= len(s.Questions) {
		return errors.New("finish index out of range")
	}
	cut := atIndex
	if idx, ok := s.Answers[s.Questions[atIndex].Number]; ok && idx >= 0 {
		cut = atIndex + 1
	}
	s.Questions = s.Questions[:cut]
	s.Current = len(s.Questions)
	s.state = Finished
	return nil
}

// Score tallies the attempt. A question counts as correct only when the
// recorded answer equals the index of the first correct option; questions
// with no correct option are always wrong, with a "n/a" correct-answer
// sentinel in the detail.
func (s *Session) Score() (correct, wrong int, details []WrongDetail) {
	for i := range s.Questions {
		q := &s.Questions[i]
		got, ok := s.Answers[q.Number]
		if !ok {
			got = NoAnswer
		}
		want := q.CorrectIndex()
		if want >= 0 && got == want {
			correct++
			continue
		}
		wrong++
		d := WrongDetail{
			QuestionNumber: q.Number,
			QuestionText:   q.Text,
			Category:       q.Category,
			UserAnswer:     NoAnswerText,
			CorrectAnswer:  NotApplicableText,
		}
		if got >= 0 && got < len(q.Options) {
			d.UserAnswer = q.Options[got].Text
		}
		if want >= 0 {
			d.CorrectAnswer = q.Options[want].Text
		}
		details = append(details, d)
	}
	return correct, wrong, details
}

// HistoryLogged reports whether this attempt's result has already been handed
// to the history logger. An attempt yields at most one history record no
// matter how often it is re-finished.
func (s *Session) HistoryLogged() bool { return s.historyLogged }

// MarkHistoryLogged records that the history logger has seen this attempt.
func (s *Session) MarkHistoryLogged() { s.historyLogged = true }

// AnsweredCount returns how many questions have a real answer recorded.
func (s *Session) AnsweredCount() int {
	n := 0
	for _, idx := range s.Answers {
		if idx >= 0 {
			n++
		}
	}
	return n
}

// Categories returns the distinct categories of the selected questions, in
// first-seen order.
func (s *Session) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for i := range s.Questions {
		c := s.Questions[i].Category
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
