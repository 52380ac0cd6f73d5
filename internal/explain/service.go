package explain

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gift-practice/giftpractice/internal/enrich"
)

// State is a task's lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateError    State = "error"
	StateCanceled State = "canceled"
)

var (
	ErrNotFound = errors.New("explain: viewer not found")
	ErrClosed   = errors.New("explain: viewer closed")
)

// task is one background operation slot. seq increases on every restart;
// a completion whose seq no longer matches is stale and its result is
// dropped.
type task struct {
	seq     int64
	state   State
	cancel  context.CancelFunc
	text    string
	result  *enrich.Result
	errMsg  string
	elapsed time.Duration
}

func (t *task) restart() (int64, context.Context) {
	t.seq++
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.state = StateRunning
	t.text = ""
	t.result = nil
	t.errMsg = ""
	t.elapsed = 0
	return t.seq, ctx
}

func (t *task) finish(ctx context.Context, start time.Time, err error) bool {
	t.elapsed = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			t.state = StateCanceled
		} else {
			t.state = StateError
			t.errMsg = err.Error()
		}
		return false
	}
	t.state = StateDone
	return true
}

// viewer is one open explanation: a question plus its generation and
// enrichment slots. Viewers are independent of each other.
type viewer struct {
	id             int64
	questionNumber string
	provider       string
	model          string
	closed         bool
	gen            task
	images         task
	wg             sync.WaitGroup
}

// Service owns the explanation viewers and their background work. One
// generation and one enrichment run per viewer at a time; restarting a slot
// invalidates the in-flight run.
type Service struct {
	mu      sync.Mutex
	nextID  int64
	grace   time.Duration
	viewers map[int64]*viewer
}

// NewService returns a Service whose Close waits at most grace for running
// work to stop before abandoning it.
func NewService(grace time.Duration) *Service {
	if grace <= 0 {
		grace = 2 * time.Second
	}
	return &Service{grace: grace, viewers: map[int64]*viewer{}}
}

// Open registers a new viewer for a question and returns its id.
func (s *Service) Open(questionNumber, provider, model string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.viewers[id] = &viewer{
		id:             id,
		questionNumber: questionNumber,
		provider:       provider,
		model:          model,
		gen:            task{state: StateIdle},
		images:         task{state: StateIdle},
	}
	return id
}

// StartGeneration runs the text generation in the background. A second call
// on the same viewer supersedes the first: the earlier run keeps executing
// until its context cancellation lands, but its result is discarded.
func (s *Service) StartGeneration(id int64, provider, model string, run func(ctx context.Context) (string, error)) error {
	s.mu.Lock()
	v, err := s.viewer(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	v.provider = provider
	v.model = model
	seq, ctx := v.gen.restart()
	v.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer v.wg.Done()
		start := time.Now()
		text, err := run(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if v.closed || seq != v.gen.seq {
			return
		}
		if v.gen.finish(ctx, start, err) {
			v.gen.text = text
		}
	}()
	return nil
}

// StartEnrichment runs image enrichment in the background, with the same
// supersede-and-discard rule as StartGeneration.
func (s *Service) StartEnrichment(id int64, run func(ctx context.Context) (enrich.Result, error)) error {
	s.mu.Lock()
	v, err := s.viewer(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	seq, ctx := v.images.restart()
	v.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer v.wg.Done()
		start := time.Now()
		res, err := run(ctx)
		s.mu.Lock()
		defer s.mu.Unlock()
		if v.closed || seq != v.images.seq {
			return
		}
		if v.images.finish(ctx, start, err) {
			v.images.result = &res
		}
	}()
	return nil
}

// GenerationText returns the finished generation text for enrichment input.
func (s *Service) GenerationText(id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.viewer(id)
	if err != nil {
		return "", err
	}
	if v.gen.state != StateDone {
		return "", errors.New("explain: generation not finished")
	}
	return v.gen.text, nil
}

// Close cancels the viewer's work and removes it. It waits up to the grace
// period for running work to observe the cancellation; a run that outlives
// the grace is abandoned and its eventual result is dropped either way.
func (s *Service) Close(id int64) error {
	s.mu.Lock()
	v, ok := s.viewers[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	v.closed = true
	if v.gen.cancel != nil {
		v.gen.cancel()
	}
	if v.images.cancel != nil {
		v.images.cancel()
	}
	delete(s.viewers, id)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.grace):
	}
	return nil
}

func (s *Service) viewer(id int64) (*viewer, error) {
	v, ok := s.viewers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if v.closed {
		return nil, ErrClosed
	}
	return v, nil
}

// TaskView is the serializable state of one task slot.
type TaskView struct {
	State          State                `json:"state"`
	Text           string               `json:"text,omitempty"`
	ImagesHTML     string               `json:"images_html,omitempty"`
	Blocks         []enrich.BlockResult `json:"blocks,omitempty"`
	Error          string               `json:"error,omitempty"`
	ElapsedSeconds float64              `json:"elapsed_seconds,omitempty"`
}

// View is the serializable state of one viewer.
type View struct {
	ID             int64    `json:"id"`
	QuestionNumber string   `json:"question_number"`
	Provider       string   `json:"provider"`
	Model          string   `json:"model"`
	Generation     TaskView `json:"generation"`
	Enrichment     TaskView `json:"enrichment"`
}

// Snapshot returns a copy of the viewer's current state.
func (s *Service) Snapshot(id int64) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.viewers[id]
	if !ok {
		return View{}, ErrNotFound
	}
	out := View{
		ID:             v.id,
		QuestionNumber: v.questionNumber,
		Provider:       v.provider,
		Model:          v.model,
		Generation: TaskView{
			State:          v.gen.state,
			Text:           v.gen.text,
			Error:          v.gen.errMsg,
			ElapsedSeconds: v.gen.elapsed.Seconds(),
		},
		Enrichment: TaskView{
			State:          v.images.state,
			Error:          v.images.errMsg,
			ElapsedSeconds: v.images.elapsed.Seconds(),
		},
	}
	if v.images.result != nil {
		out.Enrichment.Text = v.images.result.Text
		out.Enrichment.ImagesHTML = v.images.result.ImagesHTML
		out.Enrichment.Blocks = v.images.result.Blocks
	}
	return out, nil
}
