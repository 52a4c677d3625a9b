// Package validation keeps an externally computed verdict attached to the
// graph being edited.
//
// Every change submits a snapshot to the oracle tagged with a sequence
// number. Only the response for the highest number issued so far is
// accepted; older responses are dropped. Outstanding requests are never
// cancelled, only ignored once superseded.
package validation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/graph"
)

// EmptyGraphError is reported for a graph without nodes, which is judged
// locally without consulting the oracle.
const EmptyGraphError = "workflow has no components"

// Status is the verdict currently on display.
type Status struct {
	// Verdict is the last accepted verdict, nil before the first one.
	Verdict *workflow.Verdict
	// Hash identifies the snapshot content the verdict was computed for.
	Hash string
	// Seq is the sequence number of the accepted verdict.
	Seq uint64
	// Pending is set while a newer snapshot awaits a verdict; the
	// displayed verdict may be stale.
	Pending bool
	// Unavailable is set when the oracle could not be reached for the
	// accepted submission. Err then carries VALIDATION_UNAVAILABLE.
	Unavailable bool
	Err         error
}

// IsValid reports an affirmative verdict.
func (s Status) IsValid() bool {
	return s.Verdict != nil && s.Verdict.IsValid && !s.Unavailable
}

// Ready reports whether actions gated on validity (save, test) may run.
func (s Status) Ready() bool {
	return s.IsValid() && !s.Pending
}

// Synchronizer submits snapshots to an oracle and reconciles responses.
type Synchronizer struct {
	oracle   workflow.Validator
	logger   *slog.Logger
	debounce time.Duration
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	issued    uint64
	scheduled bool
	timer     *time.Timer
	status    Status
	listeners []func(Status)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the synchronizer logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDebounce delays submission until no change arrived for d.
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) { s.debounce = d }
}

// WithTimeout bounds each oracle call. Zero leaves it to the transport.
func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.timeout = d }
}

// New creates a synchronizer for oracle.
func New(oracle workflow.Validator, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		oracle: oracle,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach validates store now and after every change event. The returned
// function stops listening.
func (s *Synchronizer) Attach(store *graph.Store) (detach func()) {
	unsubscribe := store.Subscribe(func(graph.Event) {
		s.changed(store.Snapshot)
	})
	s.Submit(store.Snapshot())
	return unsubscribe
}

func (s *Synchronizer) changed(snapshot func() graph.Snapshot) {
	if s.debounce <= 0 {
		s.Submit(snapshot())
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.scheduled = true
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		s.scheduled = false
		s.mu.Unlock()
		s.Submit(snapshot())
	})
	s.mu.Unlock()
	s.publish()
}

// Submit sends snap to the oracle and returns its sequence number. After
// Close it does nothing and returns the last number issued.
func (s *Synchronizer) Submit(snap graph.Snapshot) uint64 {
	s.mu.Lock()
	if s.closed {
		seq := s.issued
		s.mu.Unlock()
		return seq
	}
	s.issued++
	seq := s.issued
	hash := snap.Hash()
	if snap.Empty() {
		s.status = Status{
			Verdict: &workflow.Verdict{IsValid: false, Errors: []string{EmptyGraphError}},
			Hash:    hash,
			Seq:     seq,
		}
		s.mu.Unlock()
		s.publish()
		return seq
	}
	s.mu.Unlock()

	s.logger.Debug("validation submitted", "seq", seq, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	s.publish()

	def := snap.Definition()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		verdict, err := s.oracle.Validate(ctx, def)
		s.resolve(seq, hash, verdict, err)
	}()
	return seq
}

func (s *Synchronizer) resolve(seq uint64, hash string, verdict workflow.Verdict, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("verdict dropped after close", "seq", seq)
		return
	}
	if seq != s.issued {
		latest := s.issued
		s.mu.Unlock()
		s.logger.Debug("stale verdict dropped", "seq", seq, "latest", latest)
		return
	}
	if err != nil {
		s.status = Status{
			Verdict:     &workflow.Verdict{IsValid: false},
			Hash:        hash,
			Seq:         seq,
			Unavailable: true,
			Err:         workflow.Errorf(workflow.ErrValidationUnavailable, "validation unavailable: "+err.Error(), err, map[string]any{"seq": seq}),
		}
		s.mu.Unlock()
		s.logger.Warn("validation unavailable", "seq", seq, "error", err)
		s.publish()
		return
	}
	v := verdict
	s.status = Status{Verdict: &v, Hash: hash, Seq: seq}
	s.mu.Unlock()
	s.logger.Debug("verdict accepted", "seq", seq, "is_valid", v.IsValid)
	s.publish()
}

// Current returns the verdict on display.
func (s *Synchronizer) Current() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *Synchronizer) current() Status {
	st := s.status
	st.Pending = s.scheduled || s.issued != st.Seq
	return st
}

// Subscribe registers fn to receive every status change.
func (s *Synchronizer) Subscribe(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Synchronizer) publish() {
	s.mu.Lock()
	st := s.current()
	ls := append([]func(Status){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range ls {
		fn(st)
	}
}

// Wait blocks until every submitted request has returned.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Close stops pending debounce timers and cancels in-flight requests.
// Responses arriving afterwards are discarded and the status stays as it
// was.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.scheduled = false
	s.mu.Unlock()
	s.cancel()
}
