package testfixtures

import (
	"context"
	"sync"

	"github.com/example/schema-migrator/internal/migrate"
)

// InvocationRecorder captures the order in which script entry points
// ran across a whole test, regardless of which script they belong to.
type InvocationRecorder struct {
	mu    sync.Mutex
	calls []Invocation
}

// Invocation is one recorded entry point call.
type Invocation struct {
	Name      string
	Direction migrate.Direction
}

// NewInvocationRecorder returns an empty recorder.
func NewInvocationRecorder() *InvocationRecorder {
	return &InvocationRecorder{}
}

func (r *InvocationRecorder) record(name string, direction migrate.Direction) {
	r.mu.Lock()
	r.calls = append(r.calls, Invocation{Name: name, Direction: direction})
	r.mu.Unlock()
}

// Calls returns a copy of the recorded invocations in order.
func (r *InvocationRecorder) Calls() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Invocation(nil), r.calls...)
}

// Executed returns only the identifiers, in invocation order.
func (r *InvocationRecorder) Executed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, call := range r.calls {
		names[i] = call.Name
	}
	return names
}

// FakeScript is a migrate.Script whose entry points record themselves
// and optionally fail.
type FakeScript struct {
	Name        string
	Recorder    *InvocationRecorder
	ForwardErr  error
	BackwardErr error
	Blocking    chan struct{} // when non-nil, entry points wait on it
}

// Forward implements migrate.Script.
func (s *FakeScript) Forward(ctx context.Context) error {
	if s.Blocking != nil {
		<-s.Blocking
	}
	if s.ForwardErr != nil {
		return s.ForwardErr
	}
	if s.Recorder != nil {
		s.Recorder.record(s.Name, migrate.Forward)
	}
	return nil
}

// Backward implements migrate.Script.
func (s *FakeScript) Backward(ctx context.Context) error {
	if s.Blocking != nil {
		<-s.Blocking
	}
	if s.BackwardErr != nil {
		return s.BackwardErr
	}
	if s.Recorder != nil {
		s.Recorder.record(s.Name, migrate.Backward)
	}
	return nil
}

var _ migrate.Script = (*FakeScript)(nil)
