package migrate

import "time"

// EventKind names the notifications a run can emit.
type EventKind string

const (
	// EventComplete is emitted when a run finishes successfully,
	// including no-op runs with an empty plan.
	EventComplete EventKind = "complete"
	// EventError is emitted when a run aborts with a failure.
	EventError EventKind = "error"
)

// Event describes the outcome of a run for observers. Events are for
// integration only; the runner never depends on them for control flow.
type Event struct {
	Kind      EventKind
	RunID     string
	Direction Direction
	Target    string
	Executed  []string      // Names of steps that completed, in run order
	Duration  time.Duration // Wall clock duration of the whole run
	Err       error         // Failure detail, set only for EventError
}

// Notifier receives run outcome events.
type Notifier interface {
	Emit(event Event)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Event)

// Emit implements Notifier.
func (f NotifierFunc) Emit(event Event) {
	if f != nil {
		f(event)
	}
}

type nopNotifier struct{}

func (nopNotifier) Emit(Event) {}
