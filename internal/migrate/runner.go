package migrate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/schema-migrator/internal/logging"
)

// StepResult records one executed step of a run.
type StepResult struct {
	Name     string
	Duration time.Duration
}

// Result summarises a completed or aborted run.
type Result struct {
	RunID     string
	Direction Direction
	Target    string
	Steps     []StepResult // Steps that completed, in execution order
	Duration  time.Duration
}

// Executed returns the names of the completed steps in run order.
func (r Result) Executed() []string {
	if len(r.Steps) == 0 {
		return nil
	}
	names := make([]string, len(r.Steps))
	for i, step := range r.Steps {
		names[i] = step.Name
	}
	return names
}

// Status describes the recorded migration state without running anything.
type Status struct {
	Current string   // Highest applied identifier, empty when none
	Applied []Entry  // All ledger entries, ascending by name
	Pending []string // Forward plan with no target, ascending
}

// Runner executes resolved migration plans strictly sequentially while
// guarding against concurrent invocation within the process. The guard
// is cooperative: it does not protect against other processes sharing
// the same ledger store.
type Runner struct {
	resolver *Resolver
	ledger   LedgerStore
	catalog  Catalog
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string

	stepTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// SetStepTimeout bounds each script entry point invocation. Zero leaves
// steps unbounded. Must be set before the runner is shared.
func (r *Runner) SetStepTimeout(d time.Duration) {
	r.stepTimeout = d
}

// NewRunner wires a runner with its collaborators. A nil notifier
// discards events and a nil now falls back to time.Now.
func NewRunner(ledger LedgerStore, catalog Catalog, notifier Notifier, now func() time.Time) *Runner {
	return NewRunnerWithLogger(ledger, catalog, notifier, now, nil)
}

// NewRunnerWithLogger wires a runner with an explicit base logger.
func NewRunnerWithLogger(ledger LedgerStore, catalog Catalog, notifier Notifier, now func() time.Time, logger *slog.Logger) *Runner {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{
		resolver: NewResolver(ledger, catalog),
		ledger:   ledger,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		now:      now,
		newRunID: uuid.NewString,
	}
}

// MigrateTo applies pending migrations up to and including target, or
// all pending migrations when target is empty.
func (r *Runner) MigrateTo(ctx context.Context, target string) (Result, error) {
	return r.run(ctx, Forward, target)
}

// RollbackTo undoes applied migrations down to but excluding target, or
// all applied migrations when target is empty.
func (r *Runner) RollbackTo(ctx context.Context, target string) (Result, error) {
	return r.run(ctx, Backward, target)
}

// Status reports the applied ledger entries and the pending forward plan.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	applied, err := r.ledger.Find(ctx, Filter{Order: Ascending})
	if err != nil {
		return Status{}, &PlanError{Direction: Forward, Err: err}
	}
	pending, err := r.resolver.Plan(ctx, Forward, "")
	if err != nil {
		return Status{}, err
	}
	status := Status{Applied: applied, Pending: pending}
	if len(applied) > 0 {
		status.Current = applied[len(applied)-1].Name
	}
	return status, nil
}

// run is the single execution path behind both public entry points.
func (r *Runner) run(ctx context.Context, direction Direction, target string) (Result, error) {
	if target != "" {
		target = Normalize(target)
		if !ValidName(target) {
			return Result{}, ErrInvalidTarget
		}
	}
	if !direction.Valid() {
		return Result{}, ErrInvalidDirection
	}

	if err := r.begin(); err != nil {
		return Result{}, err
	}
	defer r.finish()

	result := Result{
		RunID:     r.newRunID(),
		Direction: direction,
		Target:    target,
	}
	logger := logging.OrDefault(ctx, r.logger).With(
		"run_id", result.RunID,
		"direction", string(direction),
		"target", target,
	)
	started := time.Now()

	plan, err := r.resolver.Plan(ctx, direction, target)
	if err != nil {
		result.Duration = time.Since(started)
		logger.Error("migration planning failed", "error", err)
		r.emit(EventError, result, err)
		return result, err
	}

	if len(plan) == 0 {
		result.Duration = time.Since(started)
		logger.Info("nothing to migrate", "duration", result.Duration)
		r.emit(EventComplete, result, nil)
		return result, nil
	}

	logger.Info("migration run starting", "steps", len(plan))

	for i, name := range plan {
		stepStarted := time.Now()
		if err := r.runScript(ctx, name, direction); err != nil {
			result.Duration = time.Since(started)
			logger.Error("migration step failed",
				"step", name,
				"position", i+1,
				"of", len(plan),
				"error", err,
			)
			r.emit(EventError, result, err)
			return result, err
		}
		step := StepResult{Name: name, Duration: time.Since(stepStarted)}
		result.Steps = append(result.Steps, step)
		logger.Info("migration step completed",
			"step", name,
			"position", i+1,
			"of", len(plan),
			"duration", step.Duration,
		)
	}

	result.Duration = time.Since(started)
	logger.Info("migration run completed",
		"steps", len(result.Steps),
		"duration", result.Duration,
	)
	r.emit(EventComplete, result, nil)
	return result, nil
}

// runScript executes one step and persists its ledger update. The next
// step must not start until both have completed. If the entry point
// succeeds but the ledger update fails, the ledger is left behind the
// executed side effects; this is surfaced as the step's error and is
// not retried or compensated.
func (r *Runner) runScript(ctx context.Context, name string, direction Direction) error {
	script, err := r.catalog.Load(name)
	if err != nil {
		return &StepError{Name: name, Direction: direction, Operation: "load script", Err: err}
	}

	stepCtx := ctx
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	switch direction {
	case Forward:
		if err := script.Forward(stepCtx); err != nil {
			return &StepError{Name: name, Direction: direction, Operation: "forward entry point", Err: err}
		}
		entry := Entry{Name: name, RanAt: r.now().UTC()}
		if cs, ok := script.(ChecksumScript); ok {
			entry.Checksum = cs.Checksum()
		}
		if _, err := r.ledger.Create(ctx, entry); err != nil {
			return &StepError{Name: name, Direction: direction, Operation: "record ledger entry", Err: err}
		}
	case Backward:
		if err := script.Backward(stepCtx); err != nil {
			return &StepError{Name: name, Direction: direction, Operation: "backward entry point", Err: err}
		}
		if _, err := r.ledger.DestroyAll(ctx, name); err != nil {
			return &StepError{Name: name, Direction: direction, Operation: "remove ledger entries", Err: err}
		}
	}
	return nil
}

// begin performs the atomic check-and-set on the run-state flag.
func (r *Runner) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	return nil
}

// finish clears the run-state flag unconditionally so the runner stays
// usable after any outcome.
func (r *Runner) finish() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

func (r *Runner) emit(kind EventKind, result Result, err error) {
	r.notifier.Emit(Event{
		Kind:      kind,
		RunID:     result.RunID,
		Direction: result.Direction,
		Target:    result.Target,
		Executed:  result.Executed(),
		Duration:  result.Duration,
		Err:       err,
	})
}
