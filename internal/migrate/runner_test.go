package migrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptFunc struct {
	name     string
	forward  func(ctx context.Context) error
	backward func(ctx context.Context) error
	checksum string
}

func (s *scriptFunc) Forward(ctx context.Context) error {
	if s.forward != nil {
		return s.forward(ctx)
	}
	return nil
}

func (s *scriptFunc) Backward(ctx context.Context) error {
	if s.backward != nil {
		return s.backward(ctx)
	}
	return nil
}

func (s *scriptFunc) Checksum() string {
	return s.checksum
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Emit(event Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Event(nil), n.events...)
}

func newTestCatalog(recorder *[]string, names ...string) *mockCatalog {
	scripts := make(map[string]Script, len(names))
	for _, name := range names {
		name := name
		scripts[name] = &scriptFunc{
			name: name,
			forward: func(ctx context.Context) error {
				*recorder = append(*recorder, "up:"+name)
				return nil
			},
			backward: func(ctx context.Context) error {
				*recorder = append(*recorder, "down:"+name)
				return nil
			},
		}
	}
	return &mockCatalog{names: names, scripts: scripts}
}

func fixedNow() time.Time {
	return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)
}

func TestRunner_MigrateTo_SequentialOrder(t *testing.T) {
	var executed []string
	ledger := &mockLedger{}
	cat := newTestCatalog(&executed, "0001", "0002", "0003")
	runner := NewRunner(ledger, cat, nil, fixedNow)

	result, err := runner.MigrateTo(context.Background(), "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expected := []string{"up:0001", "up:0002", "up:0003"}
	if len(executed) != len(expected) {
		t.Fatalf("expected %d invocations, got %v", len(expected), executed)
	}
	for i, call := range expected {
		if executed[i] != call {
			t.Errorf("expected %s at position %d, got %s", call, i, executed[i])
		}
	}

	if len(ledger.created) != 3 {
		t.Fatalf("expected 3 ledger entries, got %d", len(ledger.created))
	}
	for i, name := range []string{"0001", "0002", "0003"} {
		if ledger.created[i].Name != name {
			t.Errorf("expected ledger entry %s at position %d, got %s", name, i, ledger.created[i].Name)
		}
		if !ledger.created[i].RanAt.Equal(fixedNow()) {
			t.Errorf("expected ranAt %v, got %v", fixedNow(), ledger.created[i].RanAt)
		}
	}

	got := result.Executed()
	if len(got) != 3 || got[0] != "0001" || got[2] != "0003" {
		t.Errorf("expected executed [0001 0002 0003], got %v", got)
	}
}

func TestRunner_RollbackTo_DeletesLedgerEntries(t *testing.T) {
	var executed []string
	ledger := &mockLedger{entries: appliedEntries("0001", "0002", "0003")}
	cat := newTestCatalog(&executed, "0001", "0002", "0003")
	runner := NewRunner(ledger, cat, nil, fixedNow)

	_, err := runner.RollbackTo(context.Background(), "0001")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	expected := []string{"down:0003", "down:0002"}
	if len(executed) != len(expected) {
		t.Fatalf("expected invocations %v, got %v", expected, executed)
	}
	for i, call := range expected {
		if executed[i] != call {
			t.Errorf("expected %s at position %d, got %s", call, i, executed[i])
		}
	}

	if len(ledger.entries) != 1 || ledger.entries[0].Name != "0001" {
		t.Errorf("expected only 0001 left in ledger, got %+v", ledger.entries)
	}
}

func TestRunner_EmptyPlanEmitsComplete(t *testing.T) {
	notifier := &recordingNotifier{}
	ledger := &mockLedger{entries: appliedEntries("0001")}
	cat := &mockCatalog{names: []string{"0001"}}
	runner := NewRunner(ledger, cat, notifier, fixedNow)

	result, err := runner.MigrateTo(context.Background(), "")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(result.Steps) != 0 {
		t.Errorf("expected no steps, got %v", result.Steps)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].Kind != EventComplete {
		t.Fatalf("expected one complete event, got %+v", events)
	}
	if events[0].RunID == "" {
		t.Error("expected a run id on the event")
	}
}

func TestRunner_StepFailureAbortsRemaining(t *testing.T) {
	var executed []string
	boom := errors.New("entry point exploded")
	ledger := &mockLedger{}
	cat := newTestCatalog(&executed, "0001", "0002", "0003")
	cat.scripts["0002"] = &scriptFunc{
		forward: func(ctx context.Context) error { return boom },
	}
	notifier := &recordingNotifier{}
	runner := NewRunner(ledger, cat, notifier, fixedNow)

	result, err := runner.MigrateTo(context.Background(), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got: %T", err)
	}
	if stepErr.Name != "0002" {
		t.Errorf("expected failure on 0002, got %s", stepErr.Name)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to surface unchanged, got: %v", err)
	}

	// 0003 never ran; completed steps are not reverted.
	if len(executed) != 1 || executed[0] != "up:0001" {
		t.Errorf("expected only 0001 to have run, got %v", executed)
	}
	if len(ledger.created) != 1 || ledger.created[0].Name != "0001" {
		t.Errorf("expected only 0001 recorded, got %+v", ledger.created)
	}
	got := result.Executed()
	if len(got) != 1 || got[0] != "0001" {
		t.Errorf("expected result to list 0001 only, got %v", got)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("expected one error event, got %+v", events)
	}
	if events[0].Err == nil {
		t.Error("expected the error event to carry the failure detail")
	}
}

func TestRunner_LedgerWriteFailureSurfaces(t *testing.T) {
	var executed []string
	ledger := &mockLedger{createErr: errors.New("disk full")}
	cat := newTestCatalog(&executed, "0001")
	runner := NewRunner(ledger, cat, nil, fixedNow)

	_, err := runner.MigrateTo(context.Background(), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got: %T", err)
	}
	if stepErr.Operation != "record ledger entry" {
		t.Errorf("expected ledger update failure, got operation %q", stepErr.Operation)
	}
	// The entry point already ran; the ledger is knowingly left behind.
	if len(executed) != 1 {
		t.Errorf("expected the entry point to have run, got %v", executed)
	}
}

func TestRunner_MutualExclusion(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	ledger := &mockLedger{}
	cat := &mockCatalog{
		names: []string{"0001"},
		scripts: map[string]Script{
			"0001": &scriptFunc{forward: func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			}},
		},
	}
	runner := NewRunner(ledger, cat, nil, fixedNow)

	done := make(chan error, 1)
	go func() {
		_, err := runner.MigrateTo(context.Background(), "")
		done <- err
	}()

	<-started
	_, err := runner.MigrateTo(context.Background(), "")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got: %v", err)
	}
	if len(ledger.created) != 0 {
		t.Errorf("rejected run must not touch the ledger, got %+v", ledger.created)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("in-progress run must be unaffected, got: %v", err)
	}
	if len(ledger.created) != 1 {
		t.Errorf("expected the first run to complete normally, got %+v", ledger.created)
	}
}

func TestRunner_RunnableAfterFailure(t *testing.T) {
	var executed []string
	ledger := &mockLedger{}
	cat := newTestCatalog(&executed, "0001")
	cat.scripts["0001"] = &scriptFunc{
		forward:  func(ctx context.Context) error { return errors.New("boom") },
		backward: func(ctx context.Context) error { return nil },
	}

	runner := NewRunner(ledger, cat, nil, fixedNow)

	if _, err := runner.MigrateTo(context.Background(), ""); err == nil {
		t.Fatal("expected first run to fail")
	}

	// The flag is cleared on the way out, so a recovery rollback can start.
	_, err := runner.RollbackTo(context.Background(), "0001")
	if err != nil {
		t.Errorf("expected recovery rollback to run, got: %v", err)
	}
}

func TestRunner_InvalidTargetRejectedSynchronously(t *testing.T) {
	ledger := &mockLedger{findErr: errors.New("must not be queried")}
	cat := &mockCatalog{namesErr: errors.New("must not be scanned")}
	runner := NewRunner(ledger, cat, nil, fixedNow)

	_, err := runner.MigrateTo(context.Background(), "not a valid/target!")
	if !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("expected ErrInvalidTarget, got: %v", err)
	}
}

func TestRunner_TargetNormalizedBeforeMatching(t *testing.T) {
	ledger := &mockLedger{entries: appliedEntries("0001", "0002")}
	cat := &mockCatalog{
		names: []string{"0001", "0002"},
		scripts: map[string]Script{
			"0002": &scriptFunc{},
		},
	}
	runner := NewRunner(ledger, cat, nil, fixedNow)

	// A target named by script file still matches its ledger entry.
	_, err := runner.RollbackTo(context.Background(), "0001.up.sql")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(ledger.entries) != 1 || ledger.entries[0].Name != "0001" {
		t.Errorf("expected rollback to stop above 0001, got %+v", ledger.entries)
	}
}

func TestRunner_RecordsChecksum(t *testing.T) {
	ledger := &mockLedger{}
	cat := &mockCatalog{
		names: []string{"0001"},
		scripts: map[string]Script{
			"0001": &scriptFunc{checksum: "abc123"},
		},
	}
	runner := NewRunner(ledger, cat, nil, fixedNow)

	if _, err := runner.MigrateTo(context.Background(), ""); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(ledger.created) != 1 || ledger.created[0].Checksum != "abc123" {
		t.Errorf("expected checksum recorded on the entry, got %+v", ledger.created)
	}
}

func TestRunner_PlanFailureEmitsErrorEvent(t *testing.T) {
	notifier := &recordingNotifier{}
	ledger := &mockLedger{findErr: errors.New("store down")}
	cat := &mockCatalog{}
	runner := NewRunner(ledger, cat, notifier, fixedNow)

	_, err := runner.MigrateTo(context.Background(), "")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Errorf("expected PlanError, got: %T", err)
	}

	events := notifier.Events()
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("expected one error event, got %+v", events)
	}
	if len(events[0].Executed) != 0 {
		t.Errorf("no scripts may run when planning fails, got %v", events[0].Executed)
	}
}

func TestRunner_Status(t *testing.T) {
	ledger := &mockLedger{entries: appliedEntries("0001", "0002")}
	cat := &mockCatalog{names: []string{"0001", "0002", "0003"}}
	runner := NewRunner(ledger, cat, nil, fixedNow)

	status, err := runner.Status(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if status.Current != "0002" {
		t.Errorf("expected current 0002, got %s", status.Current)
	}
	if len(status.Applied) != 2 {
		t.Errorf("expected 2 applied entries, got %d", len(status.Applied))
	}
	if len(status.Pending) != 1 || status.Pending[0] != "0003" {
		t.Errorf("expected pending [0003], got %v", status.Pending)
	}
}
