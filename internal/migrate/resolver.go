package migrate

import (
	"context"
	"sort"
)

// Resolver computes the ordered set of migration identifiers a run must
// execute to move the recorded state to the desired state.
type Resolver struct {
	ledger  LedgerStore
	catalog Catalog
}

// NewResolver wires the resolver's collaborators.
func NewResolver(ledger LedgerStore, catalog Catalog) *Resolver {
	return &Resolver{ledger: ledger, catalog: catalog}
}

// Plan returns the identifiers that must run for the given direction,
// bounded by target when non-empty. Forward plans are ascending by
// name, backward plans descending. Read failures abort with no partial
// result.
func (r *Resolver) Plan(ctx context.Context, direction Direction, target string) ([]string, error) {
	switch direction {
	case Forward:
		return r.planForward(ctx, target)
	case Backward:
		return r.planBackward(ctx, target)
	default:
		return nil, &PlanError{Direction: direction, Target: target, Err: ErrInvalidDirection}
	}
}

// planForward is a set difference: every discovered script at or below
// the target that has no ledger entry yet, ascending. Rerunning with no
// new scripts yields an empty plan.
func (r *Resolver) planForward(ctx context.Context, target string) ([]string, error) {
	filter := Filter{Order: Ascending}
	if target != "" {
		filter.NameMax = target
	}
	entries, err := r.ledger.Find(ctx, filter)
	if err != nil {
		return nil, &PlanError{Direction: Forward, Target: target, Err: err}
	}

	alreadyRan := make(map[string]bool, len(entries))
	for _, entry := range entries {
		alreadyRan[entry.Name] = true
	}

	available, err := r.catalog.Names()
	if err != nil {
		return nil, &PlanError{Direction: Forward, Target: target, Err: err}
	}

	var plan []string
	for _, name := range available {
		name = Normalize(name)
		if target != "" && name > target {
			continue
		}
		if alreadyRan[name] {
			continue
		}
		plan = append(plan, name)
	}
	sort.Strings(plan)
	return plan, nil
}

// planBackward replays the ledger in reverse. There is nothing to diff
// against the catalog: a script no longer on disk can still be rolled
// back from its ledger record.
func (r *Resolver) planBackward(ctx context.Context, target string) ([]string, error) {
	filter := Filter{Order: Descending}
	if target != "" {
		filter.NameMin = target
	}
	entries, err := r.ledger.Find(ctx, filter)
	if err != nil {
		return nil, &PlanError{Direction: Backward, Target: target, Err: err}
	}

	alreadyRan := make([]string, 0, len(entries))
	targetApplied := false
	for _, entry := range entries {
		alreadyRan = append(alreadyRan, entry.Name)
		if entry.Name == target {
			targetApplied = true
		}
	}

	if target != "" {
		// Recovery path: a target with no ledger entry is a migration that
		// failed mid-forward-run before it was recorded. Roll back exactly
		// that one script.
		if !targetApplied {
			return []string{target}, nil
		}
		// The target itself stays applied. Descending order puts it last.
		alreadyRan = alreadyRan[:len(alreadyRan)-1]
	}

	if len(alreadyRan) == 0 {
		return nil, nil
	}
	return alreadyRan, nil
}
