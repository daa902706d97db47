package testfixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/example/schema-migrator/internal/migrate"
)

// MemoryLedger is an in-memory migrate.LedgerStore honouring the same
// ordering and range-predicate semantics as the SQLite store. Optional
// error injection lets tests exercise read and write failure paths.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]migrate.Entry

	FindErr    error // returned by Find when non-nil
	CreateErr  error // returned by Create when non-nil
	DestroyErr error // returned by DestroyAll when non-nil
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]migrate.Entry)}
}

// Seed records entries directly, bypassing error injection.
func (l *MemoryLedger) Seed(entries ...migrate.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		l.entries[entry.Name] = entry
	}
}

// Names returns the recorded identifiers in ascending order.
func (l *MemoryLedger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find implements migrate.LedgerStore.
func (l *MemoryLedger) Find(ctx context.Context, filter migrate.Filter) ([]migrate.Entry, error) {
	if l.FindErr != nil {
		return nil, l.FindErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []migrate.Entry
	for name, entry := range l.entries {
		if filter.NameMin != "" && name < filter.NameMin {
			continue
		}
		if filter.NameMax != "" && name > filter.NameMax {
			continue
		}
		matched = append(matched, entry)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.Order == migrate.Descending {
			return matched[i].Name > matched[j].Name
		}
		return matched[i].Name < matched[j].Name
	})
	return matched, nil
}

// Create implements migrate.LedgerStore.
func (l *MemoryLedger) Create(ctx context.Context, entry migrate.Entry) (migrate.Entry, error) {
	if l.CreateErr != nil {
		return migrate.Entry{}, l.CreateErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.Name] = entry
	return entry, nil
}

// DestroyAll implements migrate.LedgerStore.
func (l *MemoryLedger) DestroyAll(ctx context.Context, name string) (int, error) {
	if l.DestroyErr != nil {
		return 0, l.DestroyErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[name]; !ok {
		return 0, nil
	}
	delete(l.entries, name)
	return 1, nil
}

var _ migrate.LedgerStore = (*MemoryLedger)(nil)
