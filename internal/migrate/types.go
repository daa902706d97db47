package migrate

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"
)

// Direction selects whether a run applies migrations or undoes them.
type Direction string

const (
	// Forward applies pending migrations in ascending name order.
	Forward Direction = "forward"
	// Backward undoes applied migrations in descending name order.
	Backward Direction = "backward"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == Forward || d == Backward
}

// Order controls how ledger queries sort entries by name.
type Order int

const (
	// Ascending sorts entries by name from lowest to highest.
	Ascending Order = iota
	// Descending sorts entries by name from highest to lowest.
	Descending
)

// Entry is one ledger record: a migration whose forward action has been
// applied and not yet rolled back.
type Entry struct {
	Name     string    // Migration identifier
	RanAt    time.Time // When the forward action completed
	Checksum string    // Script content checksum at apply time, if known
}

// Filter narrows and orders a ledger query. Empty bounds are unbounded.
type Filter struct {
	Order   Order
	NameMin string // keep entries with name >= NameMin
	NameMax string // keep entries with name <= NameMax
}

// LedgerStore persists the applied-migrations ledger. It is the sole
// source of truth for current state; implementations provide whatever
// consistency their backing store offers.
type LedgerStore interface {
	// Find returns entries matching the filter in the requested order.
	Find(ctx context.Context, filter Filter) ([]Entry, error)

	// Create records a newly applied migration and returns the stored entry.
	Create(ctx context.Context, entry Entry) (Entry, error)

	// DestroyAll deletes every entry whose name equals the argument and
	// reports how many were removed.
	DestroyAll(ctx context.Context, name string) (int, error)
}

// Script is a migration's two entry points. Both are expected to be
// idempotent in intent; the core invokes them without inspecting what
// they do.
type Script interface {
	Forward(ctx context.Context) error
	Backward(ctx context.Context) error
}

// ChecksumScript is implemented by scripts that can report a content
// checksum. The runner records it on the ledger entry when available.
type ChecksumScript interface {
	Script
	Checksum() string
}

// Catalog exposes discovered migration scripts to the core. The core
// never traverses the filesystem itself; discovery and loading belong
// to the catalog implementation.
type Catalog interface {
	// Names enumerates available migration identifiers. Callers must not
	// rely on any particular order.
	Names() ([]string, error)

	// Load resolves an identifier to its script. Unknown identifiers
	// yield an error wrapping ErrScriptNotFound.
	Load(name string) (Script, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Normalize reduces an identifier to its canonical ledger form: any
// directory prefix and trailing .up.sql / .down.sql / .sql suffix is
// stripped. Discovery and target matching must both go through this
// function so the two paths never diverge.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	for _, suffix := range []string{".up.sql", ".down.sql", ".sql"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// ValidName reports whether a normalized identifier is well formed.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
