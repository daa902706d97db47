package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/schema-migrator/internal/migrate"
)

// Store implements migrate.LedgerStore on a SQLite table. Each entry is
// written and deleted independently; no transaction spans multiple
// ledger entries.
type Store struct {
	db *sql.DB
}

// Open connects to the ledger database and returns a store over it.
func Open(cfg Config) (*Store, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle so migration scripts can execute
// against the same database the ledger lives in.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureLedger creates the ledger table when it does not exist yet.
func (s *Store) EnsureLedger(ctx context.Context) error {
	createSQL := `
		CREATE TABLE IF NOT EXISTS migration_ledger (
			name TEXT PRIMARY KEY,
			ran_at TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT ''
		);
	`
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("sqlite: create migration_ledger table: %w", err)
	}
	return nil
}

// Find returns ledger entries matching the filter's name bounds in the
// requested order.
func (s *Store) Find(ctx context.Context, filter migrate.Filter) ([]migrate.Entry, error) {
	query := "SELECT name, ran_at, checksum FROM migration_ledger"
	var (
		clauses []string
		args    []any
	)
	if filter.NameMin != "" {
		clauses = append(clauses, "name >= ?")
		args = append(args, filter.NameMin)
	}
	if filter.NameMax != "" {
		clauses = append(clauses, "name <= ?")
		args = append(args, filter.NameMax)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Order == migrate.Descending {
		query += " ORDER BY name DESC"
	} else {
		query += " ORDER BY name ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query ledger: %w", err)
	}
	defer rows.Close()

	var entries []migrate.Entry
	for rows.Next() {
		var (
			entry    migrate.Entry
			ranAtStr string
		)
		if err := rows.Scan(&entry.Name, &ranAtStr, &entry.Checksum); err != nil {
			return nil, fmt.Errorf("sqlite: scan ledger entry: %w", err)
		}
		ranAt, parseErr := time.Parse(time.RFC3339Nano, ranAtStr)
		if parseErr != nil {
			return nil, fmt.Errorf("sqlite: ledger entry %s has malformed ran_at %q: %w", entry.Name, ranAtStr, parseErr)
		}
		entry.RanAt = ranAt
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate ledger: %w", err)
	}
	return entries, nil
}

// Create records a newly applied migration.
func (s *Store) Create(ctx context.Context, entry migrate.Entry) (migrate.Entry, error) {
	if entry.RanAt.IsZero() {
		entry.RanAt = time.Now().UTC()
	}
	insertSQL := "INSERT INTO migration_ledger (name, ran_at, checksum) VALUES (?, ?, ?)"
	_, err := s.db.ExecContext(ctx, insertSQL, entry.Name, entry.RanAt.UTC().Format(time.RFC3339Nano), entry.Checksum)
	if err != nil {
		return migrate.Entry{}, fmt.Errorf("sqlite: record ledger entry %s: %w", entry.Name, err)
	}
	return entry, nil
}

// DestroyAll deletes every entry with the given name. The predicate is
// unconditional on the name even though the primary key makes more than
// one match impossible in this store.
func (s *Store) DestroyAll(ctx context.Context, name string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM migration_ledger WHERE name = ?", name)
	if err != nil {
		return 0, fmt.Errorf("sqlite: remove ledger entries for %s: %w", name, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: count removed ledger entries for %s: %w", name, err)
	}
	return int(affected), nil
}

var _ migrate.LedgerStore = (*Store)(nil)
