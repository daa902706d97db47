package catalog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/example/schema-migrator/internal/migrate"
)

// SQLScript is a migration whose forward and backward actions are SQL
// files executed against a database, each inside one transaction.
type SQLScript struct {
	db       *sql.DB
	name     string
	up       string
	down     string
	checksum string
}

// NewSQLScript builds a script from raw up and down SQL content.
func NewSQLScript(db *sql.DB, name, up, down string) *SQLScript {
	sum := blake2b.Sum256([]byte(up + "\n" + down))
	return &SQLScript{
		db:       db,
		name:     name,
		up:       up,
		down:     down,
		checksum: hex.EncodeToString(sum[:]),
	}
}

// Name returns the migration identifier this script belongs to.
func (s *SQLScript) Name() string {
	return s.name
}

// Checksum returns the blake2b digest of the script pair's content.
func (s *SQLScript) Checksum() string {
	return s.checksum
}

// Forward executes the up SQL.
func (s *SQLScript) Forward(ctx context.Context) error {
	return s.execute(ctx, s.up)
}

// Backward executes the down SQL.
func (s *SQLScript) Backward(ctx context.Context) error {
	return s.execute(ctx, s.down)
}

// execute runs every statement of one side within a single transaction
// so a failing statement leaves the target database unchanged.
func (s *SQLScript) execute(ctx context.Context, content string) error {
	statements := splitStatements(content)
	if len(statements) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyScript, s.name)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", s.name, err)
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("execute statement %d of %s: %v (rollback failed: %w)", i+1, s.name, err, rbErr)
			}
			return fmt.Errorf("execute statement %d of %s: %w", i+1, s.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", s.name, err)
	}
	return nil
}

// splitStatements divides SQL content into executable statements,
// dropping comment-only and empty fragments.
func splitStatements(content string) []string {
	var statements []string
	for _, fragment := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(fragment, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}

// compile-time interface checks
var (
	_ migrate.Catalog        = (*Dir)(nil)
	_ migrate.ChecksumScript = (*SQLScript)(nil)
)
