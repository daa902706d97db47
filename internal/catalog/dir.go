package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/example/schema-migrator/internal/migrate"
)

// scriptFilePattern matches {name}.up.sql and {name}.down.sql files.
var scriptFilePattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*?)\.(up|down)\.sql$`)

// Dir discovers migration scripts as paired {name}.up.sql and
// {name}.down.sql files in a single directory and loads them as SQL
// scripts executed against the supplied database.
type Dir struct {
	db  *sql.DB
	dir string
}

// NewDir returns a catalog over the given scripts directory. Scripts
// loaded from it execute against db, one transaction per invocation.
func NewDir(db *sql.DB, dir string) *Dir {
	return &Dir{db: db, dir: dir}
}

// Names enumerates the identifiers of every complete script pair in the
// directory, ascending lexicographically. Files that do not follow the
// naming convention, and pairs missing one side, abort the scan.
func (d *Dir) Names() ([]string, error) {
	pairs, err := d.scan()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load reads both sides of the named script pair.
func (d *Dir) Load(name string) (migrate.Script, error) {
	name = migrate.Normalize(name)
	pairs, err := d.scan()
	if err != nil {
		return nil, err
	}
	pair, ok := pairs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", migrate.ErrScriptNotFound, name)
	}

	up, err := d.readScript(pair.up)
	if err != nil {
		return nil, err
	}
	down, err := d.readScript(pair.down)
	if err != nil {
		return nil, err
	}
	return NewSQLScript(d.db, name, up, down), nil
}

type scriptPair struct {
	up   string
	down string
}

// scan walks the directory once and pairs up/down files by identifier.
func (d *Dir) scan() (map[string]scriptPair, error) {
	if _, err := os.Stat(d.dir); err != nil {
		return nil, &ScanError{Path: d.dir, Operation: "stat", Err: err}
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, &ScanError{Path: d.dir, Operation: "read directory", Err: err}
	}

	pairs := make(map[string]scriptPair)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		matches := scriptFilePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			return nil, &ScanError{
				Path:      entry.Name(),
				Operation: "parse",
				Err:       fmt.Errorf("%w: expected {name}.up.sql or {name}.down.sql", ErrInvalidScriptName),
			}
		}
		name := migrate.Normalize(matches[1])
		if !migrate.ValidName(name) {
			return nil, &ScanError{
				Path:      entry.Name(),
				Operation: "parse",
				Err:       ErrInvalidScriptName,
			}
		}
		pair := pairs[name]
		path := filepath.Join(d.dir, entry.Name())
		if matches[2] == "up" {
			pair.up = path
		} else {
			pair.down = path
		}
		pairs[name] = pair
	}

	for name, pair := range pairs {
		if pair.up == "" || pair.down == "" {
			return nil, &ScanError{
				Path:      name,
				Operation: "pair",
				Err:       ErrUnpairedScript,
			}
		}
	}
	return pairs, nil
}

// readScript loads one file and validates it holds at least one statement.
func (d *Dir) readScript(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &ScanError{Path: path, Operation: "read", Err: err}
	}
	if len(splitStatements(string(content))) == 0 {
		return "", &ScanError{Path: path, Operation: "parse", Err: ErrEmptyScript}
	}
	return string(content), nil
}
