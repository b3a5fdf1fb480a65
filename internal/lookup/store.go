package lookup

import (
	"context"
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrPatternNotFound is returned when a named pattern is absent from a Store.
var ErrPatternNotFound = errors.New("lookup: pattern not found")

// Store persists named pattern tables in a SQLite database.
type Store struct {
	db *sql.DB
}

// PatternInfo describes a stored pattern without its samples.
type PatternInfo struct {
	ID      string
	Name    string
	Complex bool
	Samples int
}

// OpenStore opens (creating if needed) the SQLite database at path and
// brings its schema up to date.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open pattern store")
	}
	// A single connection keeps writes serialized and lets ":memory:" work.
	db.SetMaxOpenConns(1)
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errors.Wrap(err, "load migrations")
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return errors.Wrap(err, "create sqlite driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}
	// m is not closed: closing it would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SavePattern stores t under name, replacing any pattern of the same name.
// It returns the new pattern id.
func (s *Store) SavePattern(ctx context.Context, name string, t *Table) (string, error) {
	if name == "" {
		return "", errors.New("lookup: pattern name is required")
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pattern_samples
		WHERE pattern_id IN (SELECT pattern_id FROM patterns WHERE name = ?)`, name); err != nil {
		return "", errors.Wrapf(err, "replace pattern %q", name)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE name = ?`, name); err != nil {
		return "", errors.Wrapf(err, "replace pattern %q", name)
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO patterns (pattern_id, name, is_complex) VALUES (?, ?, ?)`,
		id, name, t.Complex); err != nil {
		return "", errors.Wrapf(err, "insert pattern %q", name)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pattern_samples (pattern_id, sample_index, x, y, weight_real, weight_imag)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, p := range t.Positions {
		v := t.Values[i]
		if _, err := stmt.ExecContext(ctx, id, i, p.X, p.Y, real(v), imag(v)); err != nil {
			return "", errors.Wrapf(err, "insert sample %d of %q", i, name)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// LoadPattern returns the pattern stored under name.
func (s *Store) LoadPattern(ctx context.Context, name string) (*Table, error) {
	var (
		id        string
		isComplex bool
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT pattern_id, is_complex FROM patterns WHERE name = ?`, name).Scan(&id, &isComplex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrPatternNotFound, "%q", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load pattern %q", name)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y, weight_real, weight_imag
		FROM pattern_samples
		WHERE pattern_id = ?
		ORDER BY sample_index`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "load samples of %q", name)
	}
	defer rows.Close()

	t := &Table{Complex: isComplex}
	for rows.Next() {
		var x, y, re, im float64
		if err := rows.Scan(&x, &y, &re, &im); err != nil {
			return nil, err
		}
		t.Positions = append(t.Positions, r2.Vec{X: x, Y: y})
		t.Values = append(t.Values, complex(re, im))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrapf(err, "pattern %q", name)
	}
	return t, nil
}

// ListPatterns returns every stored pattern ordered by name.
func (s *Store) ListPatterns(ctx context.Context) ([]PatternInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.pattern_id, p.name, p.is_complex, COUNT(ps.sample_index)
		FROM patterns p
		LEFT JOIN pattern_samples ps ON ps.pattern_id = p.pattern_id
		GROUP BY p.pattern_id, p.name, p.is_complex
		ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatternInfo
	for rows.Next() {
		var info PatternInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Complex, &info.Samples); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeletePattern removes the named pattern.
func (s *Store) DeletePattern(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM pattern_samples
		WHERE pattern_id IN (SELECT pattern_id FROM patterns WHERE name = ?)`, name); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrPatternNotFound, "%q", name)
	}
	return tx.Commit()
}

// Source returns a Source that loads the named pattern from s.
func (s *Store) Source(name string) Source {
	return storeSource{store: s, name: name}
}

type storeSource struct {
	store *Store
	name  string
}

func (s storeSource) String() string { return "store#" + s.name }

func (s storeSource) Load(ctx context.Context) (*Table, error) {
	return s.store.LoadPattern(ctx, s.name)
}

// SQLiteSource loads a named pattern from the database at Path. The database
// is opened for each Load and closed afterwards.
type SQLiteSource struct {
	Path string
	Name string
}

func (s SQLiteSource) String() string { return "sqlite://" + s.Path + "#" + s.Name }

func (s SQLiteSource) Load(ctx context.Context) (*Table, error) {
	store, err := OpenStore(s.Path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.LoadPattern(ctx, s.Name)
}
