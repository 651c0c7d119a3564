package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
	seedSuffix = ".sql"
)

// Manager applies SQL migration and seed files from disk. Every applied file
// is recorded in a journal table, so reruns skip what is already in place.
// Migration and seed directories are flat; files run in name order.
type Manager struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	migrations    journal
	seeds         journal
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the migrations journal table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrations.table = name
		}
	}
}

// WithSeedsTable overrides the seeds journal table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seeds.table = name
		}
	}
}

// NewManager constructs a Manager over an open database handle.
func NewManager(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
		migrations:    journal{db: db, table: defaultMigrationsTable},
		seeds:         journal{db: db, table: defaultSeedsTable},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies every pending migration and returns the names it applied.
func (m *Manager) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureJournals(ctx); err != nil {
		return nil, err
	}
	done, err := m.migrations.entries(ctx)
	if err != nil {
		return nil, err
	}
	names, err := listSQL(m.migrationsDir, upSuffix)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := m.applyFile(ctx, filepath.Join(m.migrationsDir, name)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		if err := m.migrations.record(ctx, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

// Down rolls back the most recently applied migration and returns its name.
func (m *Manager) Down(ctx context.Context) (string, error) {
	if err := m.ensureJournals(ctx); err != nil {
		return "", err
	}
	history, err := m.migrations.ordered(ctx)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", errors.New("nothing to roll back")
	}

	last := history[len(history)-1]
	down := filepath.Join(m.migrationsDir, strings.TrimSuffix(last, upSuffix)+downSuffix)
	if _, err := os.Stat(down); err != nil {
		return "", fmt.Errorf("no down file for %s", last)
	}
	if err := m.applyFile(ctx, down); err != nil {
		return "", fmt.Errorf("roll back %s: %w", last, err)
	}
	if err := m.migrations.remove(ctx, last); err != nil {
		return "", err
	}
	return last, nil
}

// Status lists applied migrations in apply order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureJournals(ctx); err != nil {
		return nil, err
	}
	return m.migrations.ordered(ctx)
}

// Seed applies pending seed files and returns the names it applied.
func (m *Manager) Seed(ctx context.Context) ([]string, error) {
	if err := m.ensureJournals(ctx); err != nil {
		return nil, err
	}
	done, err := m.seeds.entries(ctx)
	if err != nil {
		return nil, err
	}
	names, err := listSQL(m.seedsDir, seedSuffix)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := m.applyFile(ctx, filepath.Join(m.seedsDir, name)); err != nil {
			return applied, fmt.Errorf("apply seed %s: %w", name, err)
		}
		if err := m.seeds.record(ctx, name); err != nil {
			return applied, err
		}
		applied = append(applied, name)
	}
	return applied, nil
}

func (m *Manager) ensureJournals(ctx context.Context) error {
	if err := m.migrations.ensure(ctx); err != nil {
		return err
	}
	return m.seeds.ensure(ctx)
}

// applyFile runs one SQL file inside a single transaction.
func (m *Manager) applyFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// journal is one bookkeeping table of applied file names.
type journal struct {
	db    *sql.DB
	table string
}

func (j journal) ensure(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, fmt.Sprintf(
		`create table if not exists %s (name text primary key, applied_at timestamptz not null default now())`,
		j.table))
	return err
}

func (j journal) record(ctx context.Context, name string) error {
	_, err := j.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s (name) values ($1)`, j.table), name)
	return err
}

func (j journal) remove(ctx context.Context, name string) error {
	_, err := j.db.ExecContext(ctx,
		fmt.Sprintf(`delete from %s where name = $1`, j.table), name)
	return err
}

func (j journal) entries(ctx context.Context) (map[string]bool, error) {
	rows, err := j.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, j.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
	return done, rows.Err()
}

func (j journal) ordered(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		fmt.Sprintf(`select name from %s order by applied_at, name`, j.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// listSQL returns the file names in dir carrying suffix, sorted by name. A
// missing directory reads as empty so fresh checkouts work without seeds.
func listSQL(dir, suffix string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements cuts a file into executable statements on semicolons that
// sit outside single-quoted strings. A doubled quote inside a string toggles
// the state twice and lands back where it started.
func splitStatements(input string) []string {
	var out []string
	start := 0
	inQuote := false
	for i := 0; i < len(input); i++ {
		switch input[i] {
		case '\'':
			inQuote = !inQuote
		case ';':
			if inQuote {
				continue
			}
			if stmt := strings.TrimSpace(input[start : i+1]); stmt != "" {
				out = append(out, stmt)
			}
			start = i + 1
		}
	}
	if stmt := strings.TrimSpace(input[start:]); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
