package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLiteRegistry keeps configurations in a local SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

var _ Registry = (*SQLiteRegistry)(nil)

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteRegistry, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteRegistry{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS configs(
	  id         TEXT PRIMARY KEY,
	  name       TEXT NOT NULL UNIQUE,
	  document   TEXT NOT NULL CHECK (json_valid(document)),
	  created_at TEXT NOT NULL,
	  updated_at TEXT NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create registry tables: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

// FetchByName returns the document stored under name.
func (r *SQLiteRegistry) FetchByName(ctx context.Context, name string) ([]byte, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM configs WHERE name = ?`, name).Scan(&doc)
	if err != nil {
		return nil, notFound(err, "name", name)
	}
	return []byte(doc), nil
}

// ResolveIdentifier returns the id for name.
func (r *SQLiteRegistry) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM configs WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return "", notFound(err, "name", name)
	}
	return id, nil
}

// FetchByID returns the document with id.
func (r *SQLiteRegistry) FetchByID(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := r.db.QueryRowContext(ctx, `SELECT document FROM configs WHERE id = ?`, id).Scan(&doc)
	if err != nil {
		return nil, notFound(err, "id", id)
	}
	return []byte(doc), nil
}

// Save inserts or replaces a document. Names are unique across configurations.
func (r *SQLiteRegistry) Save(ctx context.Context, data []byte, existingID string) (string, error) {
	name, err := DocumentName(data)
	if err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT id FROM configs WHERE name = ?`, name).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return "", fmt.Errorf("failed to check name: %w", err)
	case owner != existingID:
		return "", fmt.Errorf("%w: %s", ErrConflict, name)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := existingID
	if id == "" {
		id = uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO configs(id, name, document, created_at, updated_at) VALUES(?,?,json(?),?,?)`,
			id, name, string(data), now, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert configuration: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`UPDATE configs SET name = ?, document = json(?), updated_at = ? WHERE id = ?`,
			name, string(data), now, id)
		if err != nil {
			return "", fmt.Errorf("failed to update configuration: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return "", fmt.Errorf("%w: id %s", ErrNotFound, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// Delete removes the configuration with id.
func (r *SQLiteRegistry) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM configs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return nil
}

// List returns every configuration ordered by name.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM configs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, updated string
		if err := rows.Scan(&e.ID, &e.Name, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func notFound(err error, key, value string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, key, value)
	}
	return fmt.Errorf("registry query by %s: %w", key, err)
}
