// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scope

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tombee/exprkit/pkg/errors"
)

// SQLiteStore persists scope variables in a SQLite database, for hosts
// whose units of work outlive the process. Values are JSON-encoded, so
// only JSON-representable variables survive a round trip.
//
// Features:
//   - WAL mode for better concurrency
//   - one row per (scope_id, name) pair
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) a variable store at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, &errors.ValidationError{
			Field:   "path",
			Message: "database path is required",
		}
	}

	// WAL mode allows concurrent readers alongside a single writer.
	connStr := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scopes (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS variables (
		scope_id TEXT NOT NULL,
		name     TEXT NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (scope_id, name)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// CreateScope creates a new persisted scope and returns a handle to it.
func (s *SQLiteStore) CreateScope(ctx context.Context) (*DurableScope, error) {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scopes (id, created_at) VALUES (?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to create scope: %w", err)
	}

	return &DurableScope{store: s, id: id}, nil
}

// Scope returns a handle to an existing persisted scope.
func (s *SQLiteStore) Scope(ctx context.Context, id string) (*DurableScope, error) {
	var found string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM scopes WHERE id = ?`, id).Scan(&found)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "scope", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scope: %w", err)
	}

	return &DurableScope{store: s, id: id}, nil
}

// DeleteScope removes a scope and all its variables.
func (s *SQLiteStore) DeleteScope(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM variables WHERE scope_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete variables: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scopes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete scope: %w", err)
	}

	return tx.Commit()
}

// DurableScope is a VariableScope backed by a SQLiteStore. Reads and writes
// go straight through to the database; the cached-context slot stays in
// memory, bound to this handle.
//
// The single-writer host contract applies to handles as well: two handles
// to the same scope ID must not be evaluated against concurrently.
type DurableScope struct {
	store  *SQLiteStore
	id     string
	cached any
}

// ID returns the scope identity.
func (d *DurableScope) ID() string {
	return d.id
}

// GetVariable returns the named variable and whether it exists.
func (d *DurableScope) GetVariable(name string) (any, bool) {
	var raw string
	err := d.store.db.QueryRow(
		`SELECT value FROM variables WHERE scope_id = ? AND name = ?`,
		d.id, name).Scan(&raw)
	if err != nil {
		return nil, false
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false
	}
	return value, true
}

// SetVariable creates or updates the named variable.
// Values that cannot be JSON-encoded are dropped.
func (d *DurableScope) SetVariable(name string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}

	_, _ = d.store.db.Exec(
		`INSERT INTO variables (scope_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (scope_id, name) DO UPDATE SET value = excluded.value`,
		d.id, name, string(raw))
}

// HasVariable reports whether the named variable exists.
func (d *DurableScope) HasVariable(name string) bool {
	var one int
	err := d.store.db.QueryRow(
		`SELECT 1 FROM variables WHERE scope_id = ? AND name = ?`,
		d.id, name).Scan(&one)
	return err == nil
}

// VariableNames returns the names of all variables in the scope.
func (d *DurableScope) VariableNames() []string {
	rows, err := d.store.db.Query(
		`SELECT name FROM variables WHERE scope_id = ? ORDER BY name`, d.id)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names
		}
		names = append(names, name)
	}
	return names
}

// CachedContext implements ContextCacher.
func (d *DurableScope) CachedContext() any {
	return d.cached
}

// SetCachedContext implements ContextCacher.
func (d *DurableScope) SetCachedContext(ctx any) {
	d.cached = ctx
}
