package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// InitDB initializes the database tables
func (db *DB) InitDB() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at
		ON sessions(expires_at)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_events_occurred_at
		ON audit_events(occurred_at)`,
		`CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_key TEXT NOT NULL UNIQUE,
			size_bytes INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME,
			deleted_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_expires_at
		ON uploads(expires_at)`,
		`CREATE TABLE IF NOT EXISTS monthly_rollups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			UNIQUE(name, year, month)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CountWhere returns the number of rows in table matching where.
func (db *DB) CountWhere(ctx context.Context, table, where string, args ...any) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, where)
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// DeleteChunked removes rows matching where in batches of chunk rows,
// issuing one DELETE per batch. notify, when non-nil, runs after every
// batch with the number of rows that batch removed. Returns the total
// number of rows deleted.
func (db *DB) DeleteChunked(ctx context.Context, table, where string, args []any, chunk int, notify func(int64)) (int64, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("delete %s: chunk must be positive, got %d", table, chunk)
	}

	q := fmt.Sprintf(
		"DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s WHERE %s LIMIT ?)",
		table, table, where,
	)
	qargs := append(append([]any{}, args...), chunk)

	var total int64
	for {
		res, err := db.ExecContext(ctx, q, qargs...)
		if err != nil {
			return total, fmt.Errorf("delete %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete %s: rows affected: %w", table, err)
		}
		if n == 0 {
			break
		}

		total += n
		if notify != nil {
			notify(n)
		}
		if n < int64(chunk) {
			break
		}
	}
	return total, nil
}

// PruneEach deletes rows matching where one at a time, in batches of
// chunk rows. keyCol identifies the row to delete; its value is passed
// to each, when non-nil, before the row is removed. notify runs after
// every batch with the number of rows it removed. Returns the total
// number of rows deleted.
func (db *DB) PruneEach(ctx context.Context, table, keyCol, where string, args []any, chunk int, each func(context.Context, any) error, notify func(int64)) (int64, error) {
	if chunk <= 0 {
		return 0, fmt.Errorf("prune %s: chunk must be positive, got %d", table, chunk)
	}

	selQ := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT ?", keyCol, table, where)
	delQ := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, keyCol)
	selArgs := append(append([]any{}, args...), chunk)

	var total int64
	for {
		keys, err := db.selectKeys(ctx, selQ, selArgs)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		if len(keys) == 0 {
			break
		}

		var batch int64
		for _, key := range keys {
			if each != nil {
				if err := each(ctx, key); err != nil {
					return total + batch, fmt.Errorf("prune %s: %w", table, err)
				}
			}
			res, err := db.ExecContext(ctx, delQ, key)
			if err != nil {
				return total + batch, fmt.Errorf("prune %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return total + batch, fmt.Errorf("prune %s: rows affected: %w", table, err)
			}
			batch += n
		}

		total += batch
		if notify != nil && batch > 0 {
			notify(batch)
		}
		if len(keys) < chunk {
			break
		}
	}
	return total, nil
}

func (db *DB) selectKeys(ctx context.Context, q string, args []any) ([]any, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []any
	for rows.Next() {
		var key any
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		// The driver hands TEXT columns back as []byte; rebinding a
		// blob would not compare equal to a TEXT key.
		if b, ok := key.([]byte); ok {
			key = string(b)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Vacuum reclaims the space left behind by deleted rows.
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return nil
}
