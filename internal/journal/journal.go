// Package journal records every mutating station operation in an embedded
// libSQL database. The journal is an audit trail only; the JSON files stay
// the source of truth.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/stationflow/pkg/schema"
)

// Entry is one journaled operation. Sequence increases per station.
type Entry struct {
	ID        int64           `json:"id"`
	StationID string          `json:"station_id"`
	Operation string          `json:"operation"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// Filter narrows Recent.
type Filter struct {
	Operation string
	Since     *time.Time
	Limit     int
}

// Journal is the libSQL-backed operation journal.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at dbPath ("file:/path/journal.db") and applies
// pending migrations.
func Open(ctx context.Context, dbPath string) (*Journal, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRowContext(ctx, p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends an entry for stationID. payload is marshaled to JSON when
// not nil.
func (j *Journal) Record(ctx context.Context, stationID, op string, payload any) (*Entry, error) {
	e := &Entry{StationID: stationID, Operation: op}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal journal payload: %w", err)
		}
		e.Payload = raw
	}
	if err := j.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Append writes e with the next per-station sequence and fills in ID,
// Sequence and Timestamp. An empty StationID records a repository-wide
// operation (backup, cleanup, migration) in its own sequence.
func (j *Journal) Append(ctx context.Context, e *Entry) error {
	if e.Operation == "" {
		return schema.NewError(schema.ErrCodeValidation, "journal entry needs an operation")
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM journal WHERE station_id = ?`, e.StationID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO journal (station_id, operation, actor, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.StationID, e.Operation, nullStr(e.Actor), nullRaw(e.Payload), e.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal entry: %w", err)
	}
	e.Sequence = seq
	return nil
}

// List returns the entries of one station with sequence > since, oldest first.
func (j *Journal) List(ctx context.Context, stationID string, since int64) ([]*Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, station_id, operation, actor, payload, timestamp, sequence
		 FROM journal WHERE station_id = ? AND sequence > ? ORDER BY sequence ASC`,
		stationID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns entries across all stations, newest first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]*Entry, error) {
	query := `SELECT id, station_id, operation, actor, payload, timestamp, sequence FROM journal WHERE 1=1`
	var args []any
	if f.Operation != "" {
		query += " AND operation = ?"
		args = append(args, f.Operation)
	}
	if f.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *f.Since)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var actor, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.StationID, &e.Operation, &actor, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.Actor = actor.String
		if payload.Valid && payload.String != "" {
			e.Payload = json.RawMessage(payload.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}
