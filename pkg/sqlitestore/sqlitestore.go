// Package sqlitestore keeps records in a local SQLite file. Every logical table
// shares one "records" table, with the fields of each row stored as a JSON object.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

type Config struct {
	Path string `default:"agent-orchestrator.db"`
}

// Store implements contract.RecordStore on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ contractx.RecordStore = (*Store)(nil)

// Open opens (or creates) the database at cfg.Path and runs the schema migration.
func Open(cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite path is empty", contractx.ErrConfiguration)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open record db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate record db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			table_name TEXT NOT NULL,
			fields     TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_records_table ON records(table_name);
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Query(ctx context.Context, table string, filter contractx.Filter) ([]contractx.Record, error) {
	query := `SELECT id, fields, created_at FROM records WHERE table_name = ?`
	args := []any{table}
	if !filter.IsZero() {
		path, err := jsonPath(filter.Field)
		if err != nil {
			return nil, err
		}
		query += ` AND CAST(json_extract(fields, ?) AS TEXT) = ?`
		args = append(args, path, filter.Value)
	}
	query += ` ORDER BY seq ASC`
	if filter.MaxRecords > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.MaxRecords)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []contractx.Record
	for rows.Next() {
		var (
			id, rawFields, created string
		)
		if err := rows.Scan(&id, &rawFields, &created); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := toRecord(id, rawFields, created)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, table string, fields contractx.Fields) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	if fields == nil {
		fields = contractx.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal record fields: %w", err)
	}

	recordID := "rec" + id.String()
	now := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, table_name, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		recordID, table, string(raw), now, now,
	); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return recordID, nil
}

// Update merges fields into the stored JSON object. The read and write run in one
// transaction so a concurrent update on the same row cannot drop keys.
func (s *Store) Update(ctx context.Context, table string, recordID string, fields contractx.Fields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var rawFields string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM records WHERE table_name = ? AND id = ?`, table, recordID,
	).Scan(&rawFields)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: table=%s id=%s", contractx.ErrRecordNotFound, table, recordID)
	}
	if err != nil {
		return fmt.Errorf("load record: %w", err)
	}

	current := contractx.Fields{}
	if err := json.Unmarshal([]byte(rawFields), &current); err != nil {
		return fmt.Errorf("decode record fields: %w", err)
	}
	maps.Copy(current, fields)
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET fields = ?, updated_at = ? WHERE table_name = ? AND id = ?`,
		string(merged), s.now().UTC().Format(time.RFC3339Nano), table, recordID,
	); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return tx.Commit()
}

func jsonPath(field string) (string, error) {
	if field == "" || strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("%w: unsupported filter field %q", contractx.ErrValidation, field)
	}
	return `$."` + field + `"`, nil
}

func toRecord(id, rawFields, created string) (contractx.Record, error) {
	rec := contractx.Record{ID: id, Fields: contractx.Fields{}}
	if err := json.Unmarshal([]byte(rawFields), &rec.Fields); err != nil {
		return contractx.Record{}, fmt.Errorf("decode record %s fields: %w", id, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedTime = ts
	}
	return rec, nil
}
