// Package pgstore keeps records in PostgreSQL through bun. Each logical table maps
// to rows of a single "records" relation whose fields live in a jsonb column.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

type Config struct {
	DSN string `required:"true"`
}

type recordRow struct {
	bun.BaseModel `bun:"table:records,alias:r"`

	ID         string           `bun:"id,pk"`
	Collection string           `bun:"table_name,notnull"`
	Fields     contractx.Fields `bun:"fields,type:jsonb,notnull"`
	CreatedAt  time.Time        `bun:"created_at,notnull"`
	UpdatedAt  time.Time        `bun:"updated_at,notnull"`
}

// Store implements contract.RecordStore on PostgreSQL.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

var _ contractx.RecordStore = (*Store)(nil)

// Open connects with cfg.DSN and creates the records relation when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", contractx.ErrConfiguration)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*recordRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*recordRow)(nil)).
		Index("idx_records_table_name").
		IfNotExists().
		Column("table_name").
		Exec(ctx); err != nil {
		return fmt.Errorf("migrate records index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Query(ctx context.Context, table string, filter contractx.Filter) ([]contractx.Record, error) {
	var rows []recordRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("r.table_name = ?", table).
		OrderExpr("r.created_at ASC, r.id ASC")
	if !filter.IsZero() {
		q = q.Where("r.fields ->> ? = ?", filter.Field, filter.Value)
	}
	if filter.MaxRecords > 0 {
		q = q.Limit(filter.MaxRecords)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	out := make([]contractx.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, table string, fields contractx.Fields) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}
	if fields == nil {
		fields = contractx.Fields{}
	}

	now := s.now().UTC()
	row := &recordRow{
		ID:         "rec" + id.String(),
		Collection: table,
		Fields:     fields,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return row.ID, nil
}

// Update merges fields into the stored jsonb object with the || operator.
func (s *Store) Update(ctx context.Context, table string, recordID string, fields contractx.Fields) error {
	if fields == nil {
		fields = contractx.Fields{}
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*recordRow)(nil)).
		Set("fields = r.fields || ?::jsonb", string(patch)).
		Set("updated_at = ?", s.now().UTC()).
		Where("r.table_name = ?", table).
		Where("r.id = ?", recordID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: table=%s id=%s", contractx.ErrRecordNotFound, table, recordID)
	}
	return nil
}

func (r recordRow) record() contractx.Record {
	fields := r.Fields
	if fields == nil {
		fields = contractx.Fields{}
	}
	return contractx.Record{ID: r.ID, CreatedTime: r.CreatedAt, Fields: fields}
}
