// Package memstore is a process-local record store. It backs the "memory" store
// backend and the tests of packages that write through contract.RecordStore.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

type Store struct {
	mu     sync.Mutex
	tables map[string][]contractx.Record
	now    func() time.Time
}

var _ contractx.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{
		tables: map[string][]contractx.Record{},
		now:    time.Now,
	}
}

func (s *Store) Query(ctx context.Context, table string, filter contractx.Filter) ([]contractx.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []contractx.Record
	for _, rec := range s.tables[table] {
		if !filter.IsZero() && fmt.Sprint(rec.Fields[filter.Field]) != filter.Value {
			continue
		}
		out = append(out, cloneRecord(rec))
		if filter.MaxRecords > 0 && len(out) >= filter.MaxRecords {
			break
		}
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, table string, fields contractx.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate record id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := contractx.Record{
		ID:          "rec" + id.String(),
		CreatedTime: s.now().UTC(),
		Fields:      maps.Clone(fields),
	}
	if rec.Fields == nil {
		rec.Fields = contractx.Fields{}
	}
	s.tables[table] = append(s.tables[table], rec)
	return rec.ID, nil
}

// Update merges fields into the record like a PATCH.
func (s *Store) Update(ctx context.Context, table string, recordID string, fields contractx.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rec := range s.tables[table] {
		if rec.ID != recordID {
			continue
		}
		maps.Copy(s.tables[table][i].Fields, fields)
		return nil
	}
	return fmt.Errorf("%w: table=%s id=%s", contractx.ErrRecordNotFound, table, recordID)
}

// Records returns a copy of every record in table, in insertion order.
func (s *Store) Records(table string) []contractx.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]contractx.Record, 0, len(s.tables[table]))
	for _, rec := range s.tables[table] {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func cloneRecord(rec contractx.Record) contractx.Record {
	rec.Fields = maps.Clone(rec.Fields)
	return rec
}
