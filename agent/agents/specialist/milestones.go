package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

const (
	FieldMilestone = "Milestone"
	FieldStatus    = "Status"
	FieldDone      = "Done"

	MilestoneStatusDone = "Done"
)

// Milestones marks project milestones complete in the record store.
type Milestones struct {
	store contractx.RecordStore
	table string
}

func NewMilestones(store contractx.RecordStore, table string) (*Milestones, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	table = strings.TrimSpace(table)
	if table == "" {
		table = "Milestones"
	}
	return &Milestones{store: store, table: table}, nil
}

// MarkDone sets Status=Done and Done=true on the first row whose Milestone equals name.
func (m *Milestones) MarkDone(ctx context.Context, name string) error {
	recs, err := m.store.Query(ctx, m.table, contractx.Filter{
		Field:      FieldMilestone,
		Value:      name,
		MaxRecords: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: find milestone %q: %w", contractx.ErrRecordStore, name, err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: %q", contractx.ErrMilestoneNotFound, name)
	}

	if err := m.store.Update(ctx, m.table, recs[0].ID, contractx.Fields{
		FieldStatus: MilestoneStatusDone,
		FieldDone:   true,
	}); err != nil {
		return fmt.Errorf("%w: update milestone %q: %w", contractx.ErrRecordStore, name, err)
	}

	log.Info().Str("milestone", name).Msg("specialist: milestone marked done")
	return nil
}
