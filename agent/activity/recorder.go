// Package activity writes agent run status and prompt logs to the record store.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

const (
	FieldAgentName = "Agent Name"
	FieldCategory  = "Category"
	FieldLastRun   = "Last Run"
	FieldStatus    = "Status"
	FieldResult    = "Result"

	FieldPrompt    = "Prompt"
	FieldAgent     = "Agent"
	FieldResponse  = "Response"
	FieldTimestamp = "Timestamp"
	FieldFeature   = "Feature"
	FieldName      = "Name"
)

type Config struct {
	ActivityTable string `envconfig:"ACTIVITY_TABLE" default:"Agent Activity"`
	LogsTable     string `envconfig:"LOGS_TABLE" default:"Logs"`
	FeaturesTable string `envconfig:"FEATURES_TABLE"`
}

type Recorder struct {
	store         contractx.RecordStore
	activityTable string
	logsTable     string
	featuresTable string
	now           func() time.Time
}

var _ contractx.ActivityRecorder = (*Recorder)(nil)

func NewRecorder(store contractx.RecordStore, cfg Config) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}

	activityTable := strings.TrimSpace(cfg.ActivityTable)
	if activityTable == "" {
		activityTable = "Agent Activity"
	}
	logsTable := strings.TrimSpace(cfg.LogsTable)
	if logsTable == "" {
		logsTable = "Logs"
	}

	return &Recorder{
		store:         store,
		activityTable: activityTable,
		logsTable:     logsTable,
		featuresTable: strings.TrimSpace(cfg.FeaturesTable),
		now:           time.Now,
	}, nil
}

// RecordActivity upserts the activity row keyed by agent name. Concurrent writers for
// the same agent race; the last update wins.
func (r *Recorder) RecordActivity(ctx context.Context, rec contractx.ActivityRecord) error {
	name := strings.TrimSpace(rec.AgentName)
	if name == "" {
		return fmt.Errorf("%w: activity record requires an agent name", contractx.ErrValidation)
	}

	category := strings.TrimSpace(rec.Category)
	if category == "" {
		category = contractx.DefaultCategory
	}
	lastRun := rec.LastRun
	if lastRun.IsZero() {
		lastRun = r.now()
	}

	fields := contractx.Fields{
		FieldAgentName: name,
		FieldCategory:  category,
		FieldLastRun:   lastRun.UTC().Format(time.RFC3339),
		FieldStatus:    string(rec.Status),
		FieldResult:    contractx.Summarize(rec.ResultSummary),
	}

	existing, err := r.store.Query(ctx, r.activityTable, contractx.Filter{
		Field:      FieldAgentName,
		Value:      name,
		MaxRecords: 1,
	})
	if err != nil {
		return fmt.Errorf("%w: find activity for %s: %w", contractx.ErrRecordStore, name, err)
	}

	if len(existing) > 0 {
		if err := r.store.Update(ctx, r.activityTable, existing[0].ID, fields); err != nil {
			return fmt.Errorf("%w: update activity for %s: %w", contractx.ErrRecordStore, name, err)
		}
		log.Debug().Str("agent", name).Str("status", string(rec.Status)).Msg("activity: updated")
		return nil
	}

	if _, err := r.store.Create(ctx, r.activityTable, fields); err != nil {
		return fmt.Errorf("%w: create activity for %s: %w", contractx.ErrRecordStore, name, err)
	}
	log.Debug().Str("agent", name).Str("status", string(rec.Status)).Msg("activity: created")
	return nil
}

// RecordPrompt appends a prompt/response row to the logs table, linking the first
// feature whose name occurs in the prompt when a features table is configured.
func (r *Recorder) RecordPrompt(ctx context.Context, entry contractx.PromptLog) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	fields := contractx.Fields{
		FieldPrompt:    entry.Prompt,
		FieldAgent:     entry.Agent,
		FieldResponse:  entry.Response,
		FieldTimestamp: ts.UTC().Format(time.RFC3339),
	}

	if r.featuresTable != "" {
		featureID, err := r.findFeature(ctx, entry.Prompt)
		if err != nil {
			log.Warn().Err(err).Str("table", r.featuresTable).Msg("activity: feature lookup failed")
		} else if featureID != "" {
			fields[FieldFeature] = []string{featureID}
		}
	}

	if _, err := r.store.Create(ctx, r.logsTable, fields); err != nil {
		return fmt.Errorf("%w: create prompt log for %s: %w", contractx.ErrRecordStore, entry.Agent, err)
	}
	return nil
}

func (r *Recorder) findFeature(ctx context.Context, prompt string) (string, error) {
	features, err := r.store.Query(ctx, r.featuresTable, contractx.Filter{})
	if err != nil {
		return "", err
	}

	lower := strings.ToLower(prompt)
	for _, f := range features {
		name := strings.ToLower(strings.TrimSpace(f.String(FieldName)))
		if name != "" && strings.Contains(lower, name) {
			return f.ID, nil
		}
	}
	return "", nil
}
