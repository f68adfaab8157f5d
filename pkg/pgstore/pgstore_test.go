package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx := context.Background()
	store, err := Open(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.db.NewDelete().Model((*recordRow)(nil)).Where("1 = 1").Exec(ctx)
	require.NoError(t, err)
	return store
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.ErrorIs(t, err, contractx.ErrConfiguration)
}

func TestRecordRowDefaultsFields(t *testing.T) {
	t.Parallel()

	rec := recordRow{ID: "rec1"}.record()
	require.NotNil(t, rec.Fields)
	require.Equal(t, "rec1", rec.ID)
}

func TestCreateQueryUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	id, err := store.Create(ctx, "Agent Activity", contractx.Fields{"Agent Name": "pm_agent", "Status": "Success"})
	require.NoError(t, err)

	_, err = store.Create(ctx, "Agent Activity", contractx.Fields{"Agent Name": "travel_agent", "Status": "Failed"})
	require.NoError(t, err)

	recs, err := store.Query(ctx, "Agent Activity", contractx.Filter{Field: "Agent Name", Value: "pm_agent", MaxRecords: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, id, recs[0].ID)

	require.NoError(t, store.Update(ctx, "Agent Activity", id, contractx.Fields{"Status": "Failed"}))

	recs, err = store.Query(ctx, "Agent Activity", contractx.Filter{Field: "Agent Name", Value: "pm_agent"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "Failed", recs[0].String("Status"))
	require.Equal(t, "pm_agent", recs[0].String("Agent Name"))
}

func TestUpdateMissingRecord(t *testing.T) {
	store := setupTestStore(t)

	err := store.Update(context.Background(), "Milestones", "recMissing", contractx.Fields{"Done": true})
	require.ErrorIs(t, err, contractx.ErrRecordNotFound)
}
