package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/soundlab/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func boolPtr(b bool) *bool { return &b }

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

	id1, err := s.Record(ctx, Attempt{
		SessionID: "s1",
		TrialID:   "t1",
		Procedure: "pulse_echo",
		Action:    ActionTrigger,
		CreatedAt: at,
	})
	require.NoError(t, err)
	id2, err := s.Record(ctx, Attempt{
		SessionID: "s1",
		TrialID:   "t1",
		Procedure: "pulse_echo",
		Action:    ActionVerifyDelay,
		Input:     `{"dt_ms":43.7}`,
		Pass:      boolPtr(true),
		Message:   "Correct time!",
		CreatedAt: at.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	_, err = s.Record(ctx, Attempt{SessionID: "s2", Procedure: "data_analysis", Action: ActionFit, Kind: "insufficient_data"})
	require.NoError(t, err)

	got, err := s.Attempts(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, ActionTrigger, got[0].Action)
	assert.Nil(t, got[0].Pass)
	assert.True(t, got[0].CreatedAt.Equal(at))

	assert.Equal(t, ActionVerifyDelay, got[1].Action)
	require.NotNil(t, got[1].Pass)
	assert.True(t, *got[1].Pass)
	assert.Equal(t, `{"dt_ms":43.7}`, got[1].Input)
	assert.Equal(t, "t1", got[1].TrialID)

	other, err := s.Attempts(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "insufficient_data", other[0].Kind)
	assert.False(t, other[0].CreatedAt.IsZero())
}

func TestAttemptsEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Attempts(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordRequiresSession(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Record(context.Background(), Attempt{Action: ActionTrigger})
	assert.Error(t, err)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, Attempt{SessionID: "s1", Procedure: "pulse_echo", Action: ActionTrigger})
		require.NoError(t, err)
	}
	_, err := s.Record(ctx, Attempt{SessionID: "s2", Procedure: "pulse_echo", Action: ActionTrigger})
	require.NoError(t, err)

	n, err := s.Purge(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := s.Attempts(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := s.Attempts(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestStoresAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := openTestStore(t)
	b := openTestStore(t)
	_, err := a.Record(ctx, Attempt{SessionID: "s1", Procedure: "pulse_echo", Action: ActionTrigger})
	require.NoError(t, err)

	got, err := b.Attempts(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
