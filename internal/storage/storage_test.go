package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func snapshotAt(ts time.Time, risks ...float64) *matching.Snapshot {
	results := make([]matching.MatchResult, 0, len(risks))
	for i, r := range risks {
		days := matching.DaysOf(float64(i))
		if i == 0 {
			days = matching.NoDays()
		}
		results = append(results, matching.MatchResult{
			AffiliateA:     "Ana Pérez",
			AffiliateB:     "Luis Gómez",
			Risk:           r,
			AssignedAmount: 100 * float64(i+1),
			DaysSinceLast:  days,
			Pair:           []matching.Label{"A1", "A2"},
		})
	}
	return matching.NewSnapshot(results, matching.DefaultConfiguration(), matching.WithCreatedAt(ts), matching.WithExecutionTime(0.25))
}

func TestLatestSnapshotEmpty(t *testing.T) {
	db := openTestDB(t)
	_, _, err := db.LatestSnapshot(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	_, err = db.GetSnapshot(context.Background(), 99)
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	snap := matching.NewSnapshot(snapshotAt(ts, 10, 60, 40).Results(), matching.DefaultConfiguration(),
		matching.WithCreatedAt(ts),
		matching.WithExecutionTime(0.25),
		matching.WithHistory(json.RawMessage(`[{"monto":300}]`)))

	id, err := db.SaveSnapshot(ctx, snap)
	require.NoError(t, err)

	got, err := db.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, snap.Results(), got.Results())
	assert.Equal(t, snap.Config(), got.Config())
	assert.True(t, ts.Equal(got.CreatedAt()))
	assert.Equal(t, 0.25, got.ExecutionTime())
	assert.JSONEq(t, `[{"monto":300}]`, string(got.History()))
	assert.True(t, got.Results()[0].DaysSinceLast.None)
}

func TestLatestAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.SaveSnapshot(ctx, snapshotAt(base, 1))
	require.NoError(t, err)
	newest, err := db.SaveSnapshot(ctx, snapshotAt(base.Add(1500*time.Millisecond), 1, 2, 3))
	require.NoError(t, err)
	_, err = db.SaveSnapshot(ctx, snapshotAt(base.Add(time.Second), 1, 2))
	require.NoError(t, err)

	id, latest, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, id)
	assert.Equal(t, 3, latest.Len())
	assert.Nil(t, latest.History())

	infos, err := db.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{infos[0].ResultCount, infos[1].ResultCount, infos[2].ResultCount})
	assert.Equal(t, float64(50), infos[0].Config.MaximumRisk)

	removed, err := db.PruneSnapshots(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	infos, err = db.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, newest, infos[0].ID)
}
