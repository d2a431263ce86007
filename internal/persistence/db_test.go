package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/brains/internal/engine"
	"github.com/talgya/brains/internal/learning"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "brains.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSpec() RunSpec {
	return RunSpec{
		World:     "classic",
		Height:    50,
		Width:     50,
		NbStates:  3000000,
		NbActions: 6,
		Seed:      42,
		Config:    learning.TrainConfig{Episodes: 10, Alpha: 0.1, Gamma: 0.6, Epsilon: 0.1},
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	run, err := db.CreateRun(testSpec())
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.False(t, run.Finished())

	stats := learning.TrainStats{Episodes: 10, Steps: 1234, AvgReward: -3.5, RewardMean: -500, RewardStdDev: 12}
	require.NoError(t, db.FinishRun(run.ID, stats))

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, got.Finished())
	assert.Equal(t, "classic", got.World)
	assert.Equal(t, 3000000, got.NbStates)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, 1234, got.Steps)
	assert.Equal(t, -3.5, got.AvgReward)
	assert.Equal(t, 12.0, got.RewardStdDev)

	assert.ErrorIs(t, db.FinishRun("missing", stats), ErrNotFound)
	_, err = db.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	var ids []string
	for i := 0; i < 3; i++ {
		r, err := db.CreateRun(testSpec())
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	runs, err := db.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestEpisodeRecorderBatches(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun(testSpec())
	require.NoError(t, err)

	rec := NewEpisodeRecorder(db, run.ID, 4)
	for i := 0; i < 10; i++ {
		rec.Record(learning.Episode{Index: i, Lifetime: 100 + i, TotalReward: float64(-i)})
	}
	assert.Equal(t, 8, rec.Saved())
	require.NoError(t, rec.Flush())
	assert.Equal(t, 10, rec.Saved())

	rows, err := db.RunEpisodes(run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, EpisodeRow{Index: 9, Lifetime: 109, TotalReward: -9}, rows[9])
}

func TestEpisodeRecorderKeepsFirstError(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun(testSpec())
	require.NoError(t, err)

	rec := NewEpisodeRecorder(db, run.ID, 1)
	rec.Record(learning.Episode{Index: 0})
	rec.Record(learning.Episode{Index: 0}) // duplicate primary key
	rec.Record(learning.Episode{Index: 1})
	assert.Error(t, rec.Flush())
	assert.Equal(t, 1, rec.Saved())
}

func TestEvaluations(t *testing.T) {
	db := openTestDB(t)
	run, err := db.CreateRun(testSpec())
	require.NoError(t, err)

	require.NoError(t, db.SaveEvaluation(run.ID, learning.EvalStats{
		Episodes:       100,
		AvgLifetime:    321.5,
		LifetimeStdDev: 4,
		AvgReward:      0.25,
		ActionCounts:   []int{1, 2, 3, 4, 5, 6},
	}))

	evals, err := db.Evaluations(run.ID)
	require.NoError(t, err)
	require.Len(t, evals, 1)
	assert.Equal(t, 321.5, evals[0].AvgLifetime)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, evals[0].ActionCounts)
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SaveEvents(nil))
	require.NoError(t, db.SaveEvents([]engine.Event{
		{Tick: 5, HumanID: 1, Description: "human 1 died at age 5", Category: "death"},
		{Tick: 9, HumanID: 2, Description: "human 2 outlived its horizon", Category: "survival"},
	}))
	events, err := db.RecentEvents(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(9), events[0].Tick)
	assert.Equal(t, "survival", events[0].Category)

	_, err = db.GetMeta("last_run")
	assert.True(t, errors.Is(err, ErrNotFound))
	require.NoError(t, db.SaveMeta("last_run", "abc"))
	require.NoError(t, db.SaveMeta("last_run", "def"))
	v, err := db.GetMeta("last_run")
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}
