package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mabhi256/jverify/internal/pipeline"
	"github.com/mabhi256/jverify/internal/plugin"
	"github.com/mabhi256/jverify/internal/problem"
)

func open(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func outcome(id, host string, problems ...problem.Problem) *pipeline.Outcome {
	return &pipeline.Outcome{
		Task: pipeline.Task{
			Plugin: plugin.NewBuilder(id).Version("1.0").MustBuild(),
			Host:   plugin.NewHostBuilder(host).MustBuild(),
		},
		Problems: problem.NewList(problems...),
		Classes:  12,
		Started:  time.Unix(1700000000, 0),
		Duration: 250 * time.Millisecond,
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()
	s := open(t)
	ctx := context.Background()

	missing := problem.New(problem.ClassNotFound, problem.Location{Class: "com/acme/A", Member: "run()V"},
		"com/intellij/Gone", "class com.intellij.Gone is not found")
	deprecated := problem.New(problem.DeprecatedAPIUsage, problem.Location{Class: "com/acme/B"},
		"com/intellij/Old", "deprecated class com.intellij.Old is used")

	id, err := s.Save(ctx, outcome("com.acme", "233.1", missing, deprecated))
	require.NoError(t, err)

	runs, err := s.Latest(ctx, "com.acme", "233.1", 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	r := runs[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "1.0", r.PluginVersion)
	assert.Equal(t, 1, r.Errors)
	assert.Equal(t, 1, r.Warnings)
	assert.Equal(t, 12, r.Classes)
	assert.Equal(t, 250*time.Millisecond, r.Duration)
	assert.True(t, r.Started.Equal(time.Unix(1700000000, 0)))
	assert.Empty(t, r.Failure)

	problems, err := s.Problems(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []problem.Problem{missing, deprecated}, problems)
}

func TestLatestOrderAndFilter(t *testing.T) {
	t.Parallel()
	s := open(t)
	ctx := context.Background()

	failed := outcome("com.acme", "233.1")
	failed.Err = errors.New("mandatory dependency com.missing cannot be resolved")

	var ids []int64
	for _, o := range []*pipeline.Outcome{
		outcome("com.acme", "233.1"),
		outcome("com.acme", "241.1"),
		outcome("com.other", "233.1"),
		failed,
	} {
		id, err := s.Save(ctx, o)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := s.Latest(ctx, "com.acme", "233.1", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Contains(t, runs[0].Failure, "com.missing")
	assert.Equal(t, ids[0], runs[1].ID)

	all, err := s.Latest(ctx, "com.acme", "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "241.1", all[1].HostVersion)
}

func TestLatestCorruptDependencies(t *testing.T) {
	t.Parallel()
	s := open(t)
	ctx := context.Background()

	id, err := s.Save(ctx, outcome("com.acme", "233.1"))
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, `UPDATE runs SET dependencies = ? WHERE id = ?`, "{not json", id)
	require.NoError(t, err)

	runs, err := s.Latest(ctx, "com.acme", "233.1", 1)
	assert.Nil(t, runs)
	assert.ErrorContains(t, err, "failed to read run")
}

func TestPrune(t *testing.T) {
	t.Parallel()
	s := open(t)
	ctx := context.Background()

	loc := problem.Location{Class: "A"}
	for i := 0; i < 4; i++ {
		_, err := s.Save(ctx, outcome("com.acme", "233.1", problem.New(problem.ClassNotFound, loc, "B", "class B is not found")))
		require.NoError(t, err)
	}
	oldest, err := s.Latest(ctx, "com.acme", "233.1", 4)
	require.NoError(t, err)

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := s.Latest(ctx, "com.acme", "233.1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	problems, err := s.Problems(ctx, oldest[3].ID)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestSaveCancelled(t *testing.T) {
	t.Parallel()
	s := open(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, outcome("com.acme", "233.1"))
	assert.Error(t, err)

	runs, err := s.Latest(context.Background(), "com.acme", "", 1)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
