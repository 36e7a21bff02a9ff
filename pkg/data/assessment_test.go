package data

import (
	"context"
	"testing"
	"time"

	"github.com/mchmarny/loanscore/pkg/loan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssessment(p float64, source string, at time.Time) *Assessment {
	a := NewAssessment("1.0.0@abc", source, &loan.Result{Probability: p, Decision: loan.Decide(p)})
	a.CreatedAt = at
	return a
}

func TestNewAssessment(t *testing.T) {
	a := NewAssessment("v1", SourceCLI, &loan.Result{Probability: 0.8, Decision: loan.Approved})
	assert.Len(t, a.ID, 36)
	assert.Equal(t, "v1", a.ModelVersion)
	assert.Equal(t, loan.Approved, a.Decision)
	assert.Equal(t, SourceCLI, a.Source)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestSaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	at := time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC)
	a := testAssessment(0.55, SourceAPI, at)
	require.NoError(t, s.Save(ctx, a))

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.ModelVersion, got.ModelVersion)
	assert.InDelta(t, 0.55, got.Probability, 0)
	assert.Equal(t, loan.ManualReview, got.Decision)
	assert.Equal(t, SourceAPI, got.Source)
	assert.True(t, at.Equal(got.CreatedAt))
}

func TestSave_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	a := testAssessment(0.9, SourceCLI, time.Now())
	require.NoError(t, s.Save(ctx, a))
	assert.Error(t, s.Save(ctx, a))
	assert.Error(t, s.Save(ctx, nil))
}

func TestSaveAll(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveAll(ctx, nil))
	require.NoError(t, s.SaveAll(ctx, []*Assessment{
		testAssessment(0.2, SourceBatch, now),
		testAssessment(0.9, SourceBatch, now),
	}))

	list, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSaveAll_RollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	now := time.Now()

	dup := testAssessment(0.5, SourceBatch, now)
	err := s.SaveAll(ctx, []*Assessment{
		testAssessment(0.2, SourceBatch, now),
		dup,
		testAssessment(0.9, SourceBatch, now),
		dup,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assessment[3]")

	err = s.SaveAll(ctx, []*Assessment{testAssessment(0.2, SourceBatch, now), nil})
	require.Error(t, err)

	list, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGet_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	probs := []float64{0.1, 0.45, 0.75, 0.95, 0.65}
	for i, p := range probs {
		require.NoError(t, s.Save(ctx, testAssessment(p, SourceBatch, base.Add(time.Duration(i)*time.Hour))))
	}

	list, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.InDelta(t, 0.65, list[0].Probability, 0)
	assert.InDelta(t, 0.1, list[4].Probability, 0)

	list, err = s.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	f, err := NewFilter(`decision == "manual_review"`)
	require.NoError(t, err)
	list, err = s.List(ctx, Query{Filter: f})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, loan.ManualReview, a.Decision)
	}

	list, err = s.List(ctx, Query{Filter: f, Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.InDelta(t, 0.65, list[0].Probability, 0)
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	list := []*Assessment{
		testAssessment(0.9, SourceCLI, now),
		testAssessment(0.8, SourceCLI, now),
		testAssessment(0.1, SourceCLI, now),
	}
	got := Summarize(list)
	assert.Equal(t, []DecisionCount{
		{Decision: loan.Approved, Count: 2},
		{Decision: loan.ManualReview, Count: 0},
		{Decision: loan.Rejected, Count: 1},
	}, got)
}

func TestPurge(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for _, p := range []float64{0.2, 0.5, 0.9} {
		require.NoError(t, s.Save(ctx, testAssessment(p, SourceCLI, time.Now())))
	}

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
