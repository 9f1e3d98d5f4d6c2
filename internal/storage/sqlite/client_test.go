package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/news-similarity/engine/internal/storage/models"
)

func newTestDB(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.InitSchema())
	return c
}

func TestArticleRoundtrip(t *testing.T) {
	db := newTestDB(t)

	absent, err := db.GetArticleByID(7)
	require.NoError(t, err)
	assert.Nil(t, absent)

	a := &models.ReferenceArticle{
		ID:        7,
		Title:     "Alice",
		Content:   "alice bio",
		FetchedAt: time.Now(),
	}
	require.NoError(t, db.UpsertArticle(a))

	byID, err := db.GetArticleByID(7)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Alice", byID.Title)
	assert.Equal(t, "alice bio", byID.Content)
	assert.Nil(t, byID.Histogram)

	byTitle, err := db.GetArticleByTitle("Alice")
	require.NoError(t, err)
	require.NotNil(t, byTitle)
	assert.Equal(t, int64(7), byTitle.ID)
}

func TestUpsertArticleIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	a := &models.ReferenceArticle{ID: 7, Title: "Alice", Content: "v1", FetchedAt: time.Now()}
	require.NoError(t, db.UpsertArticle(a))

	// A refetch under a renamed title updates in place.
	a.Title = "Alice (politician)"
	a.Content = "v2"
	require.NoError(t, db.UpsertArticle(a))

	got, err := db.GetArticleByID(7)
	require.NoError(t, err)
	assert.Equal(t, "Alice (politician)", got.Title)
	assert.Equal(t, "v2", got.Content)
}

func TestHistogramRoundtrip(t *testing.T) {
	db := newTestDB(t)

	a := &models.ReferenceArticle{ID: 7, Title: "Alice", Content: "x", FetchedAt: time.Now()}
	require.NoError(t, db.UpsertArticle(a))

	hist := map[string]float64{"alice": 0.75, "paris": 0.25}
	require.NoError(t, db.PutHistogram(7, hist))

	got, err := db.GetArticleByID(7)
	require.NoError(t, err)
	assert.Equal(t, hist, got.Histogram)
}

func TestEntityRefsRoundtrip(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.GetEntityRefs("alice")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutEntityRefs("alice", []int64{7, 9}))

	ids, ok, err := db.GetEntityRefs("alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []int64{7, 9}, ids)
}

func TestEmptyEntityRefsAreDistinctFromAbsent(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.PutEntityRefs("ghost", nil))

	ids, ok, err := db.GetEntityRefs("ghost")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, ids)
}

func TestSimilarityRoundtrip(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.GetSimilarity(7, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.PutSimilarity(7, 9, 0.42))

	sim, ok, err := db.GetSimilarity(7, 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.42, sim)

	// Overwrites keep the memo consistent with recomputation.
	require.NoError(t, db.PutSimilarity(7, 9, 0.5))
	sim, _, err = db.GetSimilarity(7, 9)
	require.NoError(t, err)
	assert.Equal(t, 0.5, sim)
}

func TestComparisonHistory(t *testing.T) {
	db := newTestDB(t)

	v := func(x float64) *float64 { return &x }

	first := &models.Comparison{
		ID:        "cmp-1",
		FeedA:     "bbc",
		IndexA:    0,
		FeedB:     "cnn",
		IndexB:    3,
		What:      v(0.4),
		Who:       v(0.2),
		Where:     nil, // undefined component
		Distance:  nil,
		LatencyMS: 1200,
		CreatedAt: time.Unix(1000, 0),
	}
	second := &models.Comparison{
		ID:        "cmp-2",
		FeedA:     "bbc",
		IndexA:    1,
		FeedB:     "cnn",
		IndexB:    4,
		What:      v(0.9),
		Who:       v(0.8),
		Where:     v(0.7),
		Distance:  v(0.81),
		LatencyMS: 900,
		CreatedAt: time.Unix(2000, 0),
	}
	require.NoError(t, db.InsertComparison(first))
	require.NoError(t, db.InsertComparison(second))

	got, err := db.GetComparisons(10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "cmp-2", got[0].ID)
	assert.Equal(t, "cmp-1", got[1].ID)

	assert.Nil(t, got[1].Where)
	assert.Nil(t, got[1].Distance)
	require.NotNil(t, got[1].What)
	assert.Equal(t, 0.4, *got[1].What)
	require.NotNil(t, got[0].Distance)
	assert.Equal(t, 0.81, *got[0].Distance)

	limited, err := db.GetComparisons(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "cmp-2", limited[0].ID)
}
