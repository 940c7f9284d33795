package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeEntry(url string, priority int) Entry {
	normalized, _ := Normalize(url)
	return Entry{
		URLHash:       Hash(normalized),
		URL:           normalized,
		Kind:          DetectKind(normalized, false),
		Status:        StatusPending,
		Priority:      priority,
		AddedAt:       time.Now().UTC(),
		RefreshPolicy: Days(30),
	}
}

func TestStore_InsertIfAbsent_SkipsExistingURLHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := makeEntry("https://example.com/a", PriorityUserGiven)

	counts, err := s.InsertIfAbsent(ctx, []Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, InsertCounts{Added: 1}, counts)

	counts, err = s.InsertIfAbsent(ctx, []Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, InsertCounts{SkippedDuplicate: 1}, counts)
}

func TestStore_InsertIfAbsent_NeverUpdatesExistingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := makeEntry("https://example.com/a", PrioritySearchDerived)
	_, err := s.InsertIfAbsent(ctx, []Entry{entry})
	require.NoError(t, err)

	changed := entry
	changed.Priority = PriorityUserGiven
	changed.Title = "should not apply"
	_, err = s.InsertIfAbsent(ctx, []Entry{changed})
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, entry.URLHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, PrioritySearchDerived, got.Priority)
	assert.Empty(t, got.Title)
}

func TestStore_ClaimBatch_OrdersByPriorityThenAddedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	low := makeEntry("https://example.com/low", 50)
	low.AddedAt = time.Now().UTC().Add(-2 * time.Hour)
	high := makeEntry("https://example.com/high", 100)
	high.AddedAt = time.Now().UTC().Add(-1 * time.Hour)
	earlierLow := makeEntry("https://example.com/earlier-low", 50)
	earlierLow.AddedAt = time.Now().UTC().Add(-3 * time.Hour)

	_, err := s.InsertIfAbsent(ctx, []Entry{low, high, earlierLow})
	require.NoError(t, err)

	batch, err := s.ClaimBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, high.URLHash, batch[0].URLHash)
	assert.Equal(t, earlierLow.URLHash, batch[1].URLHash)
	assert.Equal(t, low.URLHash, batch[2].URLHash)
}

func TestStore_ClaimBatch_RespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := makeEntry("https://example.com/page-"+string(rune('a'+i)), 50)
		_, err := s.InsertIfAbsent(ctx, []Entry{e})
		require.NoError(t, err)
	}

	batch, err := s.ClaimBatch(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestStore_MarkFetched_SetsStatusAndTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := makeEntry("https://example.com/a", 50)
	_, err := s.InsertIfAbsent(ctx, []Entry{entry})
	require.NoError(t, err)

	now := time.Now().UTC()
	next := now.Add(14 * 24 * time.Hour)
	require.NoError(t, s.MarkFetched(ctx, entry.URLHash, now, &next))

	got, ok, err := s.Get(ctx, entry.URLHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFetched, got.Status)
	require.NotNil(t, got.LastFetchedAt)
	require.NotNil(t, got.NextRefreshAt)
	assert.WithinDuration(t, now, *got.LastFetchedAt, time.Second)
	assert.WithinDuration(t, next, *got.NextRefreshAt, time.Second)
}

func TestStore_MarkFailed_RetriesUntilMaxThenFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := makeEntry("https://example.com/a", 50)
	_, err := s.InsertIfAbsent(ctx, []Entry{entry})
	require.NoError(t, err)

	maxRetries := 3
	for i := 1; i <= maxRetries; i++ {
		require.NoError(t, s.MarkFailed(ctx, entry.URLHash, "boom", time.Now().UTC(), maxRetries))
		got, ok, err := s.Get(ctx, entry.URLHash)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, i, got.RetryCount)
	}

	require.NoError(t, s.MarkFailed(ctx, entry.URLHash, "boom again", time.Now().UTC(), maxRetries))
	got, ok, err := s.Get(ctx, entry.URLHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, maxRetries+1, got.RetryCount)
	assert.Equal(t, "boom again", got.LastError)
}

func TestStore_DueForRefresh_ExcludesNeverAndFuture(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	due := makeEntry("https://example.com/due", 50)
	due.RefreshPolicy = Days(7)
	notDue := makeEntry("https://example.com/not-due", 50)
	notDue.RefreshPolicy = Days(7)
	never := makeEntry("https://youtu.be/abc", 50)
	never.RefreshPolicy = NeverRefresh()

	_, err := s.InsertIfAbsent(ctx, []Entry{due, notDue, never})
	require.NoError(t, err)

	require.NoError(t, s.MarkFetched(ctx, due.URLHash, time.Now().UTC(), &past))
	require.NoError(t, s.MarkFetched(ctx, notDue.URLHash, time.Now().UTC(), &future))
	require.NoError(t, s.MarkFetched(ctx, never.URLHash, time.Now().UTC(), nil))

	results, err := s.DueForRefresh(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, due.URLHash, results[0].URLHash)
}

func TestStore_Clear_NeverTouchesFetched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	pending := makeEntry("https://example.com/pending", 50)
	fetched := makeEntry("https://example.com/fetched", 50)
	_, err := s.InsertIfAbsent(ctx, []Entry{pending, fetched})
	require.NoError(t, err)
	require.NoError(t, s.MarkFetched(ctx, fetched.URLHash, time.Now().UTC(), nil))

	n, err := s.Clear(ctx, StatusFilter{Pending: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := s.Get(ctx, pending.URLHash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, fetched.URLHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_DeleteAll_WipesEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, []Entry{
		makeEntry("https://example.com/a", 50),
		makeEntry("https://example.com/b", 50),
	})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAll(ctx))

	counts, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestStore_RecordAPICall_DoesNotAffectCatalogEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	quota := 42
	require.NoError(t, s.RecordAPICall(ctx, "search_provider", time.Now().UTC(), true, 120, &quota))

	counts, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
