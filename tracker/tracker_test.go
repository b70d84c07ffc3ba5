package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/devadigapratham/filamentlog/inference"
	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"github.com/devadigapratham/filamentlog/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local)

const today = "2025-06-01"

func grams(w float64) *float64 { return &w }

func newTestTracker(t *testing.T) (*Tracker, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "filaments.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	eng := inference.NewEngine(s, logger.NewNop())
	tr := New(eng, s, logger.NewNop()).WithClock(func() time.Time { return fixedNow })
	return tr, s
}

func count(t *testing.T, s *store.Store) int64 {
	t.Helper()
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestAddEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("infers_missing_fields_from_history", func(t *testing.T) {
		tr, s := newTestTracker(t)
		_, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(1000), Date: "2025-01-03"})
		require.NoError(t, err)

		got, err := tr.AddEntry(ctx, Request{Type: "PLA", Weight: grams(1000)})
		require.NoError(t, err)

		assert.Equal(t, "Maker", got.Maker)
		assert.Equal(t, "PLA", got.Type)
		assert.Equal(t, "red", got.Color)
		assert.Equal(t, 1000.0, got.Weight)
		assert.Equal(t, today, got.Date)
		assert.Equal(t, int64(2), count(t, s))

		got, err = tr.AddEntry(ctx, Request{Color: "red", Weight: grams(500)})
		require.NoError(t, err)
		assert.Equal(t, "Maker", got.Maker)
		assert.Equal(t, "PLA", got.Type)
	})

	t.Run("new_filament_on_empty_store_is_stored_verbatim", func(t *testing.T) {
		tr, s := newTestTracker(t)
		got, err := tr.AddEntry(ctx, Request{Maker: "Maker2", Type: "PLA", Color: "green", Weight: grams(800)})
		require.NoError(t, err)

		stored, err := s.Get(ctx, got.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FilamentEntry{
			ID: got.ID, Maker: "Maker2", Type: "PLA", Color: "green", Weight: 800, Date: today,
		}, *stored)
	})

	t.Run("weight_only_uses_last_filament", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		_, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(1000)})
		require.NoError(t, err)
		_, err = tr.AddEntry(ctx, Request{Maker: "Maker2", Type: "PETG", Color: "blue", Weight: grams(1000)})
		require.NoError(t, err)

		got, err := tr.AddEntry(ctx, Request{Weight: grams(42)})
		require.NoError(t, err)
		assert.Equal(t, "Maker2", got.Maker)
		assert.Equal(t, "PETG", got.Type)
		assert.Equal(t, "blue", got.Color)
	})

	t.Run("missing_weight", func(t *testing.T) {
		tr, s := newTestTracker(t)
		_, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red"})
		assert.ErrorIs(t, err, models.ErrMissingWeight)
		assert.Zero(t, count(t, s))
	})

	t.Run("non_positive_weight", func(t *testing.T) {
		tr, s := newTestTracker(t)
		_, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(0)})
		assert.ErrorIs(t, err, models.ErrInvalidWeight)
		assert.Zero(t, count(t, s))
	})

	t.Run("unresolvable_fields_write_nothing", func(t *testing.T) {
		tr, s := newTestTracker(t)
		_, err := tr.AddEntry(ctx, Request{Type: "PLA", Weight: grams(100)})
		assert.ErrorIs(t, err, models.ErrIncompleteEntry)
		assert.Zero(t, count(t, s))

		_, err = tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(100)})
		require.NoError(t, err)

		// PETG has never been logged so no match can supply maker or color
		_, err = tr.AddEntry(ctx, Request{Type: "PETG", Weight: grams(100)})
		assert.ErrorIs(t, err, models.ErrIncompleteEntry)
		assert.Equal(t, int64(1), count(t, s))
	})

	t.Run("invalid_date_falls_back_to_today", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		got, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(10), Date: "03/01/2025"})
		require.NoError(t, err)
		assert.Equal(t, today, got.Date)
	})

	t.Run("explicit_date_is_kept", func(t *testing.T) {
		tr, _ := newTestTracker(t)
		got, err := tr.AddEntry(ctx, Request{Maker: "Maker", Type: "PLA", Color: "red", Weight: grams(10), Date: "2024-12-24"})
		require.NoError(t, err)
		assert.Equal(t, "2024-12-24", got.Date)
	})
}

type stubMatcher struct{ err error }

func (m stubMatcher) FindBestMatch(context.Context, models.Criteria) (*models.FilamentEntry, error) {
	return nil, m.err
}

type recordingAppender struct{ calls int }

func (a *recordingAppender) Append(context.Context, *models.FilamentEntry) error {
	a.calls++
	return nil
}

func TestAddEntryMatcherError(t *testing.T) {
	app := &recordingAppender{}
	tr := New(stubMatcher{err: errors.New("boom")}, app, logger.NewNop())

	_, err := tr.AddEntry(context.Background(), Request{Maker: "M", Type: "PLA", Color: "red", Weight: grams(1)})
	assert.ErrorContains(t, err, "boom")
	assert.Zero(t, app.calls)
}

func TestResolveDate(t *testing.T) {
	d, err := ResolveDate("", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, today, d)

	d, err = ResolveDate("2025-01-03", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", d)

	d, err = ResolveDate("2025-02-30", fixedNow)
	assert.ErrorIs(t, err, models.ErrInvalidDate)
	assert.Equal(t, today, d)
}
