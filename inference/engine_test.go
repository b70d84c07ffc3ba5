package inference

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"github.com/devadigapratham/filamentlog/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource []models.FilamentEntry

func (s sliceSource) Candidates(_ context.Context, _ models.Criteria) ([]models.FilamentEntry, error) {
	return s, nil
}

type failingSource struct{}

func (failingSource) Candidates(context.Context, models.Criteria) ([]models.FilamentEntry, error) {
	return nil, errors.New("disk on fire")
}

func TestRank(t *testing.T) {
	entries := []models.FilamentEntry{
		{ID: 1, Maker: "Maker", Type: "PLA", Color: "red"},
		{ID: 4, Maker: "Maker2", Type: "PLA", Color: "green"},
		{ID: 2, Maker: "Maker", Type: "PETG", Color: "red"},
	}

	t.Run("tie_break_by_highest_id", func(t *testing.T) {
		got := Rank(models.Criteria{Type: "PLA"}, entries)
		require.Len(t, got, 2)
		assert.Equal(t, int64(4), got[0].ID)
		assert.Equal(t, int64(1), got[1].ID)
	})

	t.Run("filters_unmatched_candidates", func(t *testing.T) {
		got := Rank(models.Criteria{Maker: "Maker", Color: "red"}, entries)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].ID)
	})

	t.Run("does_not_modify_input", func(t *testing.T) {
		Rank(models.Criteria{}, entries)
		assert.Equal(t, int64(1), entries[0].ID)
	})

	t.Run("empty_input", func(t *testing.T) {
		assert.Empty(t, Rank(models.Criteria{Maker: "x"}, nil))
	})
}

func TestScore(t *testing.T) {
	e := &models.FilamentEntry{Maker: "Maker", Type: "PLA", Color: "red"}
	assert.Equal(t, 0, Score(models.Criteria{}, e))
	assert.Equal(t, 2, Score(models.Criteria{Maker: "Maker", Color: "red"}, e))
	assert.Equal(t, 1, Score(models.Criteria{Maker: "Maker", Color: "blue"}, e))
	assert.Equal(t, 3, Score(models.Criteria{Maker: "Maker", Type: "PLA", Color: "red"}, e))
}

func TestFindBestMatchSource(t *testing.T) {
	ctx := context.Background()

	t.Run("source_error_is_wrapped", func(t *testing.T) {
		_, err := NewEngine(failingSource{}, logger.NewNop()).FindBestMatch(ctx, models.Criteria{})
		assert.ErrorContains(t, err, "disk on fire")
	})

	t.Run("deterministic", func(t *testing.T) {
		eng := NewEngine(sliceSource{
			{ID: 3, Maker: "A", Type: "PLA", Color: "red"},
			{ID: 7, Maker: "B", Type: "PLA", Color: "red"},
			{ID: 5, Maker: "C", Type: "PLA", Color: "red"},
		}, logger.NewNop())

		for i := 0; i < 5; i++ {
			got, err := eng.FindBestMatch(ctx, models.Criteria{Color: "red"})
			require.NoError(t, err)
			assert.Equal(t, int64(7), got.ID)
		}
	})
}

func TestFindBestMatchStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "filaments.db"), logger.NewNop())
	require.NoError(t, err)
	defer s.Close()
	eng := NewEngine(s, logger.NewNop())

	t.Run("empty_store_not_found", func(t *testing.T) {
		for _, c := range []models.Criteria{{}, {Maker: "Maker"}, {Type: "PLA", Color: "red"}} {
			_, err := eng.FindBestMatch(ctx, c)
			assert.ErrorIs(t, err, models.ErrNotFound)
		}
	})

	seed := []*models.FilamentEntry{
		{Maker: "Maker", Type: "PLA", Color: "red", Weight: 1000, Date: "2025-01-03"},
		{Maker: "Maker2", Type: "PLA", Color: "green", Weight: 800, Date: "2025-01-04"},
		{Maker: "Maker", Type: "PETG", Color: "red", Weight: 750, Date: "2025-01-05"},
	}
	for _, e := range seed {
		require.NoError(t, s.Append(ctx, e))
	}

	t.Run("wildcard_returns_latest", func(t *testing.T) {
		got, err := eng.FindBestMatch(ctx, models.Criteria{})
		require.NoError(t, err)
		assert.Equal(t, seed[2].ID, got.ID)
	})

	t.Run("partial_criteria", func(t *testing.T) {
		got, err := eng.FindBestMatch(ctx, models.Criteria{Type: "PLA"})
		require.NoError(t, err)
		assert.Equal(t, seed[1].ID, got.ID)

		got, err = eng.FindBestMatch(ctx, models.Criteria{Color: "red", Type: "PLA"})
		require.NoError(t, err)
		assert.Equal(t, seed[0].ID, got.ID)
	})

	t.Run("exact_case_sensitive", func(t *testing.T) {
		_, err := eng.FindBestMatch(ctx, models.Criteria{Color: "Red"})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("no_match_for_unknown_value", func(t *testing.T) {
		_, err := eng.FindBestMatch(ctx, models.Criteria{Maker: "Maker", Color: "green"})
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
