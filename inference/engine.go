// Package inference picks the prior filament entry that best matches a set
// of partial criteria. The logging workflow uses the match to fill in the
// fields a user left out.
package inference

import (
	"context"
	"fmt"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
)

// CandidateSource returns entries matching every specified criterion
type CandidateSource interface {
	Candidates(ctx context.Context, c models.Criteria) ([]models.FilamentEntry, error)
}

// Engine finds best matches over a CandidateSource
type Engine struct {
	source CandidateSource
	log    *logger.Logger
}

// NewEngine creates a new Engine
func NewEngine(source CandidateSource, log *logger.Logger) *Engine {
	return &Engine{
		source: source,
		log:    log.With("component", "inference"),
	}
}

// FindBestMatch returns the top ranked entry for c, or models.ErrNotFound.
// With every criterion unspecified it returns the most recent entry.
func (e *Engine) FindBestMatch(ctx context.Context, c models.Criteria) (*models.FilamentEntry, error) {
	candidates, err := e.source.Candidates(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	ranked := Rank(c, candidates)
	if len(ranked) == 0 {
		e.log.Debug("no match", "maker", c.Maker, "type", c.Type, "color", c.Color)
		return nil, models.ErrNotFound
	}

	best := ranked[0]
	e.log.Debug("best match",
		"id", best.ID,
		"score", Score(c, &best),
		"specified", c.Specified(),
		"candidates", len(ranked),
	)
	return &best, nil
}
