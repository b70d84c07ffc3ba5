// Package tracker implements the entry logging workflow: infer the fields a
// user left out from the best prior match, then append the completed entry.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
)

// Matcher finds the prior entry that best matches partial criteria
type Matcher interface {
	FindBestMatch(ctx context.Context, c models.Criteria) (*models.FilamentEntry, error)
}

// Appender persists a resolved entry and assigns its ID
type Appender interface {
	Append(ctx context.Context, e *models.FilamentEntry) error
}

// Request is one logging attempt. Empty strings are unspecified.
type Request struct {
	Maker  string
	Type   string
	Color  string
	Weight *float64
	Date   string
}

// Criteria returns the search criteria carried by the request
func (r Request) Criteria() models.Criteria {
	return models.Criteria{Maker: r.Maker, Type: r.Type, Color: r.Color}
}

// Tracker runs the logging workflow
type Tracker struct {
	matcher  Matcher
	appender Appender
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new Tracker
func New(matcher Matcher, appender Appender, log *logger.Logger) *Tracker {
	return &Tracker{
		matcher:  matcher,
		appender: appender,
		log:      log.With("component", "tracker"),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for default dates
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// ResolveDate returns s when it is a valid date, today's date when s is
// empty, and today's date with ErrInvalidDate otherwise.
func ResolveDate(s string, now time.Time) (string, error) {
	today := models.FormatDate(now)
	if s == "" {
		return today, nil
	}
	if !models.IsValidDate(s) {
		return today, fmt.Errorf("%w: %q", models.ErrInvalidDate, s)
	}
	return s, nil
}

// AddEntry infers missing maker/type/color from the best match and appends
// the entry. Nothing is written unless every field resolves.
func (t *Tracker) AddEntry(ctx context.Context, req Request) (*models.FilamentEntry, error) {
	if req.Weight == nil {
		return nil, models.ErrMissingWeight
	}
	weight := *req.Weight
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidWeight, weight)
	}

	date, err := ResolveDate(req.Date, t.now())
	if err != nil {
		t.log.Warn("invalid date, using today", "date", req.Date, "fallback", date, "error", err)
	}

	entry := &models.FilamentEntry{
		Maker:  req.Maker,
		Type:   req.Type,
		Color:  req.Color,
		Weight: weight,
		Date:   date,
	}

	match, err := t.matcher.FindBestMatch(ctx, req.Criteria())
	switch {
	case err == nil:
		if entry.Maker == "" {
			entry.Maker = match.Maker
		}
		if entry.Type == "" {
			entry.Type = match.Type
		}
		if entry.Color == "" {
			entry.Color = match.Color
		}
	case errors.Is(err, models.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to find best match: %w", err)
	}

	if !entry.Complete() {
		return nil, models.ErrIncompleteEntry
	}

	if err := t.appender.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	t.log.Info("entry added",
		"id", entry.ID,
		"maker", entry.Maker,
		"type", entry.Type,
		"color", entry.Color,
		"weight", entry.Weight,
		"date", entry.Date,
	)
	return entry, nil
}
