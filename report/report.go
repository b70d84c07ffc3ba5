// Package report builds the usage chart and per-filament totals for the
// recent history window.
package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
)

// Source returns entries dated on or after a day, oldest first
type Source interface {
	Since(ctx context.Context, from time.Time) ([]models.FilamentEntry, error)
}

// Options configure the report window and image size
type Options struct {
	Days   int
	Width  int
	Height int
}

// Generator loads the report window and renders it
type Generator struct {
	source Source
	opts   Options
	log    *logger.Logger
}

// NewGenerator creates a new Generator
func NewGenerator(source Source, opts Options, log *logger.Logger) *Generator {
	return &Generator{
		source: source,
		opts:   opts,
		log:    log.With("component", "report"),
	}
}

// Load returns the series for entries dated within the window ending at
// now. It returns models.ErrNoData when the window is empty.
func (g *Generator) Load(ctx context.Context, now time.Time) ([]Series, error) {
	from := now.AddDate(0, 0, -g.opts.Days)
	entries, err := g.source.Since(ctx, from)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.ErrNoData
	}
	g.log.Debug("loaded report window", "from", models.FormatDate(from), "entries", len(entries))
	return Group(entries)
}

// Save renders the chart for the window ending at now into path and
// returns the plotted series.
func (g *Generator) Save(ctx context.Context, now time.Time, path string) ([]Series, error) {
	series, err := g.Load(ctx, now)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := NewChart(g.opts.Width, g.opts.Height).Render(series, &buf); err != nil {
		return nil, err
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return nil, err
	}

	g.log.Info("report saved", "path", path, "series", len(series))
	return series, nil
}

// writeFile replaces path with data through a temp file in the same
// directory, so a failed write never leaves a partial PNG behind.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.png")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	return nil
}
