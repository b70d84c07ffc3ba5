package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/devadigapratham/filamentlog/models"
	"github.com/shopspring/decimal"
)

// Point is one weighed event on a series
type Point struct {
	Date   time.Time
	Weight float64
}

// Series holds the points of one (maker, type, color) group
type Series struct {
	Maker  string
	Type   string
	Color  string
	Points []Point
}

// Label is the legend text
func (s *Series) Label() string {
	return fmt.Sprintf("%s %s (%s)", s.Maker, s.Type, s.Color)
}

type groupKey struct{ maker, ftype, color string }

// Group splits entries into series keyed by (maker, type, color). Series
// keep the order in which their first entry appears; points keep entry
// order.
func Group(entries []models.FilamentEntry) ([]Series, error) {
	index := make(map[groupKey]int)
	var out []Series

	for i := range entries {
		e := &entries[i]
		day, err := e.Day()
		if err != nil {
			return nil, fmt.Errorf("entry %d has bad date %q: %w", e.ID, e.Date, err)
		}

		key := groupKey{e.Maker, e.Type, e.Color}
		pos, ok := index[key]
		if !ok {
			pos = len(out)
			index[key] = pos
			out = append(out, Series{Maker: e.Maker, Type: e.Type, Color: e.Color})
		}
		out[pos].Points = append(out[pos].Points, Point{Date: day, Weight: e.Weight})
	}
	return out, nil
}

// Total is the accumulated usage of one series
type Total struct {
	Label   string
	Entries int
	Grams   decimal.Decimal
	First   time.Time
	Last    time.Time
}

// Summarize totals the grams of every series, largest first
func Summarize(series []Series) []Total {
	totals := make([]Total, 0, len(series))
	for i := range series {
		s := &series[i]
		t := Total{Label: s.Label(), Grams: decimal.Zero}
		for j, p := range s.Points {
			t.Grams = t.Grams.Add(decimal.NewFromFloat(p.Weight))
			if j == 0 || p.Date.Before(t.First) {
				t.First = p.Date
			}
			if j == 0 || p.Date.After(t.Last) {
				t.Last = p.Date
			}
		}
		t.Entries = len(s.Points)
		totals = append(totals, t)
	}

	sort.SliceStable(totals, func(i, j int) bool {
		return totals[i].Grams.GreaterThan(totals[j].Grams)
	})
	return totals
}

// GrandTotal sums all totals
func GrandTotal(totals []Total) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Grams)
	}
	return sum
}
