// models/filament.go
package models

import (
	"regexp"
	"time"
)

// DateLayout is the persisted text form of an entry date.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FilamentEntry represents one logged consumption event for a spool
type FilamentEntry struct {
	ID     int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Maker  string  `gorm:"column:maker;not null" json:"maker"`
	Type   string  `gorm:"column:type;not null" json:"type"` // PLA, PETG, ABS, TPU, ...
	Color  string  `gorm:"column:color;not null" json:"color"`
	Weight float64 `gorm:"column:weight;not null" json:"weight"` // grams
	Date   string  `gorm:"column:date" json:"date"`
}

// TableName pins the table name used by the store
func (FilamentEntry) TableName() string { return "filaments" }

// Day parses Date into a time at local midnight
func (e *FilamentEntry) Day() (time.Time, error) {
	return time.ParseInLocation(DateLayout, e.Date, time.Local)
}

// Complete reports whether every semantic field is resolved
func (e *FilamentEntry) Complete() bool {
	return e.Maker != "" && e.Type != "" && e.Color != ""
}

// Criteria are the search fields for a best-match lookup. An empty field is
// a wildcard.
type Criteria struct {
	Maker string `json:"maker,omitempty"`
	Type  string `json:"type,omitempty"`
	Color string `json:"color,omitempty"`
}

// Specified counts the non-wildcard criteria
func (c Criteria) Specified() int {
	n := 0
	for _, v := range []string{c.Maker, c.Type, c.Color} {
		if v != "" {
			n++
		}
	}
	return n
}

// Matches reports whether the entry satisfies every specified criterion
func (c Criteria) Matches(e *FilamentEntry) bool {
	return (c.Maker == "" || c.Maker == e.Maker) &&
		(c.Type == "" || c.Type == e.Type) &&
		(c.Color == "" || c.Color == e.Color)
}

// IsValidDate checks a strict YYYY-MM-DD calendar date
func IsValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// FormatDate renders t in the persisted date form
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
