// models/models.go
package models

import (
	"encoding/json"
	"errors"
)

var (
	ErrMissingWeight   = errors.New("weight is required")
	ErrInvalidWeight   = errors.New("weight must be a positive numeric value")
	ErrIncompleteEntry = errors.New("could not infer all required values, please specify more details")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrNotFound        = errors.New("no matching filament entry")
	ErrTooManyArgs     = errors.New("too many arguments, expected [maker] [type] [color] weight [date]")
	ErrNoData          = errors.New("no filament data available for the requested period")
)

// CommandType represents the type of command recorded in the journal
type CommandType string

const (
	AddEntry CommandType = "ADD_ENTRY"
)

// Command represents a command to be applied to the FSM
type Command struct {
	Type      CommandType    `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	Entry     *FilamentEntry `json:"entry,omitempty"`
}

// Marshal serializes a command to JSON
func (c *Command) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCommand deserializes a command from JSON
func UnmarshalCommand(data []byte) (*Command, error) {
	var c Command
	err := json.Unmarshal(data, &c)
	return &c, err
}
