package tracker

import (
	"fmt"

	"github.com/devadigapratham/filamentlog/models"
	"github.com/shopspring/decimal"
)

// ParseArgs reads positional arguments of the form
// [maker] [type] [color] weight [date].
//
// The last argument is taken as the date only when it is a strict
// YYYY-MM-DD date; otherwise it is the weight and the date stays empty.
func ParseArgs(args []string) (Request, error) {
	var req Request
	if len(args) < 1 {
		return req, models.ErrMissingWeight
	}

	weightIdx := len(args) - 1
	if models.IsValidDate(args[weightIdx]) {
		req.Date = args[weightIdx]
		weightIdx--
	}
	if weightIdx < 0 {
		return req, fmt.Errorf("%w: no weight before date %s", models.ErrInvalidWeight, req.Date)
	}

	w, err := decimal.NewFromString(args[weightIdx])
	if err != nil {
		return req, fmt.Errorf("%w: %q", models.ErrInvalidWeight, args[weightIdx])
	}
	weight := w.InexactFloat64()
	req.Weight = &weight

	optional := args[:weightIdx]
	if len(optional) > 3 {
		return req, models.ErrTooManyArgs
	}
	fields := []*string{&req.Maker, &req.Type, &req.Color}
	for i, v := range optional {
		*fields[i] = v
	}
	return req, nil
}
