package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedInput is wrapped by every validation failure raised while building a graph
var ErrMalformedInput = errors.New("malformed network data")

// ValidationError identifies the offending line, variant or city of a rejected dataset
type ValidationError struct {
	LineID    string
	VariantID string
	CityID    string
	Reason    string
}

func (e *ValidationError) Error() string {
	var where []string
	if e.LineID != "" {
		where = append(where, fmt.Sprintf("line=%s", e.LineID))
	}
	if e.VariantID != "" {
		where = append(where, fmt.Sprintf("variant=%s", e.VariantID))
	}
	if e.CityID != "" {
		where = append(where, fmt.Sprintf("city=%s", e.CityID))
	}
	if len(where) == 0 {
		return fmt.Sprintf("%v: %s", ErrMalformedInput, e.Reason)
	}
	return fmt.Sprintf("%v: %s (%s)", ErrMalformedInput, e.Reason, strings.Join(where, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}
