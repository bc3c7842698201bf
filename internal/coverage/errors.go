package coverage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput is wrapped by every ValidationError
	ErrMalformedInput = errors.New("malformed carrier data")

	// ErrUnknownCity is returned when a query references a city the index has never seen
	ErrUnknownCity = errors.New("no such city")

	// ErrIndexNotReady is returned by the Manager before the first build completes
	ErrIndexNotReady = errors.New("carrier index not ready")
)

// ValidationError identifies the carrier variant rejected at build time
type ValidationError struct {
	Carrier string
	Variant int // position in the carrier's variant list, -1 when not variant specific
	Reason  string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("malformed carrier data: ")
	b.WriteString(e.Reason)
	if e.Carrier != "" || e.Variant >= 0 {
		fmt.Fprintf(&b, " (carrier=%q, variant=%d)", e.Carrier, e.Variant)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return ErrMalformedInput
}
