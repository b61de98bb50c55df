package predict

import (
	"errors"
	"fmt"

	"droughtdash/dataset"
)

// Advisory outcomes. They describe the query, not a fault, and leave the
// dashboard usable.
var (
	ErrUnknownLocation = dataset.ErrUnknownLocation
	ErrNoDataForYear   = dataset.ErrNoDataForYear
)

// InferenceError is a fatal-for-this-request failure: a malformed feature
// vector, a classifier error or classifier output that breaks its contract.
type InferenceError struct {
	GeoCode string
	Year    int
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed for %s/%d: %v", e.GeoCode, e.Year, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// IsAdvisory reports whether err is one of the expected selection outcomes.
func IsAdvisory(err error) bool {
	return errors.Is(err, ErrUnknownLocation) || errors.Is(err, ErrNoDataForYear)
}
