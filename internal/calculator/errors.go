package calculator

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every error caused by a price series that
// is too short for the requested period.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError reports which indicator failed and by how much.
type InsufficientDataError struct {
	Indicator string
	Have      int
	Need      int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data for %s: have %d, need %d", e.Indicator, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func insufficient(indicator string, have, need int) error {
	return &InsufficientDataError{Indicator: indicator, Have: have, Need: need}
}
