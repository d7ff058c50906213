package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValidation reports malformed or inconsistent input data.
	ErrValidation = errors.New("validation error")
	// ErrEmptyPool is returned when a sampler is built without historical durations.
	ErrEmptyPool = errors.New("empty duration pool")
	// ErrInvalidArgument reports an out-of-range configuration value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDuplicateDate is matched by DuplicateDateError.
	ErrDuplicateDate = errors.New("duplicate date")
)

// DuplicateDateError is raised when the same admission date is observed twice
// with different counts.
type DuplicateDateError struct {
	Date   time.Time
	First  int
	Second int
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("duplicate date %s with conflicting counts %d and %d",
		e.Date.Format(time.DateOnly), e.First, e.Second)
}

// Is reports whether target is ErrDuplicateDate.
func (e *DuplicateDateError) Is(target error) bool { return target == ErrDuplicateDate }
