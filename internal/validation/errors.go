package validation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingFields is matched by every MissingFieldsError.
var ErrMissingFields = errors.New("missing required field(s)")

// MissingFieldsError lists the required fields of one step that are empty,
// in checklist order.
type MissingFieldsError struct {
	Step   int
	Entity string
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s is missing %s", ErrMissingFields, e.Entity, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingFields
}

// SubmissionError reports the first step that failed the final cross-entity check.
type SubmissionError struct {
	Step  int
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission check failed at step %d: %v", e.Step, e.Cause)
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// StepOf returns the wizard step an error belongs to, or 0 if it carries none.
func StepOf(err error) int {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Step
	}
	var missing *MissingFieldsError
	if errors.As(err, &missing) {
		return missing.Step
	}
	return 0
}
