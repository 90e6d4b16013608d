package normalize

import (
	"errors"
	"fmt"
)

var (
	ErrUnparseableDate = errors.New("unparseable date")
	ErrNoPrice         = errors.New("no recognizable price")
	ErrMissingStart    = errors.New("missing start")
)

// FieldError describes a field of one event that could not be normalized.
type FieldError struct {
	Title string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s of %q: %v", e.Field, e.Title, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Report is the diagnostic log of one NormalizeBatch call.
type Report struct {
	Processed     int
	Normalized    int
	PassedThrough int
	Rejected      int
	Issues        []*FieldError
}

// Failures counts events that were rejected or passed through unnormalized.
func (r *Report) Failures() int {
	return r.Rejected + r.PassedThrough
}

// Err joins every recorded issue, or returns nil when there were none.
func (r *Report) Err() error {
	if len(r.Issues) == 0 {
		return nil
	}
	errs := make([]error, len(r.Issues))
	for i, issue := range r.Issues {
		errs[i] = issue
	}
	return errors.Join(errs...)
}

func (r *Report) add(title, field string, err error) {
	r.Issues = append(r.Issues, &FieldError{Title: title, Field: field, Err: err})
}
