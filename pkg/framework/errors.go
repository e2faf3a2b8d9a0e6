package framework

import "strings"

// AggregatedError collects the errors of concurrently stopping
// runners into one.
type AggregatedError []error

// Error implements error.
func (e AggregatedError) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Add appends non-nil errors.
func (e *AggregatedError) Add(errs ...error) {
	for _, err := range errs {
		if err != nil {
			*e = append(*e, err)
		}
	}
}

// Aggregate flattens to a plain error: nil when empty, the sole error
// when there is exactly one, the collection itself otherwise.
func (e AggregatedError) Aggregate() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	}
	return e
}
