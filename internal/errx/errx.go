// Package errx provides the two small error-wrapping helpers used
// throughout this module's packages: Wrap attaches an underlying cause to
// a sentinel, With attaches a free-form detail string.
package errx

import "fmt"

// Wrap returns an error that reports as sentinel's message followed by
// cause's message, and unwraps to both sentinel and cause via errors.Is.
func Wrap(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &wrapped{sentinel: sentinel, cause: cause}
}

// With returns an error that reports as sentinel's message followed by
// detail, and unwraps to sentinel via errors.Is.
func With(sentinel error, detail string) error {
	return &wrapped{sentinel: sentinel, detail: detail}
}

type wrapped struct {
	sentinel error
	cause    error
	detail   string
}

func (w *wrapped) Error() string {
	if w.cause != nil {
		return fmt.Sprintf("%s: %s", w.sentinel.Error(), w.cause.Error())
	}
	return w.sentinel.Error() + w.detail
}

func (w *wrapped) Unwrap() []error {
	if w.cause != nil {
		return []error{w.sentinel, w.cause}
	}
	return []error{w.sentinel}
}
