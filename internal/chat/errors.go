package chat

import "errors"

// Kind classifies why a chat request could not be answered.
type Kind string

const (
	KindGeneration Kind = "generation"
	KindLogging    Kind = "logging"
	KindValidation Kind = "validation"
)

// Error tags a failure with its Kind. Error() is the underlying description
// so the in-band errorDetail stays the raw cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " failed"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func GenerationError(err error) error { return &Error{Kind: KindGeneration, Err: err} }
func LoggingError(err error) error    { return &Error{Kind: KindLogging, Err: err} }
func ValidationError(err error) error { return &Error{Kind: KindValidation, Err: err} }

// KindOf reports the Kind of err. Untagged errors count as generation failures.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindGeneration
}
