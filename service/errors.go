package service

import "github.com/cockroachdb/errors"

var (
	ErrMarketExists = errors.New("market already exists")

	// ErrUnavailable marks failures of the WAL, the outbox or the store, as
	// opposed to a command the book rejected. Once one has been returned by
	// a command the exchange refuses further writes until restarted.
	ErrUnavailable = errors.New("exchange unavailable")
)

// unavailableError matches ErrUnavailable and still unwraps to its cause,
// for both the standard library's errors.Is and cockroachdb/errors.
type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string        { return e.cause.Error() }
func (e *unavailableError) Unwrap() error        { return e.cause }
func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(err error, msg string) error {
	return &unavailableError{cause: errors.Wrap(err, msg)}
}
