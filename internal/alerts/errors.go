package alerts

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrPlatform         = errors.New("platform error")
	ErrScheduling       = errors.New("scheduling error")
	ErrNotFound         = errors.New("not found")

	ErrNotInitialized = fmt.Errorf("%w: service not initialized", ErrPlatform)
)

type Kind uint8

const (
	KindPlatform Kind = iota
	KindPermissionDenied
	KindScheduling
	KindNotFound
)

func (k Kind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindScheduling:
		return ErrScheduling
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrPlatform
	}
}

func (k Kind) String() string { return k.sentinel().Error() }

// Error is returned by every Service operation that fails.
// errors.Is matches it against the sentinel of its Kind.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := "alerts: " + e.Op
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind.sentinel() }

// KindOf reports the Kind of err, defaulting to KindPlatform.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrScheduling):
		return KindScheduling
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindPlatform
}

func newErr(kind Kind, op, id string, err error) error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

func schedErr(op string, format string, args ...any) error {
	return &Error{Kind: KindScheduling, Op: op, Err: fmt.Errorf(format, args...)}
}
