package adapter

import (
	"errors"
	"regexp"
	"strconv"

	tele "gopkg.in/telebot.v4"

	kit "alertbot/internal/transport"
)

// APIError is a Bot API failure with its HTTP-style code.
type APIError struct {
	Code int
	Err  error
}

func (e *APIError) Error() string { return e.Err.Error() }

func (e *APIError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help.
func (e *APIError) Permanent() bool {
	switch e.Code {
	case 400, 401, 403, 404:
		return true
	}
	return false
}

func (e *APIError) Is(target error) bool {
	switch target {
	case kit.ErrForbidden:
		return e.Code == 401 || e.Code == 403
	case kit.ErrNotFound:
		return e.Code == 404 || errors.Is(e.Err, tele.ErrChatNotFound)
	}
	return false
}

// telebot formats unrecognised API errors as "telegram: <desc> (<code>)".
var codeSuffix = regexp.MustCompile(`\((\d{3})\)\s*$`)

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if code := errorCode(err); code != 0 {
		return &APIError{Code: code, Err: err}
	}
	return err
}

func errorCode(err error) int {
	var te *tele.Error
	if errors.As(err, &te) && te.Code != 0 {
		return te.Code
	}
	if m := codeSuffix.FindStringSubmatch(err.Error()); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}
