package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	cdgerrors "github.com/yungbote/neurobridge-cdg/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// FromError maps domain sentinels onto HTTP statuses. An *Error anywhere in
// the chain wins.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, cdgerrors.ErrInvalidArgument):
		return New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, cdgerrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, cdgerrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, cdgerrors.ErrInvariant):
		return New(http.StatusInternalServerError, "invariant_violated", err)
	case errors.Is(err, context.DeadlineExceeded):
		return New(http.StatusGatewayTimeout, "timeout", err)
	case errors.Is(err, context.Canceled):
		return New(499, "canceled", err)
	}
	return New(http.StatusInternalServerError, "internal", err)
}
