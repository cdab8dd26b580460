package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/splitbaba/internal/auth"
	"github.com/mmynk/splitbaba/internal/state"
	"github.com/mmynk/splitbaba/internal/storage"
)

// connectError maps domain errors to Connect status codes.
func connectError(err error) error {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return err
	}

	code := connect.CodeInternal
	switch {
	case state.IsValidation(err),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		code = connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrInvalidInviteCode):
		code = connect.CodeNotFound
	case errors.Is(err, auth.ErrEmailExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, state.ErrNotSignedIn):
		code = connect.CodeUnauthenticated
	case errors.Is(err, state.ErrNoHousehold),
		errors.Is(err, state.ErrAlreadyInHousehold):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, state.ErrSuperseded):
		code = connect.CodeAborted
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}

