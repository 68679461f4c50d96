package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
	"github.com/Togather-Foundation/eventplanner/internal/domain/admins"
	"github.com/Togather-Foundation/eventplanner/internal/domain/backups"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/ids"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

var errInvalidBody = errors.New("invalid request body")

// domainErrors maps sentinel errors to their HTTP status. The client message
// is the sentinel's text as a sentence.
var domainErrors = []struct {
	err    error
	status int
}{
	{errInvalidBody, http.StatusBadRequest},
	{ids.ErrInvalidULID, http.StatusBadRequest},

	{events.ErrEventNotFound, http.StatusNotFound},
	{events.ErrForbidden, http.StatusForbidden},

	{users.ErrUserNotFound, http.StatusNotFound},
	{users.ErrProfileUnavailable, http.StatusNotFound},
	{users.ErrEmailTaken, http.StatusBadRequest},
	{users.ErrSelfConnection, http.StatusBadRequest},
	{users.ErrAlreadyConnected, http.StatusBadRequest},
	{users.ErrInvalidCredentials, http.StatusUnauthorized},
	{users.ErrInactive, http.StatusUnauthorized},
	{users.ErrRegistrationDisabled, http.StatusForbidden},

	{admins.ErrAdminNotFound, http.StatusNotFound},
	{admins.ErrInvalidCredentials, http.StatusUnauthorized},
	{admins.ErrInactive, http.StatusUnauthorized},
	{admins.ErrLocked, http.StatusLocked},
	{admins.ErrDuplicate, http.StatusBadRequest},
	{admins.ErrAlreadyInitialized, http.StatusBadRequest},
	{admins.ErrProtectedAdmin, http.StatusBadRequest},

	{accounts.ErrPasswordsRequired, http.StatusBadRequest},
	{accounts.ErrPasswordTooShort, http.StatusBadRequest},
	{accounts.ErrIncorrectPassword, http.StatusBadRequest},
	{accounts.ErrAccountNotFound, http.StatusNotFound},

	{backups.ErrBackupNotFound, http.StatusNotFound},
	{backups.ErrNotRestorable, http.StatusBadRequest},
}

// classify returns the status and client message for err. Unknown errors are
// internal; their text never reaches the client.
func classify(err error) (int, string) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, "Request body too large"
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.status, sentence(d.err.Error())
		}
	}
	if events.IsStateConflict(err) {
		return http.StatusBadRequest, sentence(conflictMessage(err))
	}
	return http.StatusInternalServerError, response.InternalErrorMessage
}

// conflictMessage unwraps to the innermost sentinel text so wrapping context
// added by the service does not leak into the message.
func conflictMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func sentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// writeError answers with the status that err maps to.
func writeError(w http.ResponseWriter, r *http.Request, err error, env string) {
	if errs, ok := validation.AsErrors(err); ok {
		response.Invalid(w, errs)
		return
	}
	status, message := classify(err)
	response.Fail(w, r, status, message, err, showDetail(env))
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string, env string) {
	response.Fail(w, r, status, message, nil, showDetail(env))
}

func showDetail(env string) bool {
	return env == "development" || env == "test"
}

// decodeJSON reads one JSON document into v. An empty body leaves v at its
// zero value so the validator reports the missing fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &maxErr):
			return err
		default:
			return fmt.Errorf("%w: %s", errInvalidBody, strings.TrimPrefix(err.Error(), "json: "))
		}
	}
	return nil
}
