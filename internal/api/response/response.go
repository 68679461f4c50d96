// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

const contentType = "application/json; charset=utf-8"

// InternalErrorMessage is the only text a client ever sees for a 5xx.
const InternalErrorMessage = "Internal server error"

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type Envelope struct {
	Success    bool                    `json:"success"`
	Message    string                  `json:"message,omitempty"`
	Data       any                     `json:"data,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Errors     []validation.FieldError `json:"errors,omitempty"`
	Pagination *Pagination             `json:"pagination,omitempty"`
}

// Write encodes env with the given status.
func Write(w http.ResponseWriter, status int, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"` + InternalErrorMessage + `"}`))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func OK(w http.ResponseWriter, data any) {
	Write(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func Created(w http.ResponseWriter, message string, data any) {
	Write(w, http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Message answers with a bare success message and optional data.
func Message(w http.ResponseWriter, message string, data any) {
	Write(w, http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Paginated(w http.ResponseWriter, data any, p Pagination) {
	Write(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: &p})
}

// Fail writes an error envelope and logs err through the request logger.
// For 5xx the message is replaced by InternalErrorMessage and err never
// reaches the client. For 4xx the error text is included only when
// showDetail is set (development and test environments).
func Fail(w http.ResponseWriter, r *http.Request, status int, message string, err error, showDetail bool) {
	env := Envelope{Success: false, Message: message}

	logger := zerolog.Ctx(r.Context())
	switch {
	case status >= 500:
		env.Message = InternalErrorMessage
		logger.Error().
			Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	case err != nil:
		logger.Warn().
			Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
		if showDetail {
			env.Error = err.Error()
		}
	}

	Write(w, status, env)
}

// Invalid writes a 400 carrying the per-field failures.
func Invalid(w http.ResponseWriter, errs validation.Errors) {
	Write(w, http.StatusBadRequest, Envelope{
		Success: false,
		Message: "Validation failed",
		Errors:  errs,
	})
}
