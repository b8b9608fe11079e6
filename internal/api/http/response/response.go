// Package response writes the JSON envelope every REST endpoint answers with.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// Success is the envelope of a successful response.
type Success struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// Failure is the envelope of a failed response.
type Failure struct {
	StatusCode int    `json:"statusCode"`
	ErrorKind  string `json:"errorKind"`
	Reason     string `json:"reason,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrInvalidBody is returned by request decoding when the payload cannot be parsed.
var ErrInvalidBody = errors.New("invalid request body")

// Writer encodes envelopes and turns core errors into status codes.
type Writer struct {
	logger *logger.Logger
}

func NewWriter(logger *logger.Logger) *Writer {
	return &Writer{logger: logger}
}

// OK writes a success envelope with the given status.
func (wr *Writer) OK(w http.ResponseWriter, status int, data any, message string) {
	wr.write(w, status, Success{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// Error writes a failure envelope for err. Untyped errors are reported as an
// internal storage failure without leaking their text.
func (wr *Writer) Error(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidBody) {
		err = model.NewValidationError(model.ReasonMissingField, "", ErrInvalidBody.Error())
	}

	e, ok := model.AsError(err)
	if !ok {
		e = model.NewStorageError(err)
	}

	status := StatusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		wr.logger.Error("HTTP response: internal error",
			"error", err.Error())
	}

	wr.write(w, status, Failure{
		StatusCode: status,
		ErrorKind:  string(e.Kind),
		Reason:     outwardReason(e),
		Field:      e.Field,
		Message:    e.Message,
		Success:    false,
	})
}

// Unavailable writes a 503 failure envelope.
func (wr *Writer) Unavailable(w http.ResponseWriter, message string) {
	wr.write(w, http.StatusServiceUnavailable, Failure{
		StatusCode: http.StatusServiceUnavailable,
		ErrorKind:  string(model.KindStorage),
		Reason:     string(model.ReasonUnavailable),
		Message:    message,
		Success:    false,
	})
}

// invalidCredentialsReason replaces UserNotFound and BadPassword so a failed
// login never tells which factor was wrong.
const invalidCredentialsReason = "InvalidCredentials"

func outwardReason(e *model.Error) string {
	if e.Kind == model.KindAuth && (e.Reason == model.ReasonUserNotFound || e.Reason == model.ReasonBadPassword) {
		return invalidCredentialsReason
	}
	return string(e.Reason)
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindConflict:
		return http.StatusConflict
	case model.KindAuth, model.KindToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (wr *Writer) write(w http.ResponseWriter, status int, body any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(body); err != nil {
		wr.logger.Error("HTTP response: failed to encode body",
			"error", err.Error())
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		wr.logger.Error("HTTP response: failed to write body",
			"error", err.Error())
	}
}
