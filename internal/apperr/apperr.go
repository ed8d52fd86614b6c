package apperr

import (
	"encoding/json"
	"net/http"
)

// Kind classifies a failure by how the session recovers from it.
type Kind int

const (
	// KindValidation: bad user input, shown inline, state unchanged.
	KindValidation Kind = iota + 1
	// KindNotFound: addressed resource absent, forces a navigation reset.
	KindNotFound
	// KindConflict: password or name rejected, returns to the prior state.
	KindConflict
	// KindTransient: store or network failure, generic message, no retry.
	KindTransient
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) JSON(w http.ResponseWriter) error {
	return json.NewEncoder(w).Encode(e)
}

func New(kind Kind, code int, msg, field string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: msg, Field: field}
}

func Validation(field, msg string) *AppError {
	return New(KindValidation, http.StatusBadRequest, msg, field)
}

func NotFound(msg string) *AppError {
	return New(KindNotFound, http.StatusNotFound, msg, "not-found")
}

func Conflict(field, msg string) *AppError {
	return New(KindConflict, http.StatusConflict, msg, field)
}

func Transient(msg string) *AppError {
	return New(KindTransient, http.StatusBadGateway, msg, "store")
}
