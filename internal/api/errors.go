package api

import (
	"errors"
	"net/http"

	"slotbook/internal/domain"
)

type errorBody struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	Field string   `json:"field,omitempty"`
	Slots []string `json:"slots,omitempty"`
	Day   any      `json:"day,omitempty"`
}

func statusFor(kind string) int {
	switch kind {
	case "validation":
		return http.StatusBadRequest
	case "conflict":
		return http.StatusConflict
	case "not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newErrorBody(err error) errorBody {
	kind := domain.Kind(err)
	body := errorBody{Error: err.Error(), Kind: kind}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	var cerr *domain.ConflictError
	if errors.As(err, &cerr) {
		body.Slots = cerr.Slots
	}
	// не показываем клиенту детали ошибок хранилища
	if kind == "internal" {
		body.Error = "internal error"
	}
	return body
}

func writeError(w http.ResponseWriter, err error) {
	body := newErrorBody(err)
	writeJSON(w, statusFor(body.Kind), body)
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
