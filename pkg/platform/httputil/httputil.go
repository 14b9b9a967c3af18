// Package httputil holds the JSON envelope helpers shared by HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"travelguard/pkg/platform/sentinel"
)

// MaxBodyBytes bounds request bodies; batches are the largest legitimate input.
const MaxBodyBytes = 1 << 20

const (
	CodeBadRequest  = "bad_request"
	CodeUnavailable = "service_unavailable"
	CodeInternal    = "internal_error"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto the error envelope. Internal errors omit the
// description so backend details never reach clients.
func WriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		WriteJSON(w, http.StatusBadRequest, errorResponse{Error: CodeBadRequest, ErrorDescription: err.Error()})
	case errors.Is(err, sentinel.ErrUnavailable):
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: CodeUnavailable})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: CodeInternal})
	}
}

// DecodeJSON decodes the request body into T. Syntax errors, unknown fields
// and oversized bodies are reported as sentinel.ErrInvalidInput.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, fmt.Errorf("empty request body: %w", sentinel.ErrInvalidInput)
		}
		return v, fmt.Errorf("invalid json: %v: %w", err, sentinel.ErrInvalidInput)
	}
	return v, nil
}
