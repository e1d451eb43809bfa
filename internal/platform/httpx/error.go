// Package httpx holds the JSON envelope helpers shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/templatemart/api/internal/platform/requestctx"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Error represents the canonical JSON error envelope returned by the API.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetails attaches additional JSON-serialisable metadata.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError writes the structured error as JSON.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if id := sanitize(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := sanitize(requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}
	for k, v := range err.Details {
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}

	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON reads a single JSON object from the request body into dst.
// Unknown fields are rejected and the body is limited to MaxBodyBytes.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
