package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/nabava/internal/apperr"
	"github.com/erazemk/nabava/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Title string `json:"title,omitempty"`
	Field string `json:"field,omitempty"`
	// Outcome is set when the error ended a receipt post.
	Outcome string `json:"outcome,omitempty"`
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindInput:     http.StatusBadRequest,
	apperr.KindNotFound:  http.StatusNotFound,
	apperr.KindCanceled:  http.StatusConflict,
	apperr.KindQuery:     http.StatusInternalServerError,
	apperr.KindForbidden: http.StatusForbidden,
}

// writeAppError reports an operation failure and logs it once. Store
// sentinels that escape without an apperr wrapper map to the same kinds.
func writeAppError(w http.ResponseWriter, r *http.Request, err error, outcome string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		switch {
		case errors.Is(err, store.ErrNotFound):
			ae = apperr.NotFound("Not Found", "The requested record does not exist.")
		case errors.Is(err, store.ErrInvalid):
			ae = apperr.Input("Invalid Request", err.Error(), "")
		default:
			ae = apperr.Query("Database Error", err)
		}
	}

	status := kindStatus[ae.Kind]
	body := errorBody{Error: ae.Error(), Kind: ae.Kind.String(), Title: ae.Title, Field: ae.Field, Outcome: outcome}

	attrs := []any{"kind", ae.Kind.String(), "title", ae.Title, "path", r.URL.Path, "request_id", RequestID(r.Context())}
	if ae.Kind == apperr.KindQuery {
		attrs = append(attrs, "error", err, "at", ae.Location())
		slog.Error("operation failed", attrs...)
		// Database details stay in the log.
		body.Error = ae.Title
	} else {
		attrs = append(attrs, "error", ae.Error())
		slog.Warn("operation rejected", attrs...)
	}
	jsonResponse(w, status, body)
}

// pathID parses a numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// queryID parses an optional numeric query parameter. Missing means zero.
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseDate reads a YYYY-MM-DD date. Empty means the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// parseDecimal reads an optional decimal. Empty means nil.
func parseDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
