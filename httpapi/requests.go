package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

// identityFields accepts the legacy clientId key next to identity.
type identityFields struct {
	Identity string `json:"identity"`
	ClientID string `json:"clientId"`
}

func (f identityFields) identity() string {
	return firstNonEmpty(f.Identity, f.ClientID)
}

type connectRequest struct {
	identityFields
	Email string `json:"email"`
}

type checkConnectionRequest struct {
	identityFields
	ProfileKey string `json:"profileKey"`
}

type publishRequest struct {
	identityFields
	Content      string   `json:"content"`
	Platforms    []string `json:"platforms"`
	MediaURLs    []string `json:"mediaUrls"`
	ScheduleDate string   `json:"scheduleDate"`
}

func (r publishRequest) scheduleDate() (*time.Time, error) {
	raw := strings.TrimSpace(r.ScheduleDate)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, badRequest("scheduleDate", "scheduleDate must be an RFC3339 timestamp")
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) error {
	if r.Body == nil {
		return badRequest("body", "request body is required")
	}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("body", "request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("body", "request body is too large")
		}
		return badRequest("body", "request body must be valid JSON")
	}
	return nil
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, badRequest("limit", "limit must be a non-negative integer")
	}
	return limit, nil
}

func badRequest(field string, message string) error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ServiceErrorBadInput)
}
