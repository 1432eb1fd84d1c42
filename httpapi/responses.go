package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-socialink/core"
)

type errorResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Fields  map[string]any `json:"fields,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type connectResponse struct {
	Success    bool       `json:"success"`
	LinkURL    string     `json:"linkUrl"`
	ProfileKey string     `json:"profileKey"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Warning    string     `json:"warning,omitempty"`
}

type checkConnectionResponse struct {
	Success       bool       `json:"success"`
	Connected     bool       `json:"connected"`
	Accounts      []string   `json:"accounts,omitempty"`
	ConnectedAt   *time.Time `json:"connectedAt,omitempty"`
	ProviderError string     `json:"providerError,omitempty"`
	Warning       string     `json:"warning,omitempty"`
}

type platformPostResponse struct {
	Platform string `json:"platform"`
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Status   string `json:"status,omitempty"`
}

type publishResponse struct {
	Success   bool                   `json:"success"`
	PostID    string                 `json:"postId"`
	Status    string                 `json:"status"`
	Platforms []string               `json:"platforms"`
	Posts     []platformPostResponse `json:"posts"`
}

type connectionResponse struct {
	Identity      string     `json:"identity"`
	Email         string     `json:"email,omitempty"`
	ProfileKey    string     `json:"profileKey,omitempty"`
	State         string     `json:"state"`
	Connected     bool       `json:"connected"`
	ConnectedAt   *time.Time `json:"connectedAt,omitempty"`
	Label         string     `json:"label,omitempty"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type connectionEnvelope struct {
	Success    bool               `json:"success"`
	Connection connectionResponse `json:"connection"`
}

type connectionListResponse struct {
	Success     bool                 `json:"success"`
	Connections []connectionResponse `json:"connections"`
}

func toConnectionResponse(record core.ConnectionRecord) connectionResponse {
	return connectionResponse{
		Identity:      record.Identity,
		Email:         record.Email,
		ProfileKey:    record.ProviderProfileKey,
		State:         string(record.State()),
		Connected:     record.Connected,
		ConnectedAt:   record.ConnectedAt,
		Label:         record.ConnectionLabel,
		LastCheckedAt: record.LastCheckedAt,
		CreatedAt:     record.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorPayload(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "code", body.Code, "error", errorText(err))
	}
	writeJSON(w, status, body)
}

// errorPayload maps an error onto the response status and body. Errors
// without an envelope are reported as internal failures without their text.
func errorPayload(err error) (int, errorResponse) {
	var rich *goerrors.Error
	if err == nil || !goerrors.As(err, &rich) {
		return http.StatusInternalServerError, errorResponse{
			Error: "An unexpected error occurred",
			Code:  core.ServiceErrorInternal,
		}
	}
	status := rich.Code
	if status < http.StatusBadRequest || status > 599 {
		status = http.StatusInternalServerError
	}
	code := strings.TrimSpace(rich.TextCode)
	if code == "" {
		code = core.ServiceErrorInternal
	}
	body := errorResponse{
		Error: rich.Message,
		Code:  code,
	}
	if fields := rich.AllValidationErrors(); len(fields) > 0 {
		body.Fields = make(map[string]any, len(fields))
		for _, field := range fields {
			body.Fields[field.Field] = field.Message
		}
	}
	if code == core.ServiceErrorPublishRejected && len(rich.Metadata) > 0 {
		body.Details = rich.Metadata
	}
	return status, body
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
