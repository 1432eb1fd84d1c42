package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	socialink "github.com/goliatone/go-socialink"
	socialinkcommand "github.com/goliatone/go-socialink/command"
	"github.com/goliatone/go-socialink/core"
	socialinkquery "github.com/goliatone/go-socialink/query"
)

const (
	defaultAllowedOrigin = "*"
	defaultMaxBodyBytes  = 1 << 20
)

type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Logger          glog.Logger
	AllowedOrigin   string
	MaxBodyBytes    int64
	ReadinessChecks []ReadinessCheck
}

// Handler exposes the facade commands and queries over HTTP.
type Handler struct {
	commands     socialink.Commands
	queries      socialink.Queries
	logger       glog.Logger
	origin       string
	maxBodyBytes int64
	checks       []ReadinessCheck
}

func New(facade *socialink.Facade, opts Options) (*Handler, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	origin := strings.TrimSpace(opts.AllowedOrigin)
	if origin == "" {
		origin = defaultAllowedOrigin
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Handler{
		commands:     facade.Commands(),
		queries:      facade.Queries(),
		logger:       glog.Ensure(opts.Logger),
		origin:       origin,
		maxBodyBytes: maxBody,
		checks:       append([]ReadinessCheck(nil), opts.ReadinessChecks...),
	}, nil
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/healthz", h.liveness)
	r.Get("/readyz", h.readiness)

	r.Post("/connect", h.connect)
	r.Get("/callback", h.callback)
	r.Post("/check-connection", h.checkConnection)
	r.Post("/post", h.publish)
	r.Get("/connections/{identity}", h.getConnection)
	r.Get("/connections", h.listPending)
	return r
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := execute[socialinkcommand.ConnectMessage, core.ConnectResult](r.Context(), h.commands.Connect, socialinkcommand.ConnectMessage{
		Request: core.ConnectRequest{Identity: req.identity(), Email: req.Email},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{
		Success:    true,
		LinkURL:    result.LinkURL,
		ProfileKey: result.ProfileKey,
		ExpiresAt:  result.ExpiresAt,
		Warning:    persistenceWarning(result.Persistence),
	})
}

// callback always answers with a redirect when the service produced one,
// including when the connected write failed.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	identity := firstNonEmpty(query.Get(core.CallbackIdentityParam), query.Get("clientId"))
	result, err := execute[socialinkcommand.CompleteCallbackMessage, core.CallbackResult](r.Context(), h.commands.CompleteCallback, socialinkcommand.CompleteCallbackMessage{
		Request: core.CallbackRequest{
			Identity:  identity,
			Status:    query.Get(core.CallbackStatusParam),
			Signature: query.Get(core.CallbackSignatureParam),
		},
	})
	if err != nil {
		h.logger.Warn("callback completed with error", "identity", identity, "error", err.Error())
	}
	if result.RedirectURL == "" {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

func (h *Handler) checkConnection(w http.ResponseWriter, r *http.Request) {
	var req checkConnectionRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := execute[socialinkcommand.CheckConnectionMessage, core.ConnectionStatus](r.Context(), h.commands.CheckConnection, socialinkcommand.CheckConnectionMessage{
		Request: core.CheckConnectionRequest{Identity: req.identity(), ProfileKey: req.ProfileKey},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := checkConnectionResponse{
		Success:     true,
		Connected:   status.Connected,
		Accounts:    status.Accounts,
		ConnectedAt: status.ConnectedAt,
		Warning:     persistenceWarning(status.Persistence),
	}
	if status.ProviderError != nil {
		resp.ProviderError = status.ProviderError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	scheduleDate, err := req.scheduleDate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := execute[socialinkcommand.PublishMessage, core.PublishResult](r.Context(), h.commands.Publish, socialinkcommand.PublishMessage{
		Request: core.PublishRequest{
			Identity:     req.identity(),
			Content:      req.Content,
			Platforms:    req.Platforms,
			MediaURLs:    req.MediaURLs,
			ScheduleDate: scheduleDate,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := publishResponse{
		Success:   true,
		PostID:    result.PostID,
		Status:    result.Status,
		Platforms: result.Platforms,
	}
	for _, post := range result.Posts {
		resp.Posts = append(resp.Posts, platformPostResponse{
			Platform: post.Platform,
			ID:       post.ID,
			URL:      post.URL,
			Status:   post.Status,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getConnection(w http.ResponseWriter, r *http.Request) {
	if h.queries.GetConnection == nil {
		h.writeError(w, r, nil)
		return
	}
	record, err := h.queries.GetConnection.Query(r.Context(), socialinkquery.GetConnectionMessage{
		Identity: chi.URLParam(r, "identity"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionEnvelope{Success: true, Connection: toConnectionResponse(record)})
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	if h.queries.ListPendingConnections == nil {
		h.writeError(w, r, nil)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.queries.ListPendingConnections.Query(r.Context(), socialinkquery.ListPendingConnectionsMessage{Limit: limit})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := connectionListResponse{Success: true, Connections: make([]connectionResponse, 0, len(records))}
	for _, record := range records {
		resp.Connections = append(resp.Connections, toConnectionResponse(record))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ALIVE"))
}

func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("READY"))
}

// execute runs cmd with a result collector attached to ctx. The collected
// value is returned alongside any error.
func execute[T any, R any](ctx context.Context, cmd gocmd.Commander[T], msg T) (R, error) {
	collector := gocmd.NewResult[R]()
	var zero R
	if cmd == nil {
		return zero, fmt.Errorf("httpapi: command is not configured")
	}
	err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg)
	result, ok := collector.Load()
	if !ok {
		return zero, err
	}
	return result, err
}

func persistenceWarning(outcome core.PersistenceOutcome) string {
	if !outcome.Failed() {
		return ""
	}
	return core.CallbackReasonPersistenceFailed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", h.origin)
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
