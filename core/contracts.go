package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrConnectionNotFound    = errors.New("core: connection record not found")
	ErrProfileKeyRequired    = errors.New("core: provider profile key is required")
	ErrProviderProfileExists = errors.New("core: provider profile already exists")
)

// ConnectionStore persists one connection record per identity. Implementations
// must keep the profile key write-once and must never clear the connected flag.
type ConnectionStore interface {
	Get(ctx context.Context, identity string) (ConnectionRecord, error)
	SaveProfileKey(ctx context.Context, in SaveProfileKeyInput) (ConnectionRecord, error)
	MarkConnected(ctx context.Context, in MarkConnectedInput) (ConnectionRecord, error)
	ListPending(ctx context.Context, limit int) ([]ConnectionRecord, error)
}

type StoreProvider interface {
	ConnectionStore() ConnectionStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// ProviderGateway is the outbound contract to the third-party publishing
// provider. FindProfile reports found=false without error when no profile
// carries the reference.
type ProviderGateway interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (ProviderProfile, error)
	FindProfile(ctx context.Context, req FindProfileRequest) (ProviderProfile, bool, error)
	IssueSession(ctx context.Context, req IssueSessionRequest) (SessionGrant, error)
	GetActiveAccounts(ctx context.Context, profileKey string) ([]string, error)
	Publish(ctx context.Context, payload PublishPayload) (ProviderPublishResult, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// CallbackSigner binds the identity carried through the provider redirect so a
// forged callback cannot flip another identity to connected.
type CallbackSigner interface {
	Sign(identity string) string
	Verify(identity string, signature string) bool
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
