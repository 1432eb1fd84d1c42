package socialink

import "github.com/goliatone/go-socialink/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ConnectionStore = core.ConnectionStore
type ProviderGateway = core.ProviderGateway
type CallbackSigner = core.CallbackSigner
type JobEnqueuer = core.JobEnqueuer

type ConnectionRecord = core.ConnectionRecord

type ConnectRequest = core.ConnectRequest
type ConnectResult = core.ConnectResult

type CallbackRequest = core.CallbackRequest
type CallbackResult = core.CallbackResult

type CheckConnectionRequest = core.CheckConnectionRequest
type ConnectionStatus = core.ConnectionStatus

type PublishRequest = core.PublishRequest
type PublishResult = core.PublishResult

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithConnectionStore   = core.WithConnectionStore
	WithProviderGateway   = core.WithProviderGateway
	WithCallbackSigner    = core.WithCallbackSigner
	WithJobEnqueuer       = core.WithJobEnqueuer
	WithClock             = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
