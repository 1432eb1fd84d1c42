package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service orchestrates identity resolution, link issuance, callback handling,
// connection reconciliation, and publishing. It holds no per-request state.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	connectionStore   ConnectionStore
	gateway           ProviderGateway
	callbackSigner    CallbackSigner
	jobEnqueuer       JobEnqueuer
	clock             func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	ConnectionStore   ConnectionStore
	ProviderGateway   ProviderGateway
	CallbackSigner    CallbackSigner
	JobEnqueuer       JobEnqueuer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(defaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(defaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.connectionStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			stores, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if stores != nil {
				builder.connectionStore = stores.ConnectionStore()
			}
		} else if stores, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.connectionStore = stores.ConnectionStore()
		}
	}
	if builder.connectionStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: connection store is required"))
	}
	if builder.gateway == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: provider gateway is required"))
	}
	if builder.callbackSigner == nil && strings.TrimSpace(finalConfig.Callback.SigningSecret) != "" {
		builder.callbackSigner = NewHMACCallbackSigner(finalConfig.Callback.SigningSecret)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		connectionStore:   builder.connectionStore,
		gateway:           builder.gateway,
		callbackSigner:    builder.callbackSigner,
		jobEnqueuer:       builder.jobEnqueuer,
		clock:             builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		ConnectionStore:   s.connectionStore,
		ProviderGateway:   s.gateway,
		CallbackSigner:    s.callbackSigner,
		JobEnqueuer:       s.jobEnqueuer,
	}
}

// GetConnection returns the stored record for identity.
func (s *Service) GetConnection(ctx context.Context, identity string) (ConnectionRecord, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return ConnectionRecord{}, MissingIdentityError()
	}
	record, err := s.connectionStore.Get(ctx, identity)
	if err != nil {
		return ConnectionRecord{}, s.mapError(err)
	}
	return record, nil
}

// ListPendingConnections returns records that hold a profile key but have not
// been confirmed as connected, oldest first.
func (s *Service) ListPendingConnections(ctx context.Context, limit int) ([]ConnectionRecord, error) {
	if limit < 0 {
		limit = 0
	}
	records, err := s.connectionStore.ListPending(ctx, limit)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// gatewayContext bounds a single outbound provider call.
func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := s.config.Gateway.RequestTimeout
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// lookupRecord reads the stored record. A missing record is not an error; any
// other store failure is returned so callers can decide whether it is fatal.
func (s *Service) lookupRecord(ctx context.Context, identity string) (ConnectionRecord, bool, error) {
	record, err := s.connectionStore.Get(ctx, identity)
	if err != nil {
		if goerrors.Is(err, ErrConnectionNotFound) {
			return ConnectionRecord{}, false, nil
		}
		return ConnectionRecord{}, false, err
	}
	return record, true, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
