package adapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-socialink/adapters/gojob"
	"github.com/goliatone/go-socialink/adapters/gologger"
	"github.com/goliatone/go-socialink/core"
)

func TestRuntimeCompatibility_CallbackFailureIsReconciledThroughQueue(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryConnectionStore: core.NewMemoryConnectionStore(), failMark: true}
	if _, err := store.SaveProfileKey(ctx, core.SaveProfileKeyInput{Identity: "client-1", ProfileKey: "pk_1"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	queue := gojob.NewMemoryQueue()

	cfg := core.DefaultConfig()
	cfg.Callback.URL = "https://app.example.com/callback"
	svc, err := core.NewService(cfg,
		core.WithConnectionStore(store),
		core.WithProviderGateway(&accountsGateway{accounts: []string{"facebook"}}),
		core.WithJobEnqueuer(gojob.NewEnqueuerAdapter(queue)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.HandleCallback(ctx, core.CallbackRequest{Identity: "client-1", Status: "success"})
	if err == nil {
		t.Fatalf("expected persistence error from callback")
	}
	if result.RedirectURL == "" || result.Reason != core.CallbackReasonPersistenceFailed {
		t.Fatalf("expected redirect with persistence reason, got %#v", result)
	}
	if queue.Len() != 1 {
		t.Fatalf("expected one reconcile job, got %d", queue.Len())
	}

	store.setFailMark(false)
	logger := &compatLogger{}
	worker, err := core.NewReconcileWorker(svc,
		gojob.NewDequeuerAdapter(queue, gojob.NewRetryPolicy(time.Minute)),
		core.ReconcileWorkerOptions{Hook: gologger.NewWorkerLogHook(logger)},
	)
	if err != nil {
		t.Fatalf("new worker: %v", err)
	}
	received, err := worker.RunOnce(ctx)
	if err != nil || !received {
		t.Fatalf("run once: received=%v err=%v", received, err)
	}
	if queue.Len() != 0 {
		t.Fatalf("expected job to be acked, %d left", queue.Len())
	}
	record, err := svc.GetConnection(ctx, "client-1")
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if !record.Connected {
		t.Fatalf("expected record to be connected after reconcile")
	}
	if logger.infoCount() == 0 {
		t.Fatalf("expected worker success to be logged")
	}
}

func TestRuntimeCompatibility_GoJobLoggerBridge(t *testing.T) {
	logger := &compatLogger{}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob("socialink", &compatProvider{logger: logger}, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}
	jobProvider.GetLogger("socialink").Info("bridged")
	if logger.infoCount() != 1 {
		t.Fatalf("expected bridged log line")
	}
}

type flakyStore struct {
	*core.MemoryConnectionStore
	mu       sync.Mutex
	failMark bool
}

func (s *flakyStore) setFailMark(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMark = fail
}

func (s *flakyStore) MarkConnected(ctx context.Context, in core.MarkConnectedInput) (core.ConnectionRecord, error) {
	s.mu.Lock()
	fail := s.failMark
	s.mu.Unlock()
	if fail {
		return core.ConnectionRecord{}, errors.New("database is locked")
	}
	return s.MemoryConnectionStore.MarkConnected(ctx, in)
}

type accountsGateway struct {
	accounts []string
}

func (g *accountsGateway) CreateProfile(context.Context, core.CreateProfileRequest) (core.ProviderProfile, error) {
	return core.ProviderProfile{}, errors.New("not used")
}

func (g *accountsGateway) FindProfile(context.Context, core.FindProfileRequest) (core.ProviderProfile, bool, error) {
	return core.ProviderProfile{}, false, nil
}

func (g *accountsGateway) IssueSession(context.Context, core.IssueSessionRequest) (core.SessionGrant, error) {
	return core.SessionGrant{}, errors.New("not used")
}

func (g *accountsGateway) GetActiveAccounts(context.Context, string) ([]string, error) {
	return append([]string(nil), g.accounts...), nil
}

func (g *accountsGateway) Publish(context.Context, core.PublishPayload) (core.ProviderPublishResult, error) {
	return core.ProviderPublishResult{}, errors.New("not used")
}

type compatProvider struct {
	logger *compatLogger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	return p.logger
}

type compatLogger struct {
	mu    sync.Mutex
	infos int
}

func (l *compatLogger) infoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.infos
}

func (l *compatLogger) Trace(string, ...any) {}
func (l *compatLogger) Debug(string, ...any) {}
func (l *compatLogger) Warn(string, ...any)  {}
func (l *compatLogger) Error(string, ...any) {}
func (l *compatLogger) Fatal(string, ...any) {}

func (l *compatLogger) Info(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos++
}

func (l *compatLogger) WithContext(context.Context) glog.Logger {
	return l
}
