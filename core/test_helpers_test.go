package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubGateway struct {
	mu sync.Mutex

	profiles      map[string]ProviderProfile
	createErr     error
	findErr       error
	sessionGrant  SessionGrant
	sessionErr    error
	accounts      map[string][]string
	accountsErr   error
	publishResult ProviderPublishResult
	publishErr    error
	nextKey       func(reference string) string

	createCalls   int
	findCalls     int
	sessionCalls  int
	accountsCalls int
	publishCalls  int
	lastSession   IssueSessionRequest
	lastPublish   PublishPayload
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		profiles: map[string]ProviderProfile{},
		accounts: map[string][]string{},
		sessionGrant: SessionGrant{
			URL: "https://profile.example.com/link?jwt=abc",
		},
		publishResult: ProviderPublishResult{
			Status: "success",
			PostID: "post_1",
			Posts: []PlatformPost{
				{Platform: "facebook", ID: "fb_1", Status: "success"},
			},
		},
	}
}

func (g *stubGateway) CreateProfile(_ context.Context, req CreateProfileRequest) (ProviderProfile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return ProviderProfile{}, g.createErr
	}
	key := "pk_" + req.Reference
	if g.nextKey != nil {
		key = g.nextKey(req.Reference)
	}
	profile := ProviderProfile{ProfileKey: key, Reference: req.Reference, Title: req.Title}
	g.profiles[req.Reference] = profile
	return profile, nil
}

func (g *stubGateway) FindProfile(_ context.Context, req FindProfileRequest) (ProviderProfile, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.findCalls++
	if g.findErr != nil {
		return ProviderProfile{}, false, g.findErr
	}
	profile, ok := g.profiles[req.Reference]
	return profile, ok, nil
}

func (g *stubGateway) IssueSession(_ context.Context, req IssueSessionRequest) (SessionGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCalls++
	g.lastSession = req
	if g.sessionErr != nil {
		return SessionGrant{}, g.sessionErr
	}
	return g.sessionGrant, nil
}

func (g *stubGateway) GetActiveAccounts(_ context.Context, profileKey string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.accountsCalls++
	if g.accountsErr != nil {
		return nil, g.accountsErr
	}
	return append([]string(nil), g.accounts[profileKey]...), nil
}

func (g *stubGateway) Publish(_ context.Context, payload PublishPayload) (ProviderPublishResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.publishCalls++
	g.lastPublish = payload
	if g.publishErr != nil {
		return ProviderPublishResult{}, g.publishErr
	}
	return g.publishResult, nil
}

// flakyStore wraps a memory store and fails selected operations.
type flakyStore struct {
	*MemoryConnectionStore
	getErr    error
	saveErr   error
	markErr   error
	listErr   error
	markCalls int
	saveCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryConnectionStore: NewMemoryConnectionStore()}
}

func (s *flakyStore) Get(ctx context.Context, identity string) (ConnectionRecord, error) {
	if s.getErr != nil {
		return ConnectionRecord{}, s.getErr
	}
	return s.MemoryConnectionStore.Get(ctx, identity)
}

func (s *flakyStore) SaveProfileKey(ctx context.Context, in SaveProfileKeyInput) (ConnectionRecord, error) {
	s.saveCalls++
	if s.saveErr != nil {
		return ConnectionRecord{}, s.saveErr
	}
	return s.MemoryConnectionStore.SaveProfileKey(ctx, in)
}

func (s *flakyStore) MarkConnected(ctx context.Context, in MarkConnectedInput) (ConnectionRecord, error) {
	s.markCalls++
	if s.markErr != nil {
		return ConnectionRecord{}, s.markErr
	}
	return s.MemoryConnectionStore.MarkConnected(ctx, in)
}

func (s *flakyStore) ListPending(ctx context.Context, limit int) ([]ConnectionRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryConnectionStore.ListPending(ctx, limit)
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

var errStoreDown = errors.New("store unavailable")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Callback.URL = "https://app.example.com/callback"
	cfg.Redirect.SuccessURL = "https://app.example.com/linked"
	cfg.Redirect.FailureURL = "https://app.example.com/linked"
	cfg.Session.Domain = "acme"
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, store ConnectionStore, gateway ProviderGateway, opts ...Option) *Service {
	t.Helper()
	return newTestServiceWithConfig(t, testConfig(), store, gateway, opts...)
}

func newTestServiceWithConfig(t *testing.T, cfg Config, store ConnectionStore, gateway ProviderGateway, opts ...Option) *Service {
	t.Helper()
	base := []Option{
		WithConnectionStore(store),
		WithProviderGateway(gateway),
		WithClock(fixedClock),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
