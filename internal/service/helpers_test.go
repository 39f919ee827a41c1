package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ssoworks/sso-service/internal/config"
	"github.com/ssoworks/sso-service/internal/domain"
	"github.com/ssoworks/sso-service/internal/events"
	"github.com/ssoworks/sso-service/internal/observability"
	"github.com/ssoworks/sso-service/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubStore delegates to a memory store unless a hook overrides the call.
type stubStore struct {
	repository.TokenStore
	saves        atomic.Int32
	save         func(ctx context.Context, token *domain.Token) error
	deleteByUser func(ctx context.Context, subject string, client domain.Client) (int64, error)
	find         func(ctx context.Context, value string) (*domain.Token, error)
}

func newStubStore() *stubStore {
	return &stubStore{TokenStore: repository.NewMemoryTokenStore()}
}

func (s *stubStore) Save(ctx context.Context, token *domain.Token) error {
	s.saves.Add(1)
	if s.save != nil {
		return s.save(ctx, token)
	}
	return s.TokenStore.Save(ctx, token)
}

func (s *stubStore) DeleteAllBySubjectAndClient(ctx context.Context, subject string, client domain.Client) (int64, error) {
	if s.deleteByUser != nil {
		return s.deleteByUser(ctx, subject, client)
	}
	return s.TokenStore.DeleteAllBySubjectAndClient(ctx, subject, client)
}

func (s *stubStore) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	if s.find != nil {
		return s.find(ctx, value)
	}
	return s.TokenStore.FindByValue(ctx, value)
}

// blockUntilDone simulates a store that never answers.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingSession struct {
	terminated int
}

func (s *recordingSession) Terminate() { s.terminated++ }

type serviceFixture struct {
	svc        *TokenService
	issuer     *TokenIssuer
	store      repository.TokenStore
	clock      *fakeClock
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	events     *eventLog
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) ofType(t events.EventType) []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testTokenConfig() config.TokenConfig {
	return config.TokenConfig{
		Store:                  config.StoreMemory,
		StoreTimeoutMillis:     200,
		SessionTokenTTLMinutes: 720,
		APITokenTTLDays:        0,
	}
}

func newFixture(store repository.TokenStore, cfg config.TokenConfig) *serviceFixture {
	if store == nil {
		store = repository.NewMemoryTokenStore()
	}
	clock := newFakeClock()
	issuer := NewTokenIssuer(store, cfg)
	issuer.now = clock.Now

	log := &eventLog{}
	dispatcher := events.NewInMemoryDispatcher()
	for _, t := range []events.EventType{events.EventTokenIssued, events.EventTokenRevoked, events.EventUserTokensRevoked} {
		dispatcher.Subscribe(t, log.record)
	}

	metrics := observability.NewMetrics()
	svc := NewTokenService(cfg, TokenDependencies{
		Store:      store,
		Issuer:     issuer,
		Dispatcher: dispatcher,
		Metrics:    metrics,
	})
	svc.now = clock.Now

	return &serviceFixture{
		svc:        svc,
		issuer:     issuer,
		store:      store,
		clock:      clock,
		metrics:    metrics,
		dispatcher: dispatcher,
		events:     log,
	}
}

func alice() domain.Principal {
	return domain.ProjectUser{
		User:     domain.User{Username: "alice", Granted: []string{"USER"}},
		Projects: map[string]domain.ProjectRole{"p1": domain.ProjectRoleMember},
	}
}
