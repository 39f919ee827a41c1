package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ssoworks/sso-service/internal/domain"
)

type memoryTokenStore struct {
	mu     sync.Mutex
	tokens *cache.Cache
	issued map[string]struct{}
}

// NewMemoryTokenStore returns a process-local store. Records never expire inside the cache:
// like the other backends, an elapsed record stays readable until DeleteExpired or a
// revoke removes it.
func NewMemoryTokenStore() TokenStore {
	return &memoryTokenStore{
		tokens: cache.New(cache.NoExpiration, 0),
		issued: make(map[string]struct{}),
	}
}

func (s *memoryTokenStore) Save(ctx context.Context, token *domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issued[token.Value]; exists {
		return fmt.Errorf("save %s token for %q: %w", token.Client, token.Subject, ErrConflict)
	}
	s.issued[token.Value] = struct{}{}
	s.tokens.Set(token.Value, cloneToken(token), cache.NoExpiration)
	return nil
}

func (s *memoryTokenStore) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.tokens.Get(value)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneToken(item.(*domain.Token)), nil
}

func (s *memoryTokenStore) FindBySubjectAndClient(ctx context.Context, subject string, client domain.Client) ([]domain.Token, error) {
	return s.find(ctx, func(t *domain.Token) bool {
		return t.Subject == subject && t.Client == client
	})
}

func (s *memoryTokenStore) FindBySubject(ctx context.Context, subject string) ([]domain.Token, error) {
	return s.find(ctx, func(t *domain.Token) bool {
		return t.Subject == subject
	})
}

func (s *memoryTokenStore) DeleteByValue(ctx context.Context, value string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens.Get(value); !ok {
		return false, nil
	}
	s.tokens.Delete(value)
	return true, nil
}

func (s *memoryTokenStore) DeleteAllBySubjectAndClient(ctx context.Context, subject string, client domain.Client) (int64, error) {
	return s.deleteWhere(ctx, func(t *domain.Token) bool {
		return t.Subject == subject && t.Client == client
	})
}

func (s *memoryTokenStore) DeleteAllBySubject(ctx context.Context, subject string) (int64, error) {
	return s.deleteWhere(ctx, func(t *domain.Token) bool {
		return t.Subject == subject
	})
}

func (s *memoryTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(ctx, func(t *domain.Token) bool {
		return t.Expired(now)
	})
}

func (s *memoryTokenStore) find(ctx context.Context, match func(*domain.Token) bool) ([]domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Token, 0)
	for _, item := range s.tokens.Items() {
		token := item.Object.(*domain.Token)
		if match(token) {
			out = append(out, *cloneToken(token))
		}
	}
	sortByIssuedAt(out)
	return out, nil
}

func (s *memoryTokenStore) deleteWhere(ctx context.Context, match func(*domain.Token) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for value, item := range s.tokens.Items() {
		if match(item.Object.(*domain.Token)) {
			s.tokens.Delete(value)
			removed++
		}
	}
	return removed, nil
}

func cloneToken(t *domain.Token) *domain.Token {
	out := *t
	out.Scope = append([]string(nil), t.Scope...)
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		out.ExpiresAt = &exp
	}
	out.Authentication.Authorities = append([]string(nil), t.Authentication.Authorities...)
	if t.Authentication.ProjectRoles != nil {
		roles := make(map[string]domain.ProjectRole, len(t.Authentication.ProjectRoles))
		for project, role := range t.Authentication.ProjectRoles {
			roles[project] = role
		}
		out.Authentication.ProjectRoles = roles
	}
	return &out
}

// sortByIssuedAt orders newest first so callers picking "any" token get the latest.
func sortByIssuedAt(tokens []domain.Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].IssuedAt.After(tokens[j].IssuedAt)
	})
}
