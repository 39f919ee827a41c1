package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/ssoworks/sso-service/internal/domain"
)

// tokenStoreSuite holds the behavior every TokenStore backend must share.
type tokenStoreSuite struct {
	suite.Suite
	newStore func() TokenStore
	store    TokenStore
	ctx      context.Context
	now      time.Time
	seq      int
}

func (s *tokenStoreSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *tokenStoreSuite) token(subject string, client domain.Client) *domain.Token {
	s.seq++
	exp := s.now.Add(time.Hour)
	return &domain.Token{
		ID:        uuid.NewString(),
		Value:     fmt.Sprintf("%s-%s-%d-%s", subject, client, s.seq, uuid.NewString()),
		Subject:   subject,
		Client:    client,
		Scope:     []string{"read"},
		IssuedAt:  s.now.Add(time.Duration(s.seq) * time.Millisecond),
		ExpiresAt: &exp,
		Authentication: domain.Authentication{
			Name:        subject,
			Authorities: []string{"USER"},
		},
	}
}

func (s *tokenStoreSuite) save(t *domain.Token) *domain.Token {
	s.Require().NoError(s.store.Save(s.ctx, t))
	return t
}

func (s *tokenStoreSuite) TestSaveAndFindByValue() {
	tok := s.token("alice", domain.ClientAPI)
	tok.Authentication.ProjectRoles = map[string]domain.ProjectRole{"p1": domain.ProjectRoleMember}
	s.save(tok)

	found, err := s.store.FindByValue(s.ctx, tok.Value)
	s.Require().NoError(err)
	s.Equal(tok.ID, found.ID)
	s.Equal("alice", found.Subject)
	s.Equal(domain.ClientAPI, found.Client)
	s.Equal([]string{"read"}, found.Scope)
	s.Require().NotNil(found.ExpiresAt)
	s.WithinDuration(*tok.ExpiresAt, *found.ExpiresAt, time.Millisecond)
	s.Equal(domain.ProjectRoleMember, found.Authentication.ProjectRoles["p1"])
}

func (s *tokenStoreSuite) TestFindByValueMissing() {
	_, err := s.store.FindByValue(s.ctx, "nope")
	s.ErrorIs(err, ErrNotFound)
}

func (s *tokenStoreSuite) TestSaveRejectsDuplicateValue() {
	tok := s.save(s.token("alice", domain.ClientUI))

	dup := s.token("bob", domain.ClientUI)
	dup.Value = tok.Value
	s.ErrorIs(s.store.Save(s.ctx, dup), ErrConflict)
}

func (s *tokenStoreSuite) TestSaveRejectsValueOfRevokedToken() {
	tok := s.save(s.token("alice", domain.ClientAPI))
	removed, err := s.store.DeleteByValue(s.ctx, tok.Value)
	s.Require().NoError(err)
	s.True(removed)

	again := s.token("alice", domain.ClientAPI)
	again.Value = tok.Value
	s.ErrorIs(s.store.Save(s.ctx, again), ErrConflict)
}

func (s *tokenStoreSuite) TestFindBySubjectAndClient() {
	api := s.save(s.token("alice", domain.ClientAPI))
	s.save(s.token("alice", domain.ClientUI))
	s.save(s.token("bob", domain.ClientAPI))

	tokens, err := s.store.FindBySubjectAndClient(s.ctx, "alice", domain.ClientAPI)
	s.Require().NoError(err)
	s.Require().Len(tokens, 1)
	s.Equal(api.Value, tokens[0].Value)

	tokens, err = s.store.FindBySubjectAndClient(s.ctx, "carol", domain.ClientAPI)
	s.Require().NoError(err)
	s.NotNil(tokens)
	s.Empty(tokens)
}

func (s *tokenStoreSuite) TestFindBySubjectNewestFirst() {
	first := s.save(s.token("alice", domain.ClientUI))
	second := s.save(s.token("alice", domain.ClientAPI))
	third := s.save(s.token("alice", domain.ClientUI))

	tokens, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(tokens, 3)
	s.Equal([]string{third.Value, second.Value, first.Value},
		[]string{tokens[0].Value, tokens[1].Value, tokens[2].Value})
}

func (s *tokenStoreSuite) TestDeleteByValueMissingReportsFalse() {
	removed, err := s.store.DeleteByValue(s.ctx, "nope")
	s.Require().NoError(err)
	s.False(removed)
}

func (s *tokenStoreSuite) TestDeleteByValueRemovesFromIndexes() {
	tok := s.save(s.token("alice", domain.ClientUI))

	removed, err := s.store.DeleteByValue(s.ctx, tok.Value)
	s.Require().NoError(err)
	s.True(removed)

	_, err = s.store.FindByValue(s.ctx, tok.Value)
	s.ErrorIs(err, ErrNotFound)
	tokens, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(tokens)

	removed, err = s.store.DeleteByValue(s.ctx, tok.Value)
	s.Require().NoError(err)
	s.False(removed)
}

func (s *tokenStoreSuite) TestDeleteAllBySubjectAndClient() {
	s.save(s.token("alice", domain.ClientAPI))
	s.save(s.token("alice", domain.ClientAPI))
	ui := s.save(s.token("alice", domain.ClientUI))
	other := s.save(s.token("bob", domain.ClientAPI))

	n, err := s.store.DeleteAllBySubjectAndClient(s.ctx, "alice", domain.ClientAPI)
	s.Require().NoError(err)
	s.EqualValues(2, n)

	tokens, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().Len(tokens, 1)
	s.Equal(ui.Value, tokens[0].Value)

	_, err = s.store.FindByValue(s.ctx, other.Value)
	s.NoError(err)

	n, err = s.store.DeleteAllBySubjectAndClient(s.ctx, "alice", domain.ClientAPI)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *tokenStoreSuite) TestDeleteAllBySubject() {
	s.save(s.token("alice", domain.ClientAPI))
	s.save(s.token("alice", domain.ClientUI))
	s.save(s.token("alice", domain.ClientUI))
	bob := s.save(s.token("bob", domain.ClientUI))

	n, err := s.store.DeleteAllBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.EqualValues(3, n)

	tokens, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Empty(tokens)

	_, err = s.store.FindByValue(s.ctx, bob.Value)
	s.NoError(err)

	n, err = s.store.DeleteAllBySubject(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *tokenStoreSuite) TestDeleteExpired() {
	past := s.now.Add(-time.Minute)
	expired := s.token("alice", domain.ClientUI)
	expired.ExpiresAt = &past
	s.save(expired)

	live := s.save(s.token("alice", domain.ClientUI))
	forever := s.token("alice", domain.ClientAPI)
	forever.ExpiresAt = nil
	s.save(forever)

	n, err := s.store.DeleteExpired(s.ctx, s.now)
	s.Require().NoError(err)
	s.EqualValues(1, n)

	tokens, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	values := []string{tokens[0].Value, tokens[1].Value}
	s.ElementsMatch([]string{live.Value, forever.Value}, values)
}

func (s *tokenStoreSuite) TestDeleteExpiredAfterRealTimeElapses() {
	exp := time.Now().Add(20 * time.Millisecond)
	short := s.token("alice", domain.ClientUI)
	short.ExpiresAt = &exp
	s.save(short)
	live := s.save(s.token("alice", domain.ClientUI))

	time.Sleep(50 * time.Millisecond)

	n, err := s.store.DeleteExpired(s.ctx, time.Now())
	s.Require().NoError(err)
	s.EqualValues(1, n)

	_, err = s.store.FindByValue(s.ctx, short.Value)
	s.ErrorIs(err, ErrNotFound)
	_, err = s.store.FindByValue(s.ctx, live.Value)
	s.NoError(err)
}

func (s *tokenStoreSuite) TestDeleteBySubjectAndClientRacingSaves() {
	const savers = 12
	const deleters = 3
	tokens := make([]*domain.Token, savers)
	for i := range tokens {
		tokens[i] = s.token("alice", domain.ClientAPI)
	}

	var wg sync.WaitGroup
	saveErrs := make(chan error, savers)
	deleted := make(chan int64, deleters)
	deleteErrs := make(chan error, deleters)
	for _, tok := range tokens {
		wg.Add(1)
		go func(tok *domain.Token) {
			defer wg.Done()
			saveErrs <- s.store.Save(s.ctx, tok)
		}(tok)
	}
	for i := 0; i < deleters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.DeleteAllBySubjectAndClient(s.ctx, "alice", domain.ClientAPI)
			deleted <- n
			deleteErrs <- err
		}()
	}
	wg.Wait()
	close(saveErrs)
	close(deleted)
	close(deleteErrs)

	for err := range saveErrs {
		s.Require().NoError(err)
	}
	for err := range deleteErrs {
		s.Require().NoError(err)
	}
	var removed int64
	for n := range deleted {
		removed += n
	}

	indexed, err := s.store.FindBySubjectAndClient(s.ctx, "alice", domain.ClientAPI)
	s.Require().NoError(err)
	listed := make(map[string]bool, len(indexed))
	for _, tok := range indexed {
		listed[tok.Value] = true
	}

	var live int64
	for _, tok := range tokens {
		_, err := s.store.FindByValue(s.ctx, tok.Value)
		if err == nil {
			live++
			s.True(listed[tok.Value], "live token %s missing from index", tok.Value)
			continue
		}
		s.ErrorIs(err, ErrNotFound)
		s.False(listed[tok.Value], "removed token %s still indexed", tok.Value)
	}
	s.EqualValues(savers, removed+live)
	s.Len(indexed, int(live))

	bySubject, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(bySubject, int(live))
}

func (s *tokenStoreSuite) TestConcurrentSavesOfDistinctValues() {
	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	tokens := make([]*domain.Token, workers)
	for i := range tokens {
		tokens[i] = s.token("alice", domain.ClientUI)
	}

	for _, tok := range tokens {
		wg.Add(1)
		go func(tok *domain.Token) {
			defer wg.Done()
			errs <- s.store.Save(s.ctx, tok)
		}(tok)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	found, err := s.store.FindBySubject(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(found, workers)
}

func (s *tokenStoreSuite) TestConcurrentSavesOfSameValueAdmitOne() {
	const workers = 10
	value := "shared-" + uuid.NewString()
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		tok := s.token(fmt.Sprintf("user-%d", i), domain.ClientAPI)
		tok.Value = value
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.store.Save(s.ctx, tok)
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		s.ErrorIs(err, ErrConflict)
		conflicts++
	}
	s.Equal(1, ok)
	s.Equal(workers-1, conflicts)
}

func (s *tokenStoreSuite) TestCanceledContextFails() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	s.Error(s.store.Save(ctx, s.token("alice", domain.ClientUI)))
	_, err := s.store.FindByValue(ctx, "anything")
	s.Error(err)
	s.NotErrorIs(err, ErrNotFound)
}
