package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ssoworks/sso-service/internal/domain"
)

const (
	redisKeyPrefix   = "sso:"
	redisExpiryKey   = redisKeyPrefix + "expiry"
	maxWatchAttempts = 16
)

type redisToken struct {
	ID             string                `json:"id"`
	Value          string                `json:"value"`
	Subject        string                `json:"subject"`
	Client         domain.Client         `json:"client"`
	Scope          []string              `json:"scope"`
	IssuedAt       time.Time             `json:"issued_at"`
	ExpiresAt      *time.Time            `json:"expires_at,omitempty"`
	Authentication domain.Authentication `json:"authentication"`
}

type redisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore returns a Redis-backed implementation.
//
// Layout: the record lives at sso:token:{value}, the subject and subject/client
// sets index record values, sso:expiry scores values by expiry, and
// sso:issued:{value} is a permanent marker that makes Save reject reused values.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func tokenKey(value string) string  { return redisKeyPrefix + "token:" + value }
func issuedKey(value string) string { return redisKeyPrefix + "issued:" + value }
func subjectKey(subject string) string {
	return redisKeyPrefix + "subject:" + subject
}
func subjectClientKey(subject string, client domain.Client) string {
	return redisKeyPrefix + "subject:" + subject + ":" + string(client)
}

func (s *redisTokenStore) Save(ctx context.Context, token *domain.Token) error {
	payload, err := json.Marshal(redisToken{
		ID:             token.ID,
		Value:          token.Value,
		Subject:        token.Subject,
		Client:         token.Client,
		Scope:          token.Scope,
		IssuedAt:       token.IssuedAt,
		ExpiresAt:      token.ExpiresAt,
		Authentication: token.Authentication,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	fresh, err := s.client.SetNX(ctx, issuedKey(token.Value), token.Subject, 0).Result()
	if err != nil {
		return err
	}
	if !fresh {
		return fmt.Errorf("save %s token for %q: %w", token.Client, token.Subject, ErrConflict)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tokenKey(token.Value), payload, 0)
		pipe.SAdd(ctx, subjectKey(token.Subject), token.Value)
		pipe.SAdd(ctx, subjectClientKey(token.Subject, token.Client), token.Value)
		if token.ExpiresAt != nil {
			pipe.ZAdd(ctx, redisExpiryKey, redis.Z{
				Score:  float64(token.ExpiresAt.UnixMilli()),
				Member: token.Value,
			})
		}
		return nil
	})
	return err
}

func (s *redisTokenStore) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	raw, err := s.client.Get(ctx, tokenKey(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeRedisToken(raw)
}

func (s *redisTokenStore) FindBySubjectAndClient(ctx context.Context, subject string, client domain.Client) ([]domain.Token, error) {
	return s.loadIndex(ctx, subjectClientKey(subject, client))
}

func (s *redisTokenStore) FindBySubject(ctx context.Context, subject string) ([]domain.Token, error) {
	return s.loadIndex(ctx, subjectKey(subject))
}

func (s *redisTokenStore) DeleteByValue(ctx context.Context, value string) (bool, error) {
	token, err := s.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	var removed int64
	err = s.watch(ctx, func(tx *redis.Tx) error {
		cmds, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			unlinkToken(ctx, pipe, token.Value, token.Subject, token.Client)
			return nil
		})
		if err != nil {
			return err
		}
		removed = cmds[0].(*redis.IntCmd).Val()
		return nil
	}, tokenKey(value))
	return removed > 0, err
}

func (s *redisTokenStore) DeleteAllBySubjectAndClient(ctx context.Context, subject string, client domain.Client) (int64, error) {
	return s.deleteIndexed(ctx, subject, client)
}

func (s *redisTokenStore) DeleteAllBySubject(ctx context.Context, subject string) (int64, error) {
	return s.deleteIndexed(ctx, subject, "")
}

func (s *redisTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	values, err := s.client.ZRangeByScore(ctx, redisExpiryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, value := range values {
		ok, err := s.DeleteByValue(ctx, value)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			continue
		}
		// Stale expiry entry left behind by a record that is already gone.
		if err := s.client.ZRem(ctx, redisExpiryKey, value).Err(); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// deleteIndexed removes every record of subject, or only those of client when it is set. The
// index is watched so a concurrent Save for the same key aborts the transaction and the
// sweep is retried. Index members whose record is already gone are pruned from every
// index they may still sit in.
func (s *redisTokenStore) deleteIndexed(ctx context.Context, subject string, client domain.Client) (int64, error) {
	index := subjectKey(subject)
	if client != "" {
		index = subjectClientKey(subject, client)
	}

	var removed int64
	err := s.watch(ctx, func(tx *redis.Tx) error {
		values, err := tx.SMembers(ctx, index).Result()
		if err != nil {
			return err
		}
		if len(values) == 0 {
			removed = 0
			return nil
		}

		tokens := make([]*domain.Token, 0, len(values))
		var stale []string
		for _, value := range values {
			raw, err := tx.Get(ctx, tokenKey(value)).Bytes()
			if errors.Is(err, redis.Nil) {
				stale = append(stale, value)
				continue
			}
			if err != nil {
				return err
			}
			token, err := decodeRedisToken(raw)
			if err != nil {
				return err
			}
			tokens = append(tokens, token)
		}

		cmds, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, token := range tokens {
				unlinkToken(ctx, pipe, token.Value, token.Subject, token.Client)
			}
			if len(stale) > 0 {
				members := make([]interface{}, len(stale))
				for i, value := range stale {
					members[i] = value
				}
				pipe.SRem(ctx, subjectKey(subject), members...)
				for _, c := range domain.Clients() {
					pipe.SRem(ctx, subjectClientKey(subject, c), members...)
				}
				pipe.ZRem(ctx, redisExpiryKey, members...)
			}
			pipe.Del(ctx, index)
			return nil
		})
		if err != nil {
			return err
		}

		removed = 0
		for i := range tokens {
			// unlinkToken queues four commands per token, the first being DEL of the record.
			removed += cmds[i*4].(*redis.IntCmd).Val()
		}
		return nil
	}, index)
	return removed, err
}

func (s *redisTokenStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("watch %v: %w", keys, redis.TxFailedErr)
}

func (s *redisTokenStore) loadIndex(ctx context.Context, index string) ([]domain.Token, error) {
	values, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	tokens := make([]domain.Token, 0, len(values))
	if len(values) == 0 {
		return tokens, nil
	}

	keys := make([]string, len(values))
	for i, value := range values {
		keys[i] = tokenKey(value)
	}
	raws, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, raw := range raws {
		str, ok := raw.(string)
		if !ok {
			continue
		}
		token, err := decodeRedisToken([]byte(str))
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	sortByIssuedAt(tokens)
	return tokens, nil
}

func unlinkToken(ctx context.Context, pipe redis.Pipeliner, value, subject string, client domain.Client) {
	pipe.Del(ctx, tokenKey(value))
	pipe.SRem(ctx, subjectKey(subject), value)
	pipe.SRem(ctx, subjectClientKey(subject, client), value)
	pipe.ZRem(ctx, redisExpiryKey, value)
}

func decodeRedisToken(raw []byte) (*domain.Token, error) {
	var rt redisToken
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &domain.Token{
		ID:             rt.ID,
		Value:          rt.Value,
		Subject:        rt.Subject,
		Client:         rt.Client,
		Scope:          rt.Scope,
		IssuedAt:       rt.IssuedAt,
		ExpiresAt:      rt.ExpiresAt,
		Authentication: rt.Authentication,
	}, nil
}
