package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssoworks/sso-service/internal/domain"
)

const uniqueViolation = "23505"

const tokenColumns = `id, value, subject, client, scope, authentication, issued_at, expires_at`

type postgresTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresTokenStore returns a Postgres-backed implementation. Revocation marks rows
// instead of deleting them, which keeps the unique index on value covering history.
func NewPostgresTokenStore(pool *pgxpool.Pool) TokenStore {
	return &postgresTokenStore{pool: pool}
}

func (r *postgresTokenStore) Save(ctx context.Context, token *domain.Token) error {
	const query = `
        INSERT INTO oauth_tokens (id, value, subject, client, scope, authentication, issued_at, expires_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	authentication, err := json.Marshal(token.Authentication)
	if err != nil {
		return fmt.Errorf("encode authentication: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		token.ID,
		token.Value,
		token.Subject,
		string(token.Client),
		token.Scope,
		authentication,
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("save %s token for %q: %w", token.Client, token.Subject, ErrConflict)
		}
		return err
	}
	return nil
}

func (r *postgresTokenStore) FindByValue(ctx context.Context, value string) (*domain.Token, error) {
	query := `SELECT ` + tokenColumns + `
        FROM oauth_tokens WHERE value=$1 AND revoked_at IS NULL`

	token, err := scanToken(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return token, nil
}

func (r *postgresTokenStore) FindBySubjectAndClient(ctx context.Context, subject string, client domain.Client) ([]domain.Token, error) {
	query := `SELECT ` + tokenColumns + `
        FROM oauth_tokens WHERE subject=$1 AND client=$2 AND revoked_at IS NULL
        ORDER BY issued_at DESC`
	return r.list(ctx, query, subject, string(client))
}

func (r *postgresTokenStore) FindBySubject(ctx context.Context, subject string) ([]domain.Token, error) {
	query := `SELECT ` + tokenColumns + `
        FROM oauth_tokens WHERE subject=$1 AND revoked_at IS NULL
        ORDER BY issued_at DESC`
	return r.list(ctx, query, subject)
}

func (r *postgresTokenStore) DeleteByValue(ctx context.Context, value string) (bool, error) {
	const query = `
        UPDATE oauth_tokens SET revoked_at=NOW()
        WHERE value=$1 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, value)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresTokenStore) DeleteAllBySubjectAndClient(ctx context.Context, subject string, client domain.Client) (int64, error) {
	const query = `
        UPDATE oauth_tokens SET revoked_at=NOW()
        WHERE subject=$1 AND client=$2 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, subject, string(client))
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresTokenStore) DeleteAllBySubject(ctx context.Context, subject string) (int64, error) {
	const query = `
        UPDATE oauth_tokens SET revoked_at=NOW()
        WHERE subject=$1 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, subject)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresTokenStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
        UPDATE oauth_tokens SET revoked_at=$1
        WHERE expires_at IS NOT NULL AND expires_at <= $1 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresTokenStore) list(ctx context.Context, query string, args ...any) ([]domain.Token, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]domain.Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *token)
	}
	return tokens, rows.Err()
}

func scanToken(row pgx.Row) (*domain.Token, error) {
	var (
		token          domain.Token
		client         string
		authentication []byte
	)
	if err := row.Scan(
		&token.ID,
		&token.Value,
		&token.Subject,
		&client,
		&token.Scope,
		&authentication,
		&token.IssuedAt,
		&token.ExpiresAt,
	); err != nil {
		return nil, err
	}
	token.Client = domain.Client(client)
	if err := json.Unmarshal(authentication, &token.Authentication); err != nil {
		return nil, fmt.Errorf("decode authentication for %q: %w", token.Subject, err)
	}
	return &token, nil
}
