package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-accounts/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenSealer encrypts credentials before they are written. Open must accept
// values that were never sealed.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

type ConnectionStoreOption func(*ConnectionStore)

func WithConnectionSealer(sealer TokenSealer) ConnectionStoreOption {
	return func(s *ConnectionStore) {
		s.sealer = sealer
	}
}

// ConnectionStore persists one GitHub connection per account.
type ConnectionStore struct {
	db     *bun.DB
	repo   repository.Repository[*githubConnectionRecord]
	sealer TokenSealer
	now    func() time.Time
}

func NewConnectionStore(db *bun.DB, opts ...ConnectionStoreOption) (*ConnectionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*githubConnectionRecord](db, githubConnectionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid connection repository wiring: %w", err)
		}
	}
	store := &ConnectionStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *ConnectionStore) FindByUserID(ctx context.Context, userID string) (core.GitHubConnection, error) {
	if s == nil || s.db == nil {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.GitHubConnection{}, core.ErrConnectionNotFound
	}
	record := &githubConnectionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.GitHubConnection{}, fmt.Errorf("%w: user %q", core.ErrConnectionNotFound, userID)
		}
		return core.GitHubConnection{}, err
	}
	return s.open(record.toDomain())
}

// Create stores a connection, replacing any existing one for the same user.
func (s *ConnectionStore) Create(ctx context.Context, in core.CreateConnectionInput) (core.GitHubConnection, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	in.UserID = strings.TrimSpace(in.UserID)
	if in.UserID == "" {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: access token is required")
	}

	sealed, err := s.sealInput(in)
	if err != nil {
		return core.GitHubConnection{}, err
	}

	var created core.GitHubConnection
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*githubConnectionRecord)(nil)).
			Where("user_id = ?", in.UserID).
			Exec(ctx); err != nil {
			return err
		}
		inserted, err := s.repo.CreateTx(ctx, tx, newGitHubConnectionRecord(uuid.NewString(), sealed, s.now()))
		if err != nil {
			return err
		}
		created = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.GitHubConnection{}, err
	}
	return s.open(created)
}

// Update rewrites the token columns of the user's connection.
func (s *ConnectionStore) Update(ctx context.Context, conn core.GitHubConnection) (core.GitHubConnection, error) {
	if s == nil || s.db == nil {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: connection store is not configured")
	}
	conn.UserID = strings.TrimSpace(conn.UserID)
	if conn.UserID == "" {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: user id is required")
	}
	updatedAt := conn.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	accessToken, err := s.seal(conn.AccessToken)
	if err != nil {
		return core.GitHubConnection{}, err
	}
	refreshToken, err := s.sealOptional(conn.RefreshToken)
	if err != nil {
		return core.GitHubConnection{}, err
	}

	res, err := s.db.NewUpdate().
		Model((*githubConnectionRecord)(nil)).
		Set("access_token = ?", accessToken).
		Set("refresh_token = ?", refreshToken).
		Set("expires_at = ?", utcTime(conn.ExpiresAt)).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("user_id = ?", conn.UserID).
		Exec(ctx)
	if err != nil {
		return core.GitHubConnection{}, err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return core.GitHubConnection{}, fmt.Errorf("%w: user %q", core.ErrConnectionNotFound, conn.UserID)
	}
	return s.FindByUserID(ctx, conn.UserID)
}

// DeleteByUserID is idempotent.
func (s *ConnectionStore) DeleteByUserID(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: connection store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*githubConnectionRecord)(nil)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Exec(ctx)
	return err
}

func (s *ConnectionStore) sealInput(in core.CreateConnectionInput) (core.CreateConnectionInput, error) {
	accessToken, err := s.seal(in.AccessToken)
	if err != nil {
		return core.CreateConnectionInput{}, err
	}
	refreshToken, err := s.sealOptional(in.RefreshToken)
	if err != nil {
		return core.CreateConnectionInput{}, err
	}
	in.AccessToken = accessToken
	in.RefreshToken = refreshToken
	return in, nil
}

func (s *ConnectionStore) seal(value string) (string, error) {
	if s.sealer == nil || value == "" {
		return value, nil
	}
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return "", fmt.Errorf("sqlstore: seal token: %w", err)
	}
	return sealed, nil
}

func (s *ConnectionStore) sealOptional(value *string) (*string, error) {
	value = optionalString(value)
	if value == nil {
		return nil, nil
	}
	sealed, err := s.seal(*value)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (s *ConnectionStore) open(conn core.GitHubConnection) (core.GitHubConnection, error) {
	if s.sealer == nil {
		return conn, nil
	}
	accessToken, err := s.sealer.Open(conn.AccessToken)
	if err != nil {
		return core.GitHubConnection{}, fmt.Errorf("sqlstore: open access token: %w", err)
	}
	conn.AccessToken = accessToken
	if conn.RefreshToken != nil {
		refreshToken, err := s.sealer.Open(*conn.RefreshToken)
		if err != nil {
			return core.GitHubConnection{}, fmt.Errorf("sqlstore: open refresh token: %w", err)
		}
		conn.RefreshToken = &refreshToken
	}
	return conn, nil
}
