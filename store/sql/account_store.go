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

type AccountStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
	now  func() time.Time
}

func NewAccountStore(db *bun.DB) (*AccountStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid account repository wiring: %w", err)
		}
	}
	return &AccountStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *AccountStore) FindByDID(ctx context.Context, did string) (core.UserAccount, error) {
	return s.findOne(ctx, "?TableAlias.did = ?", strings.TrimSpace(did))
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (core.UserAccount, error) {
	return s.findOne(ctx, "?TableAlias.id = ?", strings.TrimSpace(id))
}

func (s *AccountStore) FindByHandle(ctx context.Context, handle string) (core.UserAccount, error) {
	return s.findOne(ctx, "LOWER(?TableAlias.handle) = ?", strings.ToLower(strings.TrimSpace(handle)))
}

func (s *AccountStore) findOne(ctx context.Context, where string, value string) (core.UserAccount, error) {
	if s == nil || s.db == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	if value == "" {
		return core.UserAccount{}, core.ErrAccountNotFound
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where(where, value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserAccount{}, fmt.Errorf("%w: %q", core.ErrAccountNotFound, value)
		}
		return core.UserAccount{}, err
	}
	return record.toDomain(), nil
}

func (s *AccountStore) Create(ctx context.Context, in core.CreateAccountInput) (core.UserAccount, error) {
	if s == nil || s.repo == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	in.DID = strings.TrimSpace(in.DID)
	in.Handle = strings.TrimSpace(in.Handle)
	if in.DID == "" {
		return core.UserAccount{}, fmt.Errorf("sqlstore: did is required")
	}
	if in.Handle == "" {
		return core.UserAccount{}, fmt.Errorf("sqlstore: handle is required")
	}

	created, err := s.repo.Create(ctx, newUserRecord(uuid.NewString(), in, s.now()))
	if err != nil {
		return core.UserAccount{}, err
	}
	return created.toDomain(), nil
}

// Update replaces the handle and profile columns of an existing account.
func (s *AccountStore) Update(ctx context.Context, account core.UserAccount) (core.UserAccount, error) {
	if s == nil || s.repo == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	id := strings.TrimSpace(account.ID)
	if id == "" {
		return core.UserAccount{}, fmt.Errorf("sqlstore: account id is required")
	}
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return core.UserAccount{}, err
	}

	updatedAt := account.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}
	handle := strings.TrimSpace(account.Handle)
	if handle == "" {
		handle = current.Handle
	}
	record := newUserRecord(id, core.CreateAccountInput{
		DID:     current.DID,
		Handle:  handle,
		Profile: account.Profile,
	}, current.CreatedAt)
	record.UpdatedAt = updatedAt.UTC()

	updated, err := s.repo.Update(ctx, record, repository.UpdateByID(id))
	if err != nil {
		return core.UserAccount{}, err
	}
	return updated.toDomain(), nil
}

// Delete removes the account and its GitHub connection.
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*githubConnectionRecord)(nil)).
			Where("user_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().
			Model((*userRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return fmt.Errorf("%w: %q", core.ErrAccountNotFound, id)
		}
		return nil
	})
}

func (s *AccountStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: account store is not configured")
	}
	return s.db.NewSelect().Model((*userRecord)(nil)).Count(ctx)
}

// List pages accounts in creation order.
func (s *AccountStore) List(ctx context.Context, opts core.ListUsersOptions) ([]core.UserAccount, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	opts = opts.Normalize()
	records, _, err := s.repo.List(ctx,
		repository.OrderBy("created_at ASC"),
		repository.OrderBy("id ASC"),
		repository.SelectPaginate(opts.Limit, opts.Offset),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.UserAccount, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}
