package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-accounts/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const accountCacheKeyPrefix = "go-accounts::account::v1"

// CachedAccountStore fronts an AccountStore with a read cache for lookups by
// DID and ID. Every mutation invalidates both keys of the affected account.
type CachedAccountStore struct {
	base  core.AccountStore
	cache repositorycache.CacheService
}

func NewCachedAccountStore(base core.AccountStore, cacheService repositorycache.CacheService) (*CachedAccountStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base account store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: account cache service is required")
	}
	return &CachedAccountStore{base: base, cache: cacheService}, nil
}

// AccountCacheKey returns go-accounts::account::v1::<field>::<value> with the
// value URL-path escaped.
func AccountCacheKey(field string, value string) string {
	return strings.Join([]string{
		accountCacheKeyPrefix,
		strings.TrimSpace(field),
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedAccountStore) FindByDID(ctx context.Context, did string) (core.UserAccount, error) {
	return s.cached(ctx, AccountCacheKey("did", did), func(ctx context.Context) (core.UserAccount, error) {
		return s.base.FindByDID(ctx, did)
	})
}

func (s *CachedAccountStore) FindByID(ctx context.Context, id string) (core.UserAccount, error) {
	return s.cached(ctx, AccountCacheKey("id", id), func(ctx context.Context) (core.UserAccount, error) {
		return s.base.FindByID(ctx, id)
	})
}

func (s *CachedAccountStore) FindByHandle(ctx context.Context, handle string) (core.UserAccount, error) {
	if s == nil || s.base == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	return s.base.FindByHandle(ctx, handle)
}

func (s *CachedAccountStore) cached(
	ctx context.Context,
	key string,
	fetch func(context.Context) (core.UserAccount, error),
) (core.UserAccount, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	account, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.UserAccount, error) {
		fetched, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return core.UserAccount{}, fetchErr
		}
		return cloneAccount(fetched), nil
	})
	if err != nil {
		return core.UserAccount{}, err
	}
	return cloneAccount(account), nil
}

func (s *CachedAccountStore) Create(ctx context.Context, in core.CreateAccountInput) (core.UserAccount, error) {
	if s == nil || s.base == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	created, err := s.base.Create(ctx, in)
	if err != nil {
		return core.UserAccount{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.UserAccount{}, err
	}
	return created, nil
}

func (s *CachedAccountStore) Update(ctx context.Context, account core.UserAccount) (core.UserAccount, error) {
	if s == nil || s.base == nil {
		return core.UserAccount{}, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	updated, err := s.base.Update(ctx, account)
	if err != nil {
		return core.UserAccount{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.UserAccount{}, err
	}
	return updated, nil
}

func (s *CachedAccountStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached account store is not configured")
	}
	current, findErr := s.base.FindByID(ctx, id)
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	if findErr != nil {
		current = core.UserAccount{ID: id}
	}
	return s.invalidate(ctx, current)
}

func (s *CachedAccountStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	return s.base.Count(ctx)
}

func (s *CachedAccountStore) List(ctx context.Context, opts core.ListUsersOptions) ([]core.UserAccount, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached account store is not configured")
	}
	return s.base.List(ctx, opts)
}

func (s *CachedAccountStore) invalidate(ctx context.Context, account core.UserAccount) error {
	if strings.TrimSpace(account.ID) != "" {
		if err := s.cache.Delete(ctx, AccountCacheKey("id", account.ID)); err != nil {
			return err
		}
	}
	if strings.TrimSpace(account.DID) != "" {
		if err := s.cache.Delete(ctx, AccountCacheKey("did", account.DID)); err != nil {
			return err
		}
	}
	return nil
}

func cloneAccount(account core.UserAccount) core.UserAccount {
	cloned := account
	cloned.Profile = core.Profile{
		DisplayName: optionalString(account.Profile.DisplayName),
		Description: optionalString(account.Profile.Description),
		AvatarURL:   optionalString(account.Profile.AvatarURL),
		BannerURL:   optionalString(account.Profile.BannerURL),
	}
	return cloned
}
