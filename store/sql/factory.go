package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-accounts/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type FactoryOption func(*RepositoryFactory)

// WithAccountCache fronts the account store with a read cache.
func WithAccountCache(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

// WithTokenSealer encrypts GitHub tokens in the connection store.
func WithTokenSealer(sealer TokenSealer) FactoryOption {
	return func(f *RepositoryFactory) {
		f.sealer = sealer
	}
}

type RepositoryFactory struct {
	db     *bun.DB
	cache  repositorycache.CacheService
	sealer TokenSealer

	accountStore    core.AccountStore
	connectionStore *ConnectionStore
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// BuildStores resolves a *bun.DB from persistenceClient and wires the stores.
func (f *RepositoryFactory) BuildStores(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.accountStore != nil && f.connectionStore != nil {
		return nil
	}
	return f.initStores()
}

func (f *RepositoryFactory) AccountStore() core.AccountStore {
	if f == nil {
		return nil
	}
	return f.accountStore
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

// Options returns orchestrator options that install the SQL stores.
func (f *RepositoryFactory) Options() []core.Option {
	if f == nil {
		return nil
	}
	return []core.Option{
		core.WithAccountStore(f.accountStore),
		core.WithConnectionStore(f.connectionStore),
	}
}

func (f *RepositoryFactory) initStores() error {
	accountStore, err := NewAccountStore(f.db)
	if err != nil {
		return err
	}
	connectionStore, err := NewConnectionStore(f.db, WithConnectionSealer(f.sealer))
	if err != nil {
		return err
	}

	f.accountStore = accountStore
	if f.cache != nil {
		cached, err := NewCachedAccountStore(accountStore, f.cache)
		if err != nil {
			return err
		}
		f.accountStore = cached
	}
	f.connectionStore = connectionStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
