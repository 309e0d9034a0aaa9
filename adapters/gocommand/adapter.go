package gocommand

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	accounts "github.com/goliatone/go-accounts"
	accountscommand "github.com/goliatone/go-accounts/command"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// during Initialize. When messageTypes is set only those commands are
// mirrored; queries never are, since the queue runs Execute handlers only.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry, messageTypes ...string) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	allowed := make(map[string]struct{}, len(messageTypes))
	for _, messageType := range messageTypes {
		allowed[strings.TrimSpace(messageType)] = struct{}{}
	}
	resolve := jobqueuecommand.QueueResolver(queueRegistry)
	return a.AddResolver(key, func(cmd any, meta command.CommandMeta, registry *command.Registry) error {
		if len(allowed) > 0 {
			if _, ok := allowed[meta.MessageType]; !ok {
				return nil
			}
		}
		if !hasExecute(cmd) {
			return nil
		}
		return resolve(cmd, meta, registry)
	})
}

func hasExecute(cmd any) bool {
	if cmd == nil {
		return false
	}
	return reflect.ValueOf(cmd).MethodByName("Execute").IsValid()
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

// Dispatch rejects messages that break the message contract before they
// reach the dispatcher.
func Dispatch[T any](ctx context.Context, msg T) error {
	if err := ValidateMessageContract(msg); err != nil {
		return err
	}
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	if err := ValidateMessageContract(msg); err != nil {
		var zero R
		return zero, err
	}
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Subscriptions groups the dispatcher handles created for one facade.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// QueueResolverKey names the resolver that mirrors background commands into
// the go-job queue registry.
const QueueResolverKey = "accounts.queue"

// QueuedCommandTypes lists the commands that may run from a queue worker.
// Each takes only a user id, so its parameters survive the queue encoding.
var QueuedCommandTypes = []string{
	accountscommand.TypeRefreshGitHubConnection,
	accountscommand.TypeSyncProfile,
}

type facadeConfig struct {
	runnerOpts    []runner.Option
	queueRegistry *jobqueuecommand.Registry
}

type FacadeOption func(*facadeConfig)

// WithRunnerOptions passes runner options to every subscription.
func WithRunnerOptions(opts ...runner.Option) FacadeOption {
	return func(cfg *facadeConfig) {
		cfg.runnerOpts = append(cfg.runnerOpts, opts...)
	}
}

// WithQueueRegistry mirrors QueuedCommandTypes into reg so they can be
// enqueued with the go-job command helpers and run by a local worker.
func WithQueueRegistry(reg *jobqueuecommand.Registry) FacadeOption {
	return func(cfg *facadeConfig) {
		cfg.queueRegistry = reg
	}
}

// RegisterFacade subscribes every accounts command and query on the global
// dispatcher, records them in the registry and initializes it. No further
// commands can be registered on the adapter afterwards. On failure the
// subscriptions made so far are released.
func RegisterFacade(adapter *RegistryAdapter, facade *accounts.Facade, opts ...FacadeOption) (Subscriptions, error) {
	if facade == nil {
		return nil, fmt.Errorf("gocommand: accounts facade is required")
	}
	cfg := facadeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	runnerOpts := cfg.runnerOpts
	commands := facade.Commands()
	queries := facade.Queries()

	var subs Subscriptions
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.StartBlueskyAuth, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.CompleteBlueskyAuth, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.Logout, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.LoginAsDefaultUser, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.StartGitHubAccessToken, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.StartGitHubInstallation, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.ConnectGitHub, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.DisconnectGitHub, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.RefreshGitHubConnection, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.SyncProfile, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, commands.DeleteUser, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.ValidateSession, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.GetUserByID, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.GetUserByHandle, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.CountUsers, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.ListUsers, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.GetGitHubConnection, runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, queries.ListGitHubInstallations, runnerOpts...)
		},
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, subscription)
	}

	if cfg.queueRegistry != nil && !adapter.HasResolver(QueueResolverKey) {
		if err := adapter.AddQueueResolver(QueueResolverKey, cfg.queueRegistry, QueuedCommandTypes...); err != nil {
			subs.Unsubscribe()
			return nil, err
		}
	}
	if err := adapter.Initialize(); err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	return subs, nil
}
