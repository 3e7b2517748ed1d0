package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	oauthcommand "github.com/goliatone/go-oauth-client/command"
	"github.com/goliatone/go-oauth-client/core"
	oauthquery "github.com/goliatone/go-oauth-client/query"
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

// HandshakeService is everything the handshake handlers dispatch to.
type HandshakeService interface {
	oauthcommand.HandshakeService
	oauthcommand.PurgeService
	oauthquery.PendingHandshakeReader
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

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

// Bindings holds the dispatcher subscriptions created for the handshake
// handlers.
type Bindings struct {
	subscriptions []commanddispatcher.Subscription
}

func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.subscriptions)
}

func (b *Bindings) Unsubscribe() {
	if b == nil {
		return
	}
	for _, subscription := range b.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	b.subscriptions = nil
}

// RegisterHandshakeHandlers registers the initiate, exchange, revoke and
// purge commands plus the pending handshakes query, and subscribes them on
// the global dispatcher. Registration stops at the first failure and
// releases any subscription already made.
func RegisterHandshakeHandlers(
	adapter *RegistryAdapter,
	service HandshakeService,
	runnerOpts ...runner.Option,
) (*Bindings, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: handshake service is required")
	}

	bindings := &Bindings{}
	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return registerAndSubscribe(adapter, oauthcommand.NewInitiateCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerAndSubscribe(adapter, oauthcommand.NewExchangeCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerAndSubscribe(adapter, oauthcommand.NewRevokeCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return registerAndSubscribe(adapter, oauthcommand.NewPurgeExpiredCommand(service), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return commanddispatcher.SubscribeQuery(oauthquery.NewPendingHandshakesQuery(service), runnerOpts...), nil
		},
	}
	for _, step := range steps {
		subscription, err := step()
		if err != nil {
			bindings.Unsubscribe()
			return nil, err
		}
		bindings.subscriptions = append(bindings.subscriptions, subscription)
	}
	return bindings, nil
}

func Initiate(ctx context.Context, req core.InitiateRequest) (core.RedirectInstruction, error) {
	return dispatchWithResult[oauthcommand.InitiateMessage, core.RedirectInstruction](ctx, oauthcommand.InitiateMessage{Request: req})
}

func Exchange(ctx context.Context, req core.ExchangeRequest) (core.ConnectionResult, error) {
	return dispatchWithResult[oauthcommand.ExchangeMessage, core.ConnectionResult](ctx, oauthcommand.ExchangeMessage{Request: req})
}

func Revoke(ctx context.Context, req core.RevokeRequest) (core.RevocationResult, error) {
	return dispatchWithResult[oauthcommand.RevokeMessage, core.RevocationResult](ctx, oauthcommand.RevokeMessage{Request: req})
}

func PurgeExpired(ctx context.Context) (core.PurgeResult, error) {
	return dispatchWithResult[oauthcommand.PurgeExpiredMessage, core.PurgeResult](ctx, oauthcommand.PurgeExpiredMessage{})
}

func PendingHandshakes(ctx context.Context, msg oauthquery.PendingHandshakesMessage) ([]core.HandshakeSummary, error) {
	return commanddispatcher.Query[oauthquery.PendingHandshakesMessage, []core.HandshakeSummary](ctx, msg)
}

func dispatchWithResult[T any, R any](ctx context.Context, msg T) (R, error) {
	var zero R
	if err := ValidateMessageContract(msg); err != nil {
		return zero, err
	}
	collector := command.NewResult[R]()
	if err := commanddispatcher.Dispatch(command.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("gocommand: %T produced no result", msg)
	}
	return out, nil
}

func registerAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}
