package oauthclient

import (
	"context"
	"fmt"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oauth-client/adapters/gocommand"
	oauthcommand "github.com/goliatone/go-oauth-client/command"
	"github.com/goliatone/go-oauth-client/core"
	oauthquery "github.com/goliatone/go-oauth-client/query"
)

type CommandQueryService interface {
	oauthcommand.HandshakeService
	oauthcommand.PurgeService
	oauthquery.PendingHandshakeReader
}

type Commands struct {
	Initiate     *oauthcommand.InitiateCommand
	Exchange     *oauthcommand.ExchangeCommand
	Revoke       *oauthcommand.RevokeCommand
	PurgeExpired *oauthcommand.PurgeExpiredCommand
}

type Queries struct {
	PendingHandshakes *oauthquery.PendingHandshakesQuery
}

// Facade exposes the handshake service as go-command handlers. The typed
// helpers run a command and return the result it stored on the context.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	pendingReader oauthquery.PendingHandshakeReader
}

// WithPendingReader serves the pending handshakes query from reader instead
// of the service.
func WithPendingReader(reader oauthquery.PendingHandshakeReader) FacadeOption {
	return func(options *facadeOptions) {
		options.pendingReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("oauthclient: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	reader := cfg.pendingReader
	if reader == nil {
		reader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Initiate:     oauthcommand.NewInitiateCommand(service),
		Exchange:     oauthcommand.NewExchangeCommand(service),
		Revoke:       oauthcommand.NewRevokeCommand(service),
		PurgeExpired: oauthcommand.NewPurgeExpiredCommand(service),
	}
	facade.queries = Queries{
		PendingHandshakes: oauthquery.NewPendingHandshakesQuery(reader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func (f *Facade) Initiate(ctx context.Context, req core.InitiateRequest) (core.RedirectInstruction, error) {
	if f == nil || f.commands.Initiate == nil {
		return core.RedirectInstruction{}, fmt.Errorf("oauthclient: facade is not configured")
	}
	return executeWithResult[oauthcommand.InitiateMessage, core.RedirectInstruction](
		ctx, f.commands.Initiate, oauthcommand.InitiateMessage{Request: req},
	)
}

func (f *Facade) Exchange(ctx context.Context, req core.ExchangeRequest) (core.ConnectionResult, error) {
	if f == nil || f.commands.Exchange == nil {
		return core.ConnectionResult{}, fmt.Errorf("oauthclient: facade is not configured")
	}
	return executeWithResult[oauthcommand.ExchangeMessage, core.ConnectionResult](
		ctx, f.commands.Exchange, oauthcommand.ExchangeMessage{Request: req},
	)
}

func (f *Facade) Revoke(ctx context.Context, req core.RevokeRequest) (core.RevocationResult, error) {
	if f == nil || f.commands.Revoke == nil {
		return core.RevocationResult{}, fmt.Errorf("oauthclient: facade is not configured")
	}
	return executeWithResult[oauthcommand.RevokeMessage, core.RevocationResult](
		ctx, f.commands.Revoke, oauthcommand.RevokeMessage{Request: req},
	)
}

func (f *Facade) PurgeExpired(ctx context.Context) (core.PurgeResult, error) {
	if f == nil || f.commands.PurgeExpired == nil {
		return core.PurgeResult{}, fmt.Errorf("oauthclient: facade is not configured")
	}
	return executeWithResult[oauthcommand.PurgeExpiredMessage, core.PurgeResult](
		ctx, f.commands.PurgeExpired, oauthcommand.PurgeExpiredMessage{},
	)
}

func (f *Facade) PendingHandshakes(ctx context.Context, msg oauthquery.PendingHandshakesMessage) ([]core.HandshakeSummary, error) {
	if f == nil || f.queries.PendingHandshakes == nil {
		return nil, fmt.Errorf("oauthclient: facade is not configured")
	}
	return f.queries.PendingHandshakes.Query(ctx, msg)
}

type executor[T any] interface {
	Execute(ctx context.Context, msg T) error
}

func executeWithResult[T any, R any](ctx context.Context, cmd executor[T], msg T) (R, error) {
	var zero R
	if err := gocommand.ValidateMessageContract(msg); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[R]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, ok := collector.Load()
	if !ok {
		return zero, fmt.Errorf("oauthclient: %T produced no result", msg)
	}
	return out, nil
}
