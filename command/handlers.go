package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oauth-client/core"
)

type HandshakeService interface {
	Initiate(ctx context.Context, req core.InitiateRequest) (core.RedirectInstruction, error)
	Exchange(ctx context.Context, req core.ExchangeRequest) (core.ConnectionResult, error)
	Revoke(ctx context.Context, req core.RevokeRequest) (core.RevocationResult, error)
}

type PurgeService interface {
	PurgeExpiredHandshakes(ctx context.Context) (core.PurgeResult, error)
}

type InitiateCommand struct {
	service HandshakeService
}

func NewInitiateCommand(service HandshakeService) *InitiateCommand {
	return &InitiateCommand{service: service}
}

func (c *InitiateCommand) Execute(ctx context.Context, msg InitiateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: initiate service is required")
	}
	out, err := c.service.Initiate(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangeCommand struct {
	service HandshakeService
}

func NewExchangeCommand(service HandshakeService) *ExchangeCommand {
	return &ExchangeCommand{service: service}
}

func (c *ExchangeCommand) Execute(ctx context.Context, msg ExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	out, err := c.service.Exchange(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeCommand struct {
	service HandshakeService
}

func NewRevokeCommand(service HandshakeService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	out, err := c.service.Revoke(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PurgeExpiredCommand struct {
	service PurgeService
}

func NewPurgeExpiredCommand(service PurgeService) *PurgeExpiredCommand {
	return &PurgeExpiredCommand{service: service}
}

func (c *PurgeExpiredCommand) Execute(ctx context.Context, _ PurgeExpiredMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: purge service is required")
	}
	out, err := c.service.PurgeExpiredHandshakes(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
