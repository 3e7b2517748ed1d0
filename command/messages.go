package command

import (
	"strings"

	"github.com/goliatone/go-oauth-client/core"
)

const (
	TypeInitiate     = "oauth.command.handshake.initiate"
	TypeExchange     = "oauth.command.handshake.exchange"
	TypeRevoke       = "oauth.command.connection.revoke"
	TypePurgeExpired = "oauth.command.handshake.purge_expired"
)

type InitiateMessage struct {
	Request core.InitiateRequest
}

func (InitiateMessage) Type() string { return TypeInitiate }

func (m InitiateMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderType) == "" {
		return commandValidationError("provider_type", "provider type is required")
	}
	return nil
}

// ExchangeMessage carries the callback parameters. State is checked by the
// service so that a missing state surfaces as an invalid state error.
type ExchangeMessage struct {
	Request core.ExchangeRequest
}

func (ExchangeMessage) Type() string { return TypeExchange }

func (m ExchangeMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderType) == "" {
		return commandValidationError("provider_type", "provider type is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	return nil
}

type RevokeMessage struct {
	Request core.RevokeRequest
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (m RevokeMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderType) == "" {
		return commandValidationError("provider_type", "provider type is required")
	}
	return nil
}

type PurgeExpiredMessage struct{}

func (PurgeExpiredMessage) Type() string { return TypePurgeExpired }

func (PurgeExpiredMessage) Validate() error { return nil }
