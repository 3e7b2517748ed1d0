package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-oauth-client/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type handshakeRecord struct {
	bun.BaseModel `bun:"table:oauth_handshakes,alias:oh"`

	ID            string    `bun:"id,pk"`
	State         string    `bun:"state,notnull,unique"`
	CodeVerifier  string    `bun:"code_verifier,notnull"`
	CodeChallenge string    `bun:"code_challenge,notnull"`
	ProviderType  string    `bun:"provider_type,notnull"`
	OwnerID       string    `bun:"owner_id,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func newHandshakeRecord(handshake core.Handshake) *handshakeRecord {
	return &handshakeRecord{
		ID:            uuid.NewString(),
		State:         strings.TrimSpace(handshake.State),
		CodeVerifier:  handshake.CodeVerifier,
		CodeChallenge: handshake.CodeChallenge,
		ProviderType:  strings.TrimSpace(handshake.ProviderType),
		OwnerID:       strings.TrimSpace(handshake.OwnerID),
		CreatedAt:     handshake.CreatedAt.UTC(),
	}
}

func (r *handshakeRecord) toDomain() core.Handshake {
	if r == nil {
		return core.Handshake{}
	}
	return core.Handshake{
		State:         r.State,
		CodeVerifier:  r.CodeVerifier,
		CodeChallenge: r.CodeChallenge,
		ProviderType:  r.ProviderType,
		OwnerID:       r.OwnerID,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}
