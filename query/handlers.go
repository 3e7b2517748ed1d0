package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-oauth-client/core"
)

type PendingHandshakeReader interface {
	PendingHandshakes(ctx context.Context, ownerID string) ([]core.HandshakeSummary, error)
}

type PendingHandshakesQuery struct {
	reader PendingHandshakeReader
}

func NewPendingHandshakesQuery(reader PendingHandshakeReader) *PendingHandshakesQuery {
	return &PendingHandshakesQuery{reader: reader}
}

func (q *PendingHandshakesQuery) Query(ctx context.Context, msg PendingHandshakesMessage) ([]core.HandshakeSummary, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: pending handshake reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.PendingHandshakes(ctx, strings.TrimSpace(msg.OwnerID))
}
