package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-oauth-client/core"
)

var _ gocmd.Querier[PendingHandshakesMessage, []core.HandshakeSummary] = (*PendingHandshakesQuery)(nil)
