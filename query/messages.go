package query

import "strings"

const TypePendingHandshakes = "oauth.query.handshake.pending"

// PendingHandshakesMessage lists in-flight handshakes for OwnerID. All must
// be set explicitly to list handshakes across owners.
type PendingHandshakesMessage struct {
	OwnerID string
	All     bool
}

func (PendingHandshakesMessage) Type() string { return TypePendingHandshakes }

func (m PendingHandshakesMessage) Validate() error {
	owner := strings.TrimSpace(m.OwnerID)
	if owner == "" && !m.All {
		return queryValidationError("owner_id", "owner id is required")
	}
	if owner != "" && m.All {
		return queryValidationError("all", "all cannot be combined with owner id")
	}
	return nil
}
