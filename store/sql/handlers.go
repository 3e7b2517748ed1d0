package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func handshakeHandlers() repository.ModelHandlers[*handshakeRecord] {
	return repository.ModelHandlers[*handshakeRecord]{
		NewRecord: func() *handshakeRecord {
			return &handshakeRecord{}
		},
		GetID: func(record *handshakeRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *handshakeRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "state"
		},
		GetIdentifierValue: func(record *handshakeRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.State)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
