package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const stateEntropyBytes = 24

// StateGenerator issues unguessable handshake state tokens.
type StateGenerator func() (string, error)

func NewStateGenerator(source io.Reader) StateGenerator {
	if source == nil {
		source = rand.Reader
	}
	return func() (string, error) {
		raw := make([]byte, stateEntropyBytes)
		if _, err := io.ReadFull(source, raw); err != nil {
			return "", fmt.Errorf("core: generate handshake state: %w", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw), nil
	}
}
