package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/oauth2"
)

const (
	PKCEMethodS256 = "S256"

	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 64
)

type PKCEPair struct {
	Verifier  string
	Challenge string
	Method    string
}

// PKCEGenerator produces RFC 7636 verifier and S256 challenge pairs.
type PKCEGenerator struct {
	length int
	source io.Reader
}

func NewPKCEGenerator(length int, source io.Reader) (*PKCEGenerator, error) {
	if length == 0 {
		length = DefaultVerifierLength
	}
	if length < MinVerifierLength || length > MaxVerifierLength {
		return nil, fmt.Errorf(
			"core: pkce verifier length must be between %d and %d, got %d",
			MinVerifierLength,
			MaxVerifierLength,
			length,
		)
	}
	if source == nil {
		source = rand.Reader
	}
	return &PKCEGenerator{length: length, source: source}, nil
}

func (g *PKCEGenerator) Generate() (PKCEPair, error) {
	if g == nil {
		return PKCEPair{}, fmt.Errorf("core: pkce generator is not configured")
	}
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(g.length)+1)
	if _, err := io.ReadFull(g.source, raw); err != nil {
		return PKCEPair{}, fmt.Errorf("core: generate pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)[:g.length]
	return PKCEPair{
		Verifier:  verifier,
		Challenge: ChallengeS256(verifier),
		Method:    PKCEMethodS256,
	}, nil
}

// ChallengeS256 returns base64url(sha256(verifier)) without padding.
func ChallengeS256(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

func ValidVerifier(verifier string) bool {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return false
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreservedByte(verifier[i]) {
			return false
		}
	}
	return true
}

func isUnreservedByte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	default:
		return false
	}
}
