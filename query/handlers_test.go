package query

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-oauth-client/core"
)

type stubPendingReader struct {
	ownerIDs []string
	out      []core.HandshakeSummary
}

func (s *stubPendingReader) PendingHandshakes(_ context.Context, ownerID string) ([]core.HandshakeSummary, error) {
	s.ownerIDs = append(s.ownerIDs, ownerID)
	return s.out, nil
}

func TestPendingHandshakesQuery_DelegatesToReader(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := &stubPendingReader{out: []core.HandshakeSummary{{
		ProviderType: "github",
		OwnerID:      "u1",
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(core.DefaultHandshakeTTL),
	}}}

	out, err := NewPendingHandshakesQuery(reader).Query(context.Background(), PendingHandshakesMessage{OwnerID: " u1 "})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].ProviderType != "github" {
		t.Fatalf("unexpected summaries %#v", out)
	}
	if len(reader.ownerIDs) != 1 || reader.ownerIDs[0] != "u1" {
		t.Fatalf("expected trimmed owner id, got %#v", reader.ownerIDs)
	}
}

func TestPendingHandshakesQuery_AllOwners(t *testing.T) {
	reader := &stubPendingReader{}
	if _, err := NewPendingHandshakesQuery(reader).Query(context.Background(), PendingHandshakesMessage{All: true}); err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(reader.ownerIDs) != 1 || reader.ownerIDs[0] != "" {
		t.Fatalf("expected empty owner for all, got %#v", reader.ownerIDs)
	}
	if _, err := NewPendingHandshakesQuery(reader).Query(context.Background(), PendingHandshakesMessage{OwnerID: "u1", All: true}); err == nil {
		t.Fatalf("expected all with owner id to be rejected")
	}
}

func TestPendingHandshakesQuery_ThroughServiceOmitsVerifier(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithProviders(pendingTestProvider{}),
		core.WithClock(func() time.Time { return clock }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Initiate(context.Background(), core.InitiateRequest{ProviderType: "stub", OwnerID: "u1"}); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	out, err := NewPendingHandshakesQuery(svc).Query(context.Background(), PendingHandshakesMessage{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one pending handshake, got %d", len(out))
	}
	if out[0].Expired || !out[0].ExpiresAt.Equal(clock.Add(core.DefaultHandshakeTTL)) {
		t.Fatalf("unexpected summary %#v", out[0])
	}
}

type pendingTestProvider struct{}

func (pendingTestProvider) Descriptor() core.ProviderDescriptor {
	return core.ProviderDescriptor{Type: "stub", AuthorizeURL: "https://stub.example/authorize"}
}

func (pendingTestProvider) SubmitCode(context.Context, string, core.Handshake) (core.ProviderTokens, error) {
	return core.ProviderTokens{}, nil
}

func (pendingTestProvider) OnConnected(context.Context, core.ProviderTokens) (core.ConnectionResult, error) {
	return core.ConnectionResult{}, nil
}

func (pendingTestProvider) OnRevoke(context.Context, core.RevokeRequest) (core.RevocationResult, error) {
	return core.RevocationResult{}, nil
}
