package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-oauth-client/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const maxPendingHandshakes = 1000

// HandshakeStore persists handshakes in the oauth_handshakes table. Consume
// is a single DELETE ... RETURNING statement, so concurrent callers racing on
// the same state see at most one row.
type HandshakeStore struct {
	db      *bun.DB
	repo    repository.Repository[*handshakeRecord]
	secrets core.SecretProvider
}

type StoreOption func(*HandshakeStore)

// WithSecretProvider seals code verifiers before they are written and opens
// them on consume.
func WithSecretProvider(secrets core.SecretProvider) StoreOption {
	return func(s *HandshakeStore) {
		s.secrets = secrets
	}
}

func NewHandshakeStore(db *bun.DB, opts ...StoreOption) (*HandshakeStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*handshakeRecord](db, handshakeHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid handshake repository wiring: %w", err)
		}
	}
	store := &HandshakeStore{db: db, repo: repo}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *HandshakeStore) Create(ctx context.Context, handshake core.Handshake) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: handshake store is not configured")
	}
	if strings.TrimSpace(handshake.State) == "" {
		return fmt.Errorf("sqlstore: handshake state is required")
	}
	if strings.TrimSpace(handshake.ProviderType) == "" {
		return fmt.Errorf("sqlstore: handshake provider type is required")
	}
	if handshake.CreatedAt.IsZero() {
		handshake.CreatedAt = time.Now().UTC()
	}
	if s.secrets != nil {
		sealed, err := s.secrets.Encrypt(ctx, []byte(handshake.CodeVerifier))
		if err != nil {
			return fmt.Errorf("sqlstore: seal code verifier: %w", err)
		}
		handshake.CodeVerifier = string(sealed)
	}
	if _, err := s.repo.Create(ctx, newHandshakeRecord(handshake)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("sqlstore: %w", core.ErrHandshakeExists)
		}
		return fmt.Errorf("sqlstore: create handshake: %w", err)
	}
	return nil
}

func (s *HandshakeStore) Consume(ctx context.Context, state string) (core.Handshake, error) {
	if s == nil || s.db == nil {
		return core.Handshake{}, fmt.Errorf("sqlstore: handshake store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return core.Handshake{}, core.ErrHandshakeNotFound
	}
	record := &handshakeRecord{}
	err := s.db.NewDelete().
		Model(record).
		Where("state = ?", state).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Handshake{}, core.ErrHandshakeNotFound
		}
		return core.Handshake{}, fmt.Errorf("sqlstore: consume handshake: %w", err)
	}
	if record.State == "" {
		return core.Handshake{}, core.ErrHandshakeNotFound
	}
	handshake := record.toDomain()
	if s.secrets != nil {
		opened, err := s.secrets.Decrypt(ctx, []byte(handshake.CodeVerifier))
		if err != nil {
			return core.Handshake{}, fmt.Errorf("sqlstore: open code verifier: %w", err)
		}
		handshake.CodeVerifier = string(opened)
	}
	return handshake, nil
}

func (s *HandshakeStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: handshake store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*handshakeRecord)(nil)).
		Where("created_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: purge handshakes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: purge handshakes rows affected: %w", err)
	}
	return int(affected), nil
}

// ListPending returns in-flight handshakes oldest first. Listed handshakes
// never carry the code verifier.
func (s *HandshakeStore) ListPending(ctx context.Context, ownerID string) ([]core.Handshake, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: handshake store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(maxPendingHandshakes, 0),
	}
	if ownerID = strings.TrimSpace(ownerID); ownerID != "" {
		criteria = append(criteria, repository.SelectBy("owner_id", "=", ownerID))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list handshakes: %w", err)
	}
	out := make([]core.Handshake, 0, len(records))
	for _, record := range records {
		handshake := record.toDomain()
		handshake.CodeVerifier = ""
		out = append(out, handshake)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key") ||
		strings.Contains(message, "23505")
}
