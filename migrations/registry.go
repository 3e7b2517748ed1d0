package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	oauthclient "github.com/goliatone/go-oauth-client"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const handshakeSchemaRoot = "data/sql/migrations"

// schemaDirs maps each dialect to its oauth_handshakes migrations in the
// embedded filesystem.
var schemaDirs = map[string]string{
	DialectPostgres: handshakeSchemaRoot,
	DialectSQLite:   handshakeSchemaRoot + "/sqlite",
}

type RegisterFunc func(ctx context.Context, dialect string, fsys fs.FS) error

type Option func(*registration)

type registration struct {
	targets []string
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *registration) {
		next := make([]string, 0, len(targets))
		for _, target := range targets {
			dialect := normalizeDialect(target)
			if dialect == "" || slices.Contains(next, dialect) {
				continue
			}
			next = append(next, dialect)
		}
		if len(next) > 0 {
			r.targets = next
		}
	}
}

// HandshakeSchema returns the handshake migrations for dialect.
func HandshakeSchema(dialect string) (fs.FS, error) {
	dir, ok := schemaDirs[normalizeDialect(dialect)]
	if !ok {
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	sub, err := fs.Sub(oauthclient.GetMigrationsFS(), dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s schema: %w", dialect, err)
	}
	matches, err := fs.Glob(sub, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s has no *.up.sql files", dir)
	}
	return sub, nil
}

// Register hands the handshake schema of every target dialect to registerFn
// and returns the dialects it registered. Both dialects are targeted unless
// WithValidationTargets narrows them.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]string, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	reg := registration{targets: []string{DialectPostgres, DialectSQLite}}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}

	registered := make([]string, 0, len(reg.targets))
	for _, dialect := range reg.targets {
		fsys, err := HandshakeSchema(dialect)
		if err != nil {
			return registered, err
		}
		if err := registerFn(ctx, dialect, fsys); err != nil {
			return registered, fmt.Errorf("migrations: register %s: %w", dialect, err)
		}
		registered = append(registered, dialect)
	}
	return registered, nil
}

func normalizeDialect(value string) string {
	switch dialect := strings.TrimSpace(strings.ToLower(value)); dialect {
	case "pg", "postgresql":
		return DialectPostgres
	case "sqlite3":
		return DialectSQLite
	default:
		return dialect
	}
}
