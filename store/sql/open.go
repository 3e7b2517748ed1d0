package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	oauthmigrations "github.com/goliatone/go-oauth-client/migrations"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultPingTimeout = 5 * time.Second
)

// PersistenceConfig satisfies the go-persistence-bun client configuration.
type PersistenceConfig struct {
	Driver         string        `koanf:"driver" mapstructure:"driver"`
	Server         string        `koanf:"server" mapstructure:"server"`
	Debug          bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout    time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
	OtelIdentifier string        `koanf:"otel_identifier" mapstructure:"otel_identifier"`
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.Server
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-oauth-client"
	}
	return c.OtelIdentifier
}

// OpenSQLite opens a persistence client on dsn and applies the sqlite
// handshake migrations.
func OpenSQLite(ctx context.Context, dsn string) (*persistence.Client, error) {
	return Open(ctx, PersistenceConfig{Driver: DriverSQLite, Server: dsn})
}

// OpenPostgres opens a persistence client on dsn and applies the postgres
// handshake migrations.
func OpenPostgres(ctx context.Context, dsn string) (*persistence.Client, error) {
	return Open(ctx, PersistenceConfig{Driver: DriverPostgres, Server: dsn})
}

func Open(ctx context.Context, cfg PersistenceConfig) (*persistence.Client, error) {
	var (
		dialect       schema.Dialect
		targetDialect string
	)
	switch strings.TrimSpace(strings.ToLower(cfg.Driver)) {
	case DriverSQLite, "sqlite":
		cfg.Driver = DriverSQLite
		dialect = sqlitedialect.New()
		targetDialect = oauthmigrations.DialectSQLite
	case DriverPostgres, "pg", "postgresql":
		cfg.Driver = DriverPostgres
		dialect = pgdialect.New()
		targetDialect = oauthmigrations.DialectPostgres
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, fmt.Errorf("sqlstore: server dsn is required")
	}

	sqlDB, err := sql.Open(cfg.Driver, cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	_, err = oauthmigrations.Register(ctx, func(_ context.Context, dialect string, fsys fs.FS) error {
		if dialect != targetDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, oauthmigrations.WithValidationTargets(targetDialect))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}
