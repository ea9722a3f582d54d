package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// EconomyConfig holds the server-side economy constants.
type EconomyConfig struct {
	RestoreFloor    int64         `env:"ECONOMY_RESTORE_FLOOR" envDefault:"50"`
	LockoutDuration time.Duration `env:"ECONOMY_LOCKOUT_DURATION" envDefault:"10s"`
	// CatalogPath points at a YAML catalog; empty uses the embedded one.
	CatalogPath string `env:"CATALOG_PATH" envDefault:""`
}
