package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	libconfig "charge2earn/backend/libs/config"
)

const (
	StoreMemory   = "memory"
	StoreLevelDB  = "leveldb"
	StorePostgres = "postgres"

	defaultProgramID = "9kH9wQbeFXKr1FQ9jcQv51F5wn2XP9D2MVx7CFa72mfr"
)

type HTTPConfig struct {
	Port string `yaml:"port" env:"LEDGER_HTTP_PORT"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend" env:"LEDGER_STORE_BACKEND"`
	LevelDBPath string `yaml:"leveldbPath" env:"LEDGER_LEVELDB_PATH"`
}

type DatabaseConfig struct {
	DSN          string        `yaml:"dsn" env:"LEDGER_POSTGRES_DSN"`
	MaxOpenConns int           `yaml:"maxOpenConns" env:"LEDGER_POSTGRES_MAX_OPEN_CONNS"`
	ConnLifetime time.Duration `yaml:"connLifetime" env:"LEDGER_POSTGRES_CONN_LIFETIME"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"LEDGER_REDIS_ADDR"`
	Password string        `yaml:"password" env:"LEDGER_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"LEDGER_REDIS_DB"`
	TTL      time.Duration `yaml:"ttl" env:"LEDGER_REDIS_TTL"`
}

type ProgramConfig struct {
	ID                  string `yaml:"id" env:"LEDGER_PROGRAM_ID"`
	AdminKey            string `yaml:"adminKey" env:"LEDGER_ADMIN_KEY"`
	RentLamportsPerByte uint64 `yaml:"rentLamportsPerByte" env:"LEDGER_RENT_LAMPORTS_PER_BYTE"`
}

type JWTConfig struct {
	Secret      string        `yaml:"secret" env:"LEDGER_JWT_SECRET"`
	TTL         time.Duration `yaml:"ttl" env:"LEDGER_JWT_TTL"`
	LoginMaxAge time.Duration `yaml:"loginMaxAge" env:"LEDGER_LOGIN_MAX_AGE"`
}

type WSConfig struct {
	PingInterval   time.Duration `yaml:"pingInterval" env:"LEDGER_WS_PING_INTERVAL"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" env:"LEDGER_WS_WRITE_TIMEOUT"`
	AllowedOrigins []string      `yaml:"allowedOrigins" env:"LEDGER_WS_ALLOWED_ORIGINS"`
}

// Config defines ledger service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Program  ProgramConfig  `yaml:"program"`
	JWT      JWTConfig      `yaml:"jwt"`
	WS       WSConfig       `yaml:"ws"`
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:    HTTPConfig{Port: "8085"},
		Store:   StoreConfig{Backend: StoreMemory, LevelDBPath: "data/ledger"},
		Redis:   RedisConfig{TTL: 30 * time.Second},
		Program: ProgramConfig{ID: defaultProgramID},
		JWT:     JWTConfig{TTL: time.Hour, LoginMaxAge: 5 * time.Minute},
		WS:      WSConfig{PingInterval: 30 * time.Second, WriteTimeout: 10 * time.Second},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreLevelDB:
		if strings.TrimSpace(c.Store.LevelDBPath) == "" {
			return errors.New("config: leveldb path required")
		}
	case StorePostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("config: database dsn required")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt secret required")
	}
	if _, err := c.ProgramID(); err != nil {
		return err
	}
	if _, err := c.AdminKey(); err != nil {
		return err
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ProgramID parses the configured program id.
func (c *Config) ProgramID() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(c.Program.ID))
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config: program id: %w", err)
	}
	return pk, nil
}

// AdminKey parses the admin key that receives charger registration fees.
func (c *Config) AdminKey() (solana.PublicKey, error) {
	raw := strings.TrimSpace(c.Program.AdminKey)
	if raw == "" {
		return solana.PublicKey{}, errors.New("config: admin key required")
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("config: admin key: %w", err)
	}
	if pk.Equals(solana.SystemProgramID) {
		return solana.PublicKey{}, fmt.Errorf("config: admin key %s cannot hold fees", pk)
	}
	return pk, nil
}

// LeaderboardTTL returns how long a cached leaderboard stays valid.
func (c *Config) LeaderboardTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 30 * time.Second
	}
	return c.Redis.TTL
}
