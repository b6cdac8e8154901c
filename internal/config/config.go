package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML content over the defaults and validates the result.
func Parse(content []byte) (*AppConfig, error) {
	cfg := Default()
	raw := rawAppConfig{}
	if len(bytes.TrimSpace(content)) > 0 {
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse: %w", err)
		}
	}

	applyRawAppConfig(&cfg, raw)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when a key is absent.
func Default() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Driver:    defaultDBDriver,
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host:      defaultRedisHost,
			Port:      defaultRedisPort,
			DB:        defaultRedisDB,
			KeyPrefix: defaultRedisKeyPrefix,
		},
		Auth: AuthConfig{
			Issuer:             defaultJWTIssuer,
			AccessTokenTTL:     defaultAccessTokenTTL,
			RefreshTokenTTL:    defaultRefreshTokenTTL,
			RefreshTokenMaxAge: defaultRefreshMaxAge,
			BcryptCost:         defaultBcryptCost,
		},
		PublicLink: PublicLinkConfig{
			TokenBytes:       defaultLinkTokenBytes,
			MaxTokenAttempts: defaultLinkTokenAttempts,
			PasswordAttempts: defaultLinkPasswordAttempts,
			PasswordWindow:   defaultLinkPasswordWindow,
		},
		GC: GCConfig{
			Interval:       defaultGCInterval,
			TokenRetention: defaultGCRetention,
			LinkRetention:  defaultGCRetention,
			ShareRetention: defaultGCRetention,
		},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitEvery,
		},
	}
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	cfg.Env = normalizeEnv(cfg.Env)

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.Auth = applyRawAuthConfig(cfg.Auth, raw)
	cfg.PublicLink = applyRawPublicLinkConfig(cfg.PublicLink, raw.PublicLink)

	if raw.GC.Interval != 0 {
		cfg.GC.Interval = raw.GC.Interval
	}
	if raw.GC.TokenRetention != 0 {
		cfg.GC.TokenRetention = raw.GC.TokenRetention
	}
	if raw.GC.LinkRetention != 0 {
		cfg.GC.LinkRetention = raw.GC.LinkRetention
	}
	if raw.GC.ShareRetention != 0 {
		cfg.GC.ShareRetention = raw.GC.ShareRetention
	}

	if raw.RateLimit.Max != nil {
		cfg.RateLimit.Max = *raw.RateLimit.Max
	}
	if raw.RateLimit.Window != 0 {
		cfg.RateLimit.Window = raw.RateLimit.Window
	}

	if len(raw.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	} else if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.Paths.Logs = v
	}
}

func applyRawDatabaseConfig(current DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	db := raw.Database
	if v := strings.ToLower(strings.TrimSpace(db.Driver)); v != "" {
		current.Driver = v
		if current.Driver == DriverPostgres && db.Port == 0 {
			current.Port = defaultPostgresPort
		}
	}
	if v := strings.TrimSpace(raw.DSN); v != "" {
		current.DSN = v
	}
	if v := strings.TrimSpace(raw.DatabaseURL); v != "" {
		current.URL = v
	}
	if db.DSN != "" {
		current.DSN = db.DSN
	}
	if db.URL != "" {
		current.URL = db.URL
	}
	if db.Host != "" {
		current.Host = db.Host
	}
	if db.Port != 0 {
		current.Port = db.Port
	}
	if db.User != "" {
		current.User = db.User
	}
	if db.Username != "" {
		current.User = db.Username
	}
	if db.Password != "" {
		current.Password = db.Password
	}
	if db.Name != "" {
		current.Name = db.Name
	}
	if db.DBName != "" {
		current.Name = db.DBName
	}
	if db.Charset != "" {
		current.Charset = db.Charset
	}
	if db.ParseTime != nil {
		current.ParseTime = *db.ParseTime
	}
	if db.Loc != "" {
		current.Loc = db.Loc
	}
	if db.SSLMode != "" {
		current.SSLMode = db.SSLMode
	}
	if len(db.Params) > 0 {
		current.Params = db.Params
	}
	if db.MaxOpenConns != 0 {
		current.MaxOpenConns = db.MaxOpenConns
	}
	if db.MaxIdleConns != 0 {
		current.MaxIdleConns = db.MaxIdleConns
	}
	if db.ConnMaxLifetime != 0 {
		current.ConnMaxLifetime = db.ConnMaxLifetime
	}
	return normalizeDatabaseConfig(current)
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	r := raw.Redis
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		current.URL = v
		current.Enable = true
	}
	if r.Enable != nil {
		current.Enable = *r.Enable
	}
	if r.URL != "" {
		current.URL = r.URL
	}
	if r.Host != "" {
		current.Host = r.Host
	}
	if r.Port != 0 {
		current.Port = r.Port
	}
	if r.Username != "" {
		current.Username = r.Username
	}
	if r.Password != "" {
		current.Password = r.Password
	}
	if r.DB != nil {
		current.DB = *r.DB
	}
	if r.TLS != nil {
		current.TLS = *r.TLS
	}
	if r.Scheme != "" {
		current.Scheme = r.Scheme
	}
	if r.KeyPrefix != "" {
		current.KeyPrefix = r.KeyPrefix
	}
	if len(r.Params) > 0 {
		current.Params = r.Params
	}
	return normalizeRedisConfig(current)
}

func applyRawAuthConfig(current AuthConfig, raw rawAppConfig) AuthConfig {
	a := raw.Auth
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		current.JWTSecret = v
	}
	if v := strings.TrimSpace(a.JWTSecret); v != "" {
		current.JWTSecret = v
	}
	if v := strings.TrimSpace(a.Issuer); v != "" {
		current.Issuer = v
	}
	if a.AccessTokenTTL != 0 {
		current.AccessTokenTTL = a.AccessTokenTTL
	}
	if a.RefreshTokenTTL != 0 {
		current.RefreshTokenTTL = a.RefreshTokenTTL
	}
	if a.RefreshTokenMaxAge != 0 {
		current.RefreshTokenMaxAge = a.RefreshTokenMaxAge
	}
	if a.BcryptCost != 0 {
		current.BcryptCost = a.BcryptCost
	}
	return current
}

func applyRawPublicLinkConfig(current PublicLinkConfig, raw rawPublicLinkConfig) PublicLinkConfig {
	if raw.TokenBytes != 0 {
		current.TokenBytes = raw.TokenBytes
	}
	if raw.MaxTokenAttempts != 0 {
		current.MaxTokenAttempts = raw.MaxTokenAttempts
	}
	if raw.PasswordAttempts != nil {
		current.PasswordAttempts = *raw.PasswordAttempts
	}
	if raw.PasswordWindow != 0 {
		current.PasswordWindow = raw.PasswordWindow
	}
	return current
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid database.driver %q, expected mysql, postgres or memory", c.Database.Driver)
	}
	if c.Redis.Enable {
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
		}
		if c.Redis.DB < 0 {
			return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
		}
	}

	if c.Auth.JWTSecret == "" && c.IsDev() {
		c.Auth.JWTSecret = devJWTSecret
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth token ttls must be positive")
	}
	if c.Auth.RefreshTokenMaxAge < c.Auth.RefreshTokenTTL {
		return fmt.Errorf("auth.refresh_token_max_age %s is shorter than refresh_token_ttl %s",
			c.Auth.RefreshTokenMaxAge, c.Auth.RefreshTokenTTL)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid auth.bcrypt_cost %d, expected %d-%d", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.PublicLink.TokenBytes < 16 || c.PublicLink.TokenBytes > 48 {
		return fmt.Errorf("invalid public_link.token_bytes %d, expected 16-48", c.PublicLink.TokenBytes)
	}
	if c.PublicLink.MaxTokenAttempts < 1 {
		return fmt.Errorf("invalid public_link.max_token_attempts %d, expected >= 1", c.PublicLink.MaxTokenAttempts)
	}
	if c.GC.Interval < time.Minute {
		return fmt.Errorf("gc.interval %s is below one minute", c.GC.Interval)
	}
	if c.RateLimit.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d", c.RateLimit.Max)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv) || strings.EqualFold(c.Env, "test")
}

// Addr is the listen address for the HTTP server.
func (c *AppConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Location returns the configured timezone, defaulting to the process local zone.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
