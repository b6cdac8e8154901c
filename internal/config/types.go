package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production" | "test"
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Auth           AuthConfig            `yaml:"auth"`
	PublicLink     PublicLinkConfig      `yaml:"public_link"`
	GC             GCConfig              `yaml:"gc"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	Timezone       string                `yaml:"timezone"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
}

type DatabaseRuntimeConfig struct {
	Driver          string            `yaml:"driver"` // mysql | postgres | memory
	DSN             string            `yaml:"dsn"`
	URL             string            `yaml:"url"`
	Host            string            `yaml:"host"`
	Port            int               `yaml:"port"`
	User            string            `yaml:"user"`
	Username        string            `yaml:"username"`
	Password        string            `yaml:"password"`
	Name            string            `yaml:"name"`
	DBName          string            `yaml:"db_name"`
	Charset         string            `yaml:"charset"`
	ParseTime       bool              `yaml:"parse_time"`
	Loc             string            `yaml:"loc"`
	SSLMode         string            `yaml:"sslmode"`
	Params          map[string]string `yaml:"params"`
	MaxOpenConns    int               `yaml:"max_open_conns"`
	MaxIdleConns    int               `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `yaml:"conn_max_lifetime"`
}

type RedisRuntimeConfig struct {
	Enable    bool              `yaml:"enable"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	DB        int               `yaml:"db"`
	TLS       bool              `yaml:"tls"`
	Scheme    string            `yaml:"scheme"`
	KeyPrefix string            `yaml:"key_prefix"`
	Params    map[string]string `yaml:"params"`
}

type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	Issuer             string        `yaml:"issuer"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	RefreshTokenMaxAge time.Duration `yaml:"refresh_token_max_age"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

type PublicLinkConfig struct {
	TokenBytes       int `yaml:"token_bytes"`
	MaxTokenAttempts int `yaml:"max_token_attempts"`
	// PasswordAttempts caps wrong passwords per link and client within PasswordWindow.
	// Only enforced when redis is enabled.
	PasswordAttempts int           `yaml:"password_attempts"`
	PasswordWindow   time.Duration `yaml:"password_window"`
}

type GCConfig struct {
	Interval       time.Duration `yaml:"interval"`
	TokenRetention time.Duration `yaml:"token_retention"`
	LinkRetention  time.Duration `yaml:"link_retention"`
	ShareRetention time.Duration `yaml:"share_retention"`
}

type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// rawAppConfig accepts the canonical layout plus a few flat legacy keys.
type rawAppConfig struct {
	Port           int                 `yaml:"port"`
	Env            string              `yaml:"env"`
	DSN            string              `yaml:"dsn"`
	DatabaseURL    string              `yaml:"database_url"`
	RedisURL       string              `yaml:"redis_url"`
	JWTSecret      string              `yaml:"jwt_secret"`
	LogDir         string              `yaml:"log_dir"`
	Database       rawDatabaseConfig   `yaml:"database"`
	Redis          rawRedisConfig      `yaml:"redis"`
	Auth           rawAuthConfig       `yaml:"auth"`
	PublicLink     rawPublicLinkConfig `yaml:"public_link"`
	GC             GCConfig            `yaml:"gc"`
	RateLimit      rawRateLimitConfig  `yaml:"rate_limit"`
	AllowedOrigins []string            `yaml:"allowed_origins"`
	Timezone       string              `yaml:"timezone"`
	TZ             string              `yaml:"tz"`
	Paths          RuntimePathsConfig  `yaml:"paths"`
}

type rawDatabaseConfig struct {
	Driver          string            `yaml:"driver"`
	DSN             string            `yaml:"dsn"`
	URL             string            `yaml:"url"`
	Host            string            `yaml:"host"`
	Port            int               `yaml:"port"`
	User            string            `yaml:"user"`
	Username        string            `yaml:"username"`
	Password        string            `yaml:"password"`
	Name            string            `yaml:"name"`
	DBName          string            `yaml:"db_name"`
	Charset         string            `yaml:"charset"`
	ParseTime       *bool             `yaml:"parse_time"`
	Loc             string            `yaml:"loc"`
	SSLMode         string            `yaml:"sslmode"`
	Params          map[string]string `yaml:"params"`
	MaxOpenConns    int               `yaml:"max_open_conns"`
	MaxIdleConns    int               `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration     `yaml:"conn_max_lifetime"`
}

type rawRedisConfig struct {
	Enable    *bool             `yaml:"enable"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	DB        *int              `yaml:"db"`
	TLS       *bool             `yaml:"tls"`
	Scheme    string            `yaml:"scheme"`
	KeyPrefix string            `yaml:"key_prefix"`
	Params    map[string]string `yaml:"params"`
}

type rawAuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	Issuer             string        `yaml:"issuer"`
	AccessTokenTTL     time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `yaml:"refresh_token_ttl"`
	RefreshTokenMaxAge time.Duration `yaml:"refresh_token_max_age"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

type rawPublicLinkConfig struct {
	TokenBytes       int           `yaml:"token_bytes"`
	MaxTokenAttempts int           `yaml:"max_token_attempts"`
	PasswordAttempts *int          `yaml:"password_attempts"`
	PasswordWindow   time.Duration `yaml:"password_window"`
}

type rawRateLimitConfig struct {
	Max    *int          `yaml:"max"`
	Window time.Duration `yaml:"window"`
}
