package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultDBDriver       = DriverMySQL
	defaultDBHost         = "127.0.0.1"
	defaultDBPort         = 3306
	defaultPostgresPort   = 5432
	defaultDBUser         = "root"
	defaultDBPassword     = "password"
	defaultDBName         = "notes"
	defaultDBCharset      = "utf8mb4"
	defaultDBLoc          = "Local"
	defaultPostgresSSL    = "disable"
	defaultMaxOpenConns   = 20
	defaultMaxIdleConns   = 5
	defaultConnMaxLife    = time.Hour
	defaultRedisHost      = "localhost"
	defaultRedisPort      = 6379
	defaultRedisDB        = 0
	defaultRedisKeyPrefix = "notes"

	// devJWTSecret signs tokens in development when no secret is configured.
	devJWTSecret           = "notes-development-secret-change-me"
	minJWTSecretLength     = 32
	defaultJWTIssuer       = "notes"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultRefreshMaxAge   = 30 * 24 * time.Hour
	defaultBcryptCost      = 10

	defaultLinkTokenBytes       = 32
	defaultLinkTokenAttempts    = 5
	defaultLinkPasswordAttempts = 10
	defaultLinkPasswordWindow   = 15 * time.Minute

	defaultGCInterval     = time.Hour
	defaultGCRetention    = 7 * 24 * time.Hour
	defaultRateLimitMax   = 120
	defaultRateLimitEvery = time.Minute
)
