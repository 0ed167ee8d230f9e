package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// Dev seed for the in-memory store. Only applied when DatabaseURL is
	// empty; lets two smoke-test users share a conversation without Postgres.
	DevSeedConversation string
	DevSeedUsers        []string

	// Bearer-token policy for the websocket endpoint.
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, push notifications for durable events are written to the log
	// instead of being discarded (no real provider is wired in this service).
	PushLogSink bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("SOCIAL_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SOCIAL_LOG_LEVEL", "info"),
		LogFormat: EnvString("SOCIAL_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SOCIAL_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SOCIAL_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SOCIAL_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SOCIAL_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SOCIAL_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SOCIAL_DATABASE_URL", ""),
		DBSchema:    EnvString("SOCIAL_DB_SCHEMA", "social"),
		DBMaxConns:  EnvInt32("SOCIAL_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SOCIAL_DB_MIN_CONNS", 0),

		DevSeedConversation: EnvString("SOCIAL_DEV_SEED_CONV", ""),
		DevSeedUsers:        EnvStringList("SOCIAL_DEV_SEED_USERS"),

		JWTSecret: EnvString("SOCIAL_JWT_SECRET", ""),
		JWTIssuer: EnvString("SOCIAL_JWT_ISSUER", "social-app"),
		JWTTTL:    EnvDuration("SOCIAL_JWT_TTL", 30*time.Minute),

		ReadinessRequireDB: EnvBool("SOCIAL_READINESS_REQUIRE_DB", false),

		PushLogSink: EnvBool("SOCIAL_PUSH_LOG_SINK", true),
	}
}
