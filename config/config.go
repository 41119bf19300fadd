package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Authentication and token configuration
//   - database.go: Platform database, tenant admin, and Redis configuration
//   - http.go: HTTP server configuration
//   - ratelimit.go: Admission control configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Database configuration
	Postgres    DBConfig          `envPrefix:"DB_"`
	TenantAdmin TenantAdminConfig `envPrefix:"TENANT_ADMIN_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Admission control configuration
	RateLimit RateLimitConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.RateLimit.Sanitize()
}
