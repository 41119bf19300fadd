package config

import "time"

// BucketConfig configures one admission-control token bucket class.
type BucketConfig struct {
	Capacity     int           `env:"CAPACITY"`
	RefillTokens int           `env:"REFILL_TOKENS"`
	RefillPeriod time.Duration `env:"REFILL_PERIOD"`
}

func (b *BucketConfig) sanitize(capacity, refill int, period time.Duration) {
	if b.Capacity <= 0 {
		b.Capacity = capacity
	}
	if b.RefillTokens <= 0 {
		b.RefillTokens = refill
	}
	if b.RefillPeriod <= 0 {
		b.RefillPeriod = period
	}
}

// RateLimitConfig contains admission control configuration. Enabled is the
// only switch that turns the checks off; a failing counter store rejects
// requests rather than waving them through.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	Login         BucketConfig `envPrefix:"RATE_LIMIT_LOGIN_"`
	OAuthCallback BucketConfig `envPrefix:"RATE_LIMIT_OAUTH_"`
	PasswordReset BucketConfig `envPrefix:"RATE_LIMIT_RESET_"`
}

// Sanitize applies per-operation defaults to zero or negative bucket values.
func (r *RateLimitConfig) Sanitize() {
	r.Login.sanitize(10, 10, time.Minute)
	r.OAuthCallback.sanitize(30, 30, time.Minute)
	r.PasswordReset.sanitize(3, 3, time.Hour)
}
