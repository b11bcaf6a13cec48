package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config is the API server configuration. Values come from BOOKCLUB_*
// environment variables, flags or a YAML file.
type Config struct {
	Addr        string        `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string        `usage:"PostgreSQL connection URL (BOOKCLUB_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	JWTSecret   string        `usage:"HS256 secret for session tokens" flag:"jwt-secret"`
	JWTIssuer   string        `default:"" usage:"Required iss claim, empty to skip" flag:"jwt-issuer"`
	CouponKey   string        `usage:"Hex-encoded 32-byte coupon encryption key" flag:"coupon-key"`
	CallTimeout time.Duration `default:"5s" usage:"Timeout of a single stored procedure call" flag:"call-timeout"`
	DB          DBConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DBConfig sizes the connection pool. Zero keeps the pgxpool defaults.
type DBConfig struct {
	MaxConns int32 `default:"0" usage:"Maximum pool connections" flag:"db-max-conns"`
	MinConns int32 `default:"0" usage:"Minimum idle pool connections" flag:"db-min-conns"`
}

// RedisConfig enables the city cache when Addr is set.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address, empty disables caching" flag:"redis-addr"`
	Password string        `default:"" usage:"Redis password" flag:"redis-password"`
	DB       int           `default:"0" usage:"Redis database number" flag:"redis-db"`
	CityTTL  time.Duration `default:"24h" usage:"Lifetime of cached zip code lookups" flag:"redis-city-ttl"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
	// TrustForwarded keys clients by X-Forwarded-For. Off unless a proxy
	// in front overwrites the header.
	TrustForwarded bool `default:"false" usage:"Trust X-Forwarded-For for client IPs" flag:"rate-limit-trust-forwarded"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers. Credentials
// only apply to origins listed explicitly.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers) for listed origins" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKCLUB",
		Files:     []string{"config.yaml", "/etc/bookclub/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BOOKCLUB_DATABASE_URL or DATABASE_URL")
	case c.JWTSecret == "":
		return errors.New("jwt secret is required: set BOOKCLUB_JWT_SECRET")
	case c.CouponKey == "":
		return errors.New("coupon key is required: set BOOKCLUB_COUPON_KEY")
	}
	return nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables set by
// hosting platforms onto the prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
