package app

import (
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/flight-gateway/pkg/health"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (GATEWAY_ prefix), an env file, flags, or YAML config
// files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (GATEWAY_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Auth        AuthConfig
	Services    ServicesConfig
	DBProbe     health.ProbeConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls access token signing.
type AuthConfig struct {
	Secret        string        `usage:"HMAC secret for access tokens (GATEWAY_AUTH_SECRET or SECRET_KEY)"`
	Algorithm     string        `default:"HS256" usage:"Token signing algorithm: HS256, HS384 or HS512"`
	TokenLifetime time.Duration `default:"30m" usage:"Access token lifetime" flag:"token-lifetime"`
	Issuer        string        `usage:"Token issuer claim; empty disables the check"`
}

// ServicesConfig lists peer base URLs. Every configured peer becomes a
// readiness check.
type ServicesConfig struct {
	Bonus            string `usage:"Bonus service base URL"`
	Flight           string `usage:"Flight service base URL"`
	Ticket           string `usage:"Ticket service base URL"`
	IdentityProvider string `usage:"Identity provider base URL" flag:"identity-provider"`
}

// peers returns the configured peers by name.
func (c ServicesConfig) peers() map[string]string {
	out := make(map[string]string, 4)
	for name, base := range map[string]string{
		"bonus":             c.Bonus,
		"flight":            c.Flight,
		"ticket":            c.Ticket,
		"identity-provider": c.IdentityProvider,
	} {
		if base != "" {
			out[name] = base
		}
	}
	return out
}

// RedisConfig enables the flight lookup cache when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address; empty disables the flight cache"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	TTL      time.Duration `default:"1m" usage:"Flight cache entry lifetime"`
}

// RateLimitConfig controls the per-client rate limit. The budget is kept in
// Redis when Redis is configured and in process memory otherwise.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window; 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig applies the env file, then loads configuration from environment
// variables, YAML config files and flags, and applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

func loadConfig(args []string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GATEWAY",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/gateway/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.applyPlatformDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFile reads GATEWAY_ENV_FILE (default .env) into the process
// environment. Variables already set win. A missing file is not an error.
func loadEnvFile() error {
	path := os.Getenv("GATEWAY_ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "load env file %s", path)
	}
	return nil
}

// applyPlatformDefaults maps unprefixed variables used by hosting platforms
// and earlier deployments (DATABASE_URL, PORT, SECRET_KEY, ALGORITHM,
// TOKEN_LIFETIME in minutes) onto empty configuration values.
func (c *Config) applyPlatformDefaults() error {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv("SECRET_KEY")
	}
	if v := os.Getenv("ALGORITHM"); v != "" && os.Getenv("GATEWAY_AUTH_ALGORITHM") == "" {
		c.Auth.Algorithm = v
	}
	if v := os.Getenv("TOKEN_LIFETIME"); v != "" && os.Getenv("GATEWAY_AUTH_TOKEN_LIFETIME") == "" {
		minutes, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse TOKEN_LIFETIME %q", v)
		}
		c.Auth.TokenLifetime = time.Duration(minutes) * time.Minute
	}
	return nil
}

// Validate reports the first configuration problem that prevents start-up.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set GATEWAY_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.Secret == "" {
		return errors.New("auth secret is required: set GATEWAY_AUTH_SECRET or SECRET_KEY")
	}
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
		c.Auth.Algorithm = strings.ToUpper(c.Auth.Algorithm)
	default:
		return errors.Errorf("unsupported auth algorithm %q", c.Auth.Algorithm)
	}
	if c.Auth.TokenLifetime <= 0 {
		return errors.Errorf("token lifetime must be positive, got %s", c.Auth.TokenLifetime)
	}
	for name, base := range c.Services.peers() {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Errorf("service %s: invalid base URL %q", name, base)
		}
	}
	if c.Redis.Addr != "" && c.Redis.TTL <= 0 {
		return errors.Errorf("redis TTL must be positive, got %s", c.Redis.TTL)
	}
	return nil
}
