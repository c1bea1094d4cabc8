package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Logger   LoggerConfig   `envPrefix:"LOG_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `env:"NAME" envDefault:"auth-service"`
	Env                   string `env:"ENV" envDefault:"development"`
	Host                  string `env:"HOST" envDefault:"0.0.0.0"`
	Port                  string `env:"PORT" envDefault:"5501"`
	Version               string `env:"VERSION" envDefault:"dev"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"30"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `env:"DSN"`
	MaxConns       int32  `env:"MAX_CONNS" envDefault:"10"`
	MinConns       int32  `env:"MIN_CONNS" envDefault:"2"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	ConnMaxIdleSec int32  `env:"CONN_MAX_IDLE_SECONDS" envDefault:"30"`
	ConnMaxLifeSec int32  `env:"CONN_MAX_LIFE_SECONDS" envDefault:"300"`
}

// RedisConfig holds Redis connection values. Addr may list several
// comma-separated addresses for a cluster or sentinel deployment.
type RedisConfig struct {
	Addr        string        `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password    string        `env:"PASSWORD"`
	DB          int           `env:"DB" envDefault:"0"`
	PoolSize    int           `env:"POOL_SIZE" envDefault:"10"`
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" envDefault:"2s"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
}

// AuthConfig defines token, key and credential parameters.
type AuthConfig struct {
	// PrivateKey is an inline PEM; when empty PrivateKeyPath is read instead.
	PrivateKey             string        `env:"PRIVATE_KEY"`
	PrivateKeyPath         string        `env:"PRIVATE_KEY_PATH" envDefault:"certs/private.pem"`
	RefreshTokenSecret     string        `env:"REFRESH_TOKEN_SECRET"`
	Issuer                 string        `env:"ISSUER" envDefault:"auth-service"`
	BcryptCost             int           `env:"BCRYPT_COST" envDefault:"10"`
	JWKSURI                string        `env:"JWKS_URI" envDefault:"http://localhost:5501/.well-known/jwks.json"`
	JWKSFetchTimeout       time.Duration `env:"JWKS_FETCH_TIMEOUT" envDefault:"5s"`
	JWKSRequestsPerMinute  int           `env:"JWKS_REQUESTS_PER_MINUTE" envDefault:"10"`
	CookieDomain           string        `env:"COOKIE_DOMAIN" envDefault:"localhost"`
	CookieSecure           bool          `env:"COOKIE_SECURE" envDefault:"false"`
	LoginMaxAttempts       int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginCooldown          time.Duration `env:"LOGIN_COOLDOWN" envDefault:"15m"`
	LoginThrottleByIP      bool          `env:"LOGIN_THROTTLE_BY_IP" envDefault:"true"`
	AccessTokenCookieName  string        `env:"ACCESS_COOKIE_NAME" envDefault:"accessToken"`
	RefreshTokenCookieName string        `env:"REFRESH_COOKIE_NAME" envDefault:"refreshToken"`
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return nil, fmt.Errorf("invalid AUTH_BCRYPT_COST: %d", cfg.Auth.BcryptCost)
	}
	return &cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}
