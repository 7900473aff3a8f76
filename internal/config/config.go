package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from the environment; a .env file in the working directory is
// loaded first when present. Core packages receive the sections they need and
// never read the environment themselves.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Twilio    TwilioConfig
	Generator GeneratorConfig
	Session   SessionConfig
	Dialogue  DialogueConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string

	// TenantCacheTTL bounds how long a tenant profile is served from Redis.
	TenantCacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken string
	// WebhookBaseURL is the public scheme+host Twilio posts to, used to
	// rebuild the signed URL behind proxies. Empty means "use the request host".
	WebhookBaseURL string

	Voice         string
	GatherTimeout int
}

type GeneratorConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type SessionConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// defaultTemperature keeps receptionist replies short and predictable.
const defaultTemperature = 0.3

type DialogueConfig struct {
	FAQShortcuts bool
}

func Load() (Config, error) {
	// Missing .env is the normal case in deployed environments.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = requiredInt(parseErrs, "APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = requiredInt(parseErrs, "REDIS_PORT")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.TenantCacheTTL, parseErrs = optionalDuration(parseErrs, "TENANT_CACHE_TTL")

	parseErrs = c.loadAuth(parseErrs)

	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TWILIO_WEBHOOK_BASE_URL")), "/")
	c.Twilio.Voice = strings.TrimSpace(os.Getenv("TWILIO_VOICE"))
	c.Twilio.GatherTimeout, parseErrs = optionalInt(parseErrs, "TWILIO_GATHER_TIMEOUT")

	c.Generator.APIKey = os.Getenv("GEMINI_API_KEY")
	c.Generator.Model = strings.TrimSpace(os.Getenv("GENERATOR_MODEL"))
	c.Generator.Temperature, parseErrs = optionalFloat(parseErrs, "GENERATOR_TEMPERATURE", defaultTemperature)
	c.Generator.MaxTokens, parseErrs = optionalInt(parseErrs, "GENERATOR_MAX_TOKENS")
	c.Generator.Timeout, parseErrs = optionalDuration(parseErrs, "GENERATOR_TIMEOUT")

	c.Session.IdleTimeout, parseErrs = optionalDuration(parseErrs, "SESSION_IDLE_TIMEOUT")
	c.Session.SweepInterval, parseErrs = optionalDuration(parseErrs, "SESSION_SWEEP_INTERVAL")

	c.Dialogue.FAQShortcuts, parseErrs = optionalBool(parseErrs, "DIALOGUE_FAQ_SHORTCUTS")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadAuth reads only APP_ENV and the JWT settings. Tools that mint tokens
// use it so they do not need database, Redis or generator credentials.
func LoadAuth() (Config, error) {
	_ = godotenv.Load()

	c := Config{}
	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if err := joinErrors(c.loadAuth(nil)); err != nil {
		return Config{}, err
	}
	if err := joinErrors(c.validateAuth(c.validateEnv(nil))); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) loadAuth(parseErrs []error) []error {
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	return parseErrs
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	errs := c.validateEnv(nil)

	if !isValidPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !isValidPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if !isValidPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.TenantCacheTTL <= 0 {
		c.Redis.TenantCacheTTL = 5 * time.Minute
	}

	errs = c.validateAuth(errs)

	if c.IsProduction() && c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
	}
	if c.Twilio.Voice == "" {
		c.Twilio.Voice = "Polly.Joanna-Neural"
	}
	if c.Twilio.GatherTimeout <= 0 {
		c.Twilio.GatherTimeout = 5
	}
	if c.Twilio.GatherTimeout > 60 {
		errs = append(errs, fmt.Errorf("TWILIO_GATHER_TIMEOUT must be at most 60 seconds, got %d", c.Twilio.GatherTimeout))
	}

	if c.Generator.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.5-flash"
	}
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		errs = append(errs, fmt.Errorf("GENERATOR_TEMPERATURE must be within [0, 2], got %v", c.Generator.Temperature))
	}
	if c.Generator.MaxTokens <= 0 {
		c.Generator.MaxTokens = 80
	}
	if c.Generator.Timeout <= 0 {
		c.Generator.Timeout = 4 * time.Second
	}
	// Twilio abandons a webhook after 15s.
	if c.Generator.Timeout >= 15*time.Second {
		errs = append(errs, fmt.Errorf("GENERATOR_TIMEOUT must be below 15s, got %s", c.Generator.Timeout))
	}

	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = 30 * time.Minute
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = time.Minute
	}

	return joinErrors(errs)
}

func (c *Config) validateEnv(errs []error) []error {
	if c.App.Env == "" {
		return append(errs, errors.New("APP_ENV is required"))
	}
	if !isValidEnv(c.App.Env) {
		return append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	return errs
}

func (c *Config) validateAuth(errs []error) []error {
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalFloat(errs []error, key string, def float64) (float64, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, errs
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a number, got %q", key, v))
	}
	return f, errs
}

func optionalBool(errs []error, key string) (bool, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	return b, errs
}

// optionalDuration returns 0 when unset; Validate applies the default.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, v))
	}
	return d, errs
}

func isValidPort(p int) bool {
	return p > 0 && p <= 65535
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
