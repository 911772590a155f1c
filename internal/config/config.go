package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "phoneverify.toml"

// Config is the top-level phoneverify configuration.
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Auth         AuthConfig         `toml:"auth"`
	SMS          SMSConfig          `toml:"sms"`
	Verification VerificationConfig `toml:"verification"`
	Redis        RedisConfig        `toml:"redis"`
	RateLimit    RateLimitConfig    `toml:"rate_limit"`
	Fraud        FraudConfig        `toml:"fraud"`
	Logging      LoggingConfig      `toml:"logging"`
	Metrics      MetricsConfig      `toml:"metrics"`
}

type ServerConfig struct {
	Host               string   `toml:"host"`
	Port               int      `toml:"port"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ShutdownTimeout    int      `toml:"shutdown_timeout"` // seconds
	// TLSDomain enables automatic HTTPS via Let's Encrypt for this domain.
	TLSDomain  string `toml:"tls_domain"`
	TLSEmail   string `toml:"tls_email"`
	TLSDataDir string `toml:"tls_data_dir"`
	// IPRateLimit caps requests per minute per client IP on /phone routes.
	// Zero disables it.
	IPRateLimit int `toml:"ip_rate_limit"`
}

type AuthConfig struct {
	// JWTSecret verifies optional HS256 bearer tokens whose sub claim becomes
	// the owner id. Empty means every request is anonymous.
	JWTSecret string `toml:"jwt_secret"`
}

// SMSConfig selects and credentials the SMS gateways.
type SMSConfig struct {
	// Provider is "auto", "test", or a fixed provider name.
	Provider        string                 `toml:"provider"`
	Timeout         int                    `toml:"timeout"` // seconds
	TestDelayMS     int                    `toml:"test_delay_ms"`
	MessageTemplate string                 `toml:"message_template"`
	AutoPrefixes    map[string]string      `toml:"auto_prefixes"`
	Regional        RegionalSMSConfig      `toml:"regional"`
	International   InternationalSMSConfig `toml:"international"`
	SNS             SNSConfig              `toml:"sns"`
}

type RegionalSMSConfig struct {
	BaseURL  string `toml:"base_url"`
	Login    string `toml:"login"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

type InternationalSMSConfig struct {
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	From         string `toml:"from"`
}

type SNSConfig struct {
	Region   string `toml:"region"`
	SenderID string `toml:"sender_id"`
}

type VerificationConfig struct {
	CodeLength    int    `toml:"code_length"`
	Expiry        int    `toml:"expiry"` // seconds
	MaxAttempts   int    `toml:"max_attempts"`
	Store         string `toml:"store"` // "memory" or "redis"
	SweepSchedule string `toml:"sweep_schedule"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type RateLimitConfig struct {
	Backend string `toml:"backend"` // "memory" or "redis"
	Hourly  int    `toml:"hourly"`
	Daily   int    `toml:"daily"`
}

type FraudConfig struct {
	BlockedPrefixes []string `toml:"blocked_prefixes"`
	BlockThreshold  int      `toml:"block_threshold"`
	VerifyThreshold int      `toml:"verify_threshold"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8090,
			CORSAllowedOrigins: []string{"*"},
			ShutdownTimeout:    10,
			TLSDataDir:         "./phoneverify_certs",
			IPRateLimit:        60,
		},
		SMS: SMSConfig{
			Provider:        "auto",
			Timeout:         10,
			TestDelayMS:     300,
			MessageTemplate: "Your verification code: %s",
			AutoPrefixes:    map[string]string{"+998": "regional"},
			Regional: RegionalSMSConfig{
				BaseURL: "https://gw.sms.uz",
			},
		},
		Verification: VerificationConfig{
			CodeLength:    6,
			Expiry:        600,
			MaxAttempts:   3,
			Store:         "memory",
			SweepSchedule: "* * * * *",
		},
		RateLimit: RateLimitConfig{
			Backend: "memory",
			Hourly:  5,
			Daily:   10,
		},
		Fraud: FraudConfig{
			BlockThreshold:  80,
			VerifyThreshold: 40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration with priority: defaults → phoneverify.toml → env vars → CLI flags.
// The flags parameter allows CLI flag overrides to be passed in.
func Load(configPath string, flags map[string]string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	case explicit:
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var (
	validProviders = []string{"auto", "test", "regional", "international", "sns"}
	validBackends  = []string{"memory", "redis"}
	validLevels    = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "text"}
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be non-negative, got %d", c.Server.ShutdownTimeout)
	}
	if c.Server.IPRateLimit < 0 {
		return fmt.Errorf("server.ip_rate_limit must be non-negative, got %d", c.Server.IPRateLimit)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters")
	}

	if !oneOf(c.SMS.Provider, validProviders) {
		return fmt.Errorf("sms.provider must be one of: %s; got %q", strings.Join(validProviders, ", "), c.SMS.Provider)
	}
	if c.SMS.Timeout < 1 {
		return fmt.Errorf("sms.timeout must be at least 1, got %d", c.SMS.Timeout)
	}
	if c.SMS.TestDelayMS < 0 {
		return fmt.Errorf("sms.test_delay_ms must be non-negative, got %d", c.SMS.TestDelayMS)
	}
	if strings.Count(c.SMS.MessageTemplate, "%s") != 1 {
		return fmt.Errorf("sms.message_template must contain exactly one %%s placeholder")
	}
	for prefix, provider := range c.SMS.AutoPrefixes {
		if !strings.HasPrefix(prefix, "+") {
			return fmt.Errorf("sms.auto_prefixes key %q must start with +", prefix)
		}
		if provider == "auto" || !oneOf(provider, validProviders) {
			return fmt.Errorf("sms.auto_prefixes[%q]: unknown provider %q", prefix, provider)
		}
	}
	for _, u := range []struct{ key, val string }{
		{"sms.regional.base_url", c.SMS.Regional.BaseURL},
		{"sms.international.base_url", c.SMS.International.BaseURL},
		{"sms.international.token_url", c.SMS.International.TokenURL},
	} {
		if u.val == "" {
			continue
		}
		if parsed, err := url.Parse(u.val); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.key, u.val)
		}
	}

	if c.Verification.CodeLength < 4 || c.Verification.CodeLength > 10 {
		return fmt.Errorf("verification.code_length must be between 4 and 10, got %d", c.Verification.CodeLength)
	}
	if c.Verification.Expiry < 1 {
		return fmt.Errorf("verification.expiry must be at least 1, got %d", c.Verification.Expiry)
	}
	if c.Verification.MaxAttempts < 1 {
		return fmt.Errorf("verification.max_attempts must be at least 1, got %d", c.Verification.MaxAttempts)
	}
	if !oneOf(c.Verification.Store, validBackends) {
		return fmt.Errorf("verification.store must be one of: memory, redis; got %q", c.Verification.Store)
	}
	if !oneOf(c.RateLimit.Backend, validBackends) {
		return fmt.Errorf("rate_limit.backend must be one of: memory, redis; got %q", c.RateLimit.Backend)
	}
	if (c.Verification.Store == "redis" || c.RateLimit.Backend == "redis") && c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required when a redis backend is selected")
	}
	if c.RateLimit.Hourly < 1 || c.RateLimit.Daily < 1 {
		return fmt.Errorf("rate_limit.hourly and rate_limit.daily must be at least 1")
	}
	if c.RateLimit.Hourly > c.RateLimit.Daily {
		return fmt.Errorf("rate_limit.hourly (%d) cannot exceed rate_limit.daily (%d)", c.RateLimit.Hourly, c.RateLimit.Daily)
	}

	if c.Fraud.VerifyThreshold < 0 || c.Fraud.BlockThreshold > 100 || c.Fraud.VerifyThreshold > c.Fraud.BlockThreshold {
		return fmt.Errorf("fraud thresholds must satisfy 0 <= verify_threshold <= block_threshold <= 100")
	}

	if c.Logging.Level != "" && !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "" && !oneOf(c.Logging.Format, validFormats) {
		return fmt.Errorf("logging.format must be one of: json, text; got %q", c.Logging.Format)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Address returns the host:port string for the server to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GenerateDefault writes a commented default phoneverify.toml to the given path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTOML), 0o644)
}

// ToTOML returns the config serialized as TOML.
func (c *Config) ToTOML() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Auth.JWTSecret = redact(c.Auth.JWTSecret)
	out.SMS.Regional.Password = redact(c.SMS.Regional.Password)
	out.SMS.International.ClientSecret = redact(c.SMS.International.ClientSecret)
	out.Redis.URL = redactURL(c.Redis.URL)
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// envInt reads an integer from the named environment variable.
// Returns an error if the value is set but not a valid integer.
func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not an integer", name, v)
	}
	*dest = n
	return nil
}

func envString(name string, dest *string) {
	if v := os.Getenv(name); v != "" {
		*dest = v
	}
}

func envList(name string, dest *[]string) {
	if v := os.Getenv(name); v != "" {
		*dest = splitList(v)
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func applyEnv(cfg *Config) error {
	envString("PV_SERVER_HOST", &cfg.Server.Host)
	if err := envInt("PV_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	envList("PV_CORS_ORIGINS", &cfg.Server.CORSAllowedOrigins)
	if err := envInt("PV_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	envString("PV_TLS_DOMAIN", &cfg.Server.TLSDomain)
	envString("PV_TLS_EMAIL", &cfg.Server.TLSEmail)
	if err := envInt("PV_SERVER_IP_RATE_LIMIT", &cfg.Server.IPRateLimit); err != nil {
		return err
	}

	envString("PV_AUTH_JWT_SECRET", &cfg.Auth.JWTSecret)

	envString("PV_SMS_PROVIDER", &cfg.SMS.Provider)
	if err := envInt("PV_SMS_TIMEOUT", &cfg.SMS.Timeout); err != nil {
		return err
	}
	if err := envInt("PV_SMS_TEST_DELAY_MS", &cfg.SMS.TestDelayMS); err != nil {
		return err
	}
	envString("PV_SMS_MESSAGE_TEMPLATE", &cfg.SMS.MessageTemplate)
	envString("PV_SMS_REGIONAL_BASE_URL", &cfg.SMS.Regional.BaseURL)
	envString("PV_SMS_REGIONAL_LOGIN", &cfg.SMS.Regional.Login)
	envString("PV_SMS_REGIONAL_PASSWORD", &cfg.SMS.Regional.Password)
	envString("PV_SMS_REGIONAL_FROM", &cfg.SMS.Regional.From)
	envString("PV_SMS_INTERNATIONAL_BASE_URL", &cfg.SMS.International.BaseURL)
	envString("PV_SMS_INTERNATIONAL_TOKEN_URL", &cfg.SMS.International.TokenURL)
	envString("PV_SMS_INTERNATIONAL_CLIENT_ID", &cfg.SMS.International.ClientID)
	envString("PV_SMS_INTERNATIONAL_CLIENT_SECRET", &cfg.SMS.International.ClientSecret)
	envString("PV_SMS_INTERNATIONAL_FROM", &cfg.SMS.International.From)
	envString("PV_SMS_SNS_REGION", &cfg.SMS.SNS.Region)
	envString("PV_SMS_SNS_SENDER_ID", &cfg.SMS.SNS.SenderID)

	if err := envInt("PV_VERIFICATION_CODE_LENGTH", &cfg.Verification.CodeLength); err != nil {
		return err
	}
	if err := envInt("PV_VERIFICATION_EXPIRY", &cfg.Verification.Expiry); err != nil {
		return err
	}
	if err := envInt("PV_VERIFICATION_MAX_ATTEMPTS", &cfg.Verification.MaxAttempts); err != nil {
		return err
	}
	envString("PV_VERIFICATION_STORE", &cfg.Verification.Store)
	envString("PV_VERIFICATION_SWEEP_SCHEDULE", &cfg.Verification.SweepSchedule)

	envString("PV_REDIS_URL", &cfg.Redis.URL)

	envString("PV_RATE_LIMIT_BACKEND", &cfg.RateLimit.Backend)
	if err := envInt("PV_RATE_LIMIT_HOURLY", &cfg.RateLimit.Hourly); err != nil {
		return err
	}
	if err := envInt("PV_RATE_LIMIT_DAILY", &cfg.RateLimit.Daily); err != nil {
		return err
	}

	envList("PV_FRAUD_BLOCKED_PREFIXES", &cfg.Fraud.BlockedPrefixes)
	if err := envInt("PV_FRAUD_BLOCK_THRESHOLD", &cfg.Fraud.BlockThreshold); err != nil {
		return err
	}
	if err := envInt("PV_FRAUD_VERIFY_THRESHOLD", &cfg.Fraud.VerifyThreshold); err != nil {
		return err
	}

	envString("PV_LOG_LEVEL", &cfg.Logging.Level)
	envString("PV_LOG_FORMAT", &cfg.Logging.Format)
	if v := os.Getenv("PV_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
	return nil
}

func applyFlags(cfg *Config, flags map[string]string) {
	if flags == nil {
		return
	}
	if v, ok := flags["port"]; ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := flags["host"]; ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := flags["domain"]; ok && v != "" {
		cfg.Server.TLSDomain = v
	}
	if v, ok := flags["sms-provider"]; ok && v != "" {
		cfg.SMS.Provider = v
	}
}

// validKeys is the complete set of dot-separated scalar config keys.
var validKeys = map[string]bool{
	"server.host": true, "server.port": true, "server.cors_allowed_origins": true,
	"server.shutdown_timeout": true, "server.tls_domain": true, "server.tls_email": true,
	"server.tls_data_dir": true, "server.ip_rate_limit": true,
	"auth.jwt_secret": true,
	"sms.provider": true, "sms.timeout": true, "sms.test_delay_ms": true, "sms.message_template": true,
	"verification.code_length": true, "verification.expiry": true, "verification.max_attempts": true,
	"verification.store": true, "verification.sweep_schedule": true,
	"redis.url": true,
	"rate_limit.backend": true, "rate_limit.hourly": true, "rate_limit.daily": true,
	"fraud.blocked_prefixes": true, "fraud.block_threshold": true, "fraud.verify_threshold": true,
	"logging.level": true, "logging.format": true,
	"metrics.enabled": true,
}

// IsValidKey returns true if the dotted key is a recognized config key.
func IsValidKey(key string) bool {
	return validKeys[key]
}

// ValidKeys returns the recognized keys in sorted order.
func ValidKeys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue returns the value for a dotted config key (e.g. "server.port").
func GetValue(cfg *Config, key string) (any, error) {
	switch key {
	case "server.host":
		return cfg.Server.Host, nil
	case "server.port":
		return cfg.Server.Port, nil
	case "server.cors_allowed_origins":
		return strings.Join(cfg.Server.CORSAllowedOrigins, ","), nil
	case "server.shutdown_timeout":
		return cfg.Server.ShutdownTimeout, nil
	case "server.tls_domain":
		return cfg.Server.TLSDomain, nil
	case "server.tls_email":
		return cfg.Server.TLSEmail, nil
	case "server.tls_data_dir":
		return cfg.Server.TLSDataDir, nil
	case "server.ip_rate_limit":
		return cfg.Server.IPRateLimit, nil
	case "auth.jwt_secret":
		return cfg.Auth.JWTSecret, nil
	case "sms.provider":
		return cfg.SMS.Provider, nil
	case "sms.timeout":
		return cfg.SMS.Timeout, nil
	case "sms.test_delay_ms":
		return cfg.SMS.TestDelayMS, nil
	case "sms.message_template":
		return cfg.SMS.MessageTemplate, nil
	case "verification.code_length":
		return cfg.Verification.CodeLength, nil
	case "verification.expiry":
		return cfg.Verification.Expiry, nil
	case "verification.max_attempts":
		return cfg.Verification.MaxAttempts, nil
	case "verification.store":
		return cfg.Verification.Store, nil
	case "verification.sweep_schedule":
		return cfg.Verification.SweepSchedule, nil
	case "redis.url":
		return cfg.Redis.URL, nil
	case "rate_limit.backend":
		return cfg.RateLimit.Backend, nil
	case "rate_limit.hourly":
		return cfg.RateLimit.Hourly, nil
	case "rate_limit.daily":
		return cfg.RateLimit.Daily, nil
	case "fraud.blocked_prefixes":
		return strings.Join(cfg.Fraud.BlockedPrefixes, ","), nil
	case "fraud.block_threshold":
		return cfg.Fraud.BlockThreshold, nil
	case "fraud.verify_threshold":
		return cfg.Fraud.VerifyThreshold, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "metrics.enabled":
		return cfg.Metrics.Enabled, nil
	default:
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
}

// SetValue reads the existing TOML file, updates a single key, and writes it back.
// Creates the file with just the key if it doesn't exist.
func SetValue(configPath, key, value string) error {
	if !IsValidKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var data map[string]any
	if raw, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	if data == nil {
		data = make(map[string]any)
	}

	parts := strings.SplitN(key, ".", 2)
	section, field := parts[0], parts[1]

	sectionMap, ok := data[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		data[section] = sectionMap
	}
	sectionMap[field] = coerceValue(key, value)

	out, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(configPath, out, 0o644)
}

// coerceValue converts a string value to the appropriate Go type for TOML serialization.
func coerceValue(key, value string) any {
	switch key {
	case "metrics.enabled":
		return value == "true" || value == "1"
	case "server.cors_allowed_origins", "fraud.blocked_prefixes":
		return splitList(value)
	case "server.port", "server.shutdown_timeout", "server.ip_rate_limit",
		"sms.timeout", "sms.test_delay_ms",
		"verification.code_length", "verification.expiry", "verification.max_attempts",
		"rate_limit.hourly", "rate_limit.daily",
		"fraud.block_threshold", "fraud.verify_threshold":
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return value
}

const defaultTOML = `# phoneverify configuration
# Values here are overridden by PV_* environment variables and CLI flags.

[server]
host = "0.0.0.0"
port = 8090
cors_allowed_origins = ["*"]
shutdown_timeout = 10
# Set to a public domain to serve HTTPS with an automatic certificate.
# tls_domain = "verify.example.com"
# tls_email = "ops@example.com"
ip_rate_limit = 60

[auth]
# HS256 secret for optional bearer tokens; the sub claim is the owner id.
# jwt_secret = ""

[sms]
# auto | test | regional | international | sns
provider = "auto"
timeout = 10
test_delay_ms = 300
message_template = "Your verification code: %s"

[sms.auto_prefixes]
"+998" = "regional"

[sms.regional]
base_url = "https://gw.sms.uz"
# login = ""
# password = ""
# from = ""

[sms.international]
# base_url = ""
# token_url = ""
# client_id = ""
# client_secret = ""
# from = ""

[sms.sns]
# region = "us-east-1"
# sender_id = ""

[verification]
code_length = 6
expiry = 600
max_attempts = 3
# memory | redis
store = "memory"
sweep_schedule = "* * * * *"

[redis]
# url = "redis://localhost:6379/0"

[rate_limit]
# memory | redis
backend = "memory"
hourly = 5
daily = 10

[fraud]
blocked_prefixes = []
block_threshold = 80
verify_threshold = 40

[logging]
level = "info"
format = "json"

[metrics]
enabled = true
`
