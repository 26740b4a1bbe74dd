package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/you/walletgate/domain"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port     int    `yaml:"port"`
	GinMode  string `yaml:"gin_mode"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For
	// and the client location header. Empty trusts nobody.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	Issuer    string `yaml:"issuer"`
	AccessTTL string `yaml:"access_ttl"`
}

type OTPPolicyConfig struct {
	Type            string `yaml:"type"`
	Channel         string `yaml:"channel"`
	Enabled         bool   `yaml:"enabled"`
	CodeLength      int    `yaml:"code_length"`
	ExpiryMinutes   int    `yaml:"expiry_minutes"`
	MaxAttempts     int    `yaml:"max_attempts"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
}

type OTPConfig struct {
	TokenTTL   string            `yaml:"token_ttl"`
	LockTTL    string            `yaml:"lock_ttl"`
	Retention  string            `yaml:"retention"`
	BcryptCost int               `yaml:"bcrypt_cost"`
	Policies   []OTPPolicyConfig `yaml:"policies"`
}

type RiskConfig struct {
	HighValueThreshold int64 `yaml:"high_value_threshold"`
	AutoBlock          struct {
		Enabled   bool `yaml:"enabled"`
		Threshold int  `yaml:"threshold"`
	} `yaml:"auto_block"`
}

type DeliveryConfig struct {
	SMSProvider   string `yaml:"sms_provider"`
	EmailProvider string `yaml:"email_provider"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type SNSConfig struct {
	Region string `yaml:"region"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type ConfigFile struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	OTP       OTPConfig       `yaml:"otp"`
	Risk      RiskConfig      `yaml:"risk"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Twilio    TwilioConfig    `yaml:"twilio"`
	SNS       SNSConfig       `yaml:"sns"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Casbin    CasbinConfig    `yaml:"casbin"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type Config struct {
	Port     string `validate:"required,numeric"`
	GinMode  string `validate:"omitempty,oneof=debug release test"`
	Env      string `validate:"oneof=development production test"`
	LogLevel string `validate:"oneof=debug info warn error"`

	TrustedProxies []string `validate:"dive,ip|cidr"`

	DBDriver string `validate:"oneof=postgres sqlite"`
	DSN      string `validate:"required"`

	RedisAddr     string `validate:"required"`
	RedisPassword string
	RedisDB       int `validate:"min=0"`

	JWTSecret string        `validate:"required,min=16"`
	JWTIssuer string        `validate:"required"`
	AccessTTL time.Duration `validate:"gt=0"`

	OTPTokenTTL   time.Duration `validate:"gt=0"`
	OTPLockTTL    time.Duration `validate:"gt=0"`
	OTPRetention  time.Duration `validate:"gt=0"`
	BcryptCost    int           `validate:"omitempty,min=4,max=31"`
	OTPPolicies   []domain.OTPPolicy
	TOTPIssuer    string `validate:"required"`
	HighValue     int64  `validate:"gt=0"`
	AutoBlock     bool
	AutoBlockAt   int    `validate:"min=0,max=100"`
	SMSProvider   string `validate:"oneof=twilio sns log"`
	EmailProvider string `validate:"oneof=smtp log"`

	TwilioSID   string `validate:"required_if=SMSProvider twilio"`
	TwilioToken string `validate:"required_if=SMSProvider twilio"`
	TwilioFrom  string `validate:"required_if=SMSProvider twilio"`
	SNSRegion   string `validate:"required_if=SMSProvider sns"`
	SMTP        SMTPConfig

	CasbinModelPath string  `validate:"required"`
	RateLimitRPS    float64 `validate:"gt=0"`
	RateLimitBurst  int     `validate:"gt=0"`
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envList splits a comma separated variable, falling back to def
func envList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// LoadDotEnv loads .env style files into the process environment. Missing
// files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("could not load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path, applies WALLETGATE_* environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return FromFile(configFile)
}

// FromFile builds a validated Config from an already parsed file
func FromFile(configFile *ConfigFile) (*Config, error) {
	accTTL, err := parseDuration("jwt.access_ttl", env("WALLETGATE_JWT_ACCESS_TTL", configFile.JWT.AccessTTL), 15*time.Minute)
	if err != nil {
		return nil, err
	}
	tokenTTL, err := parseDuration("otp.token_ttl", configFile.OTP.TokenTTL, 10*time.Minute)
	if err != nil {
		return nil, err
	}
	lockTTL, err := parseDuration("otp.lock_ttl", configFile.OTP.LockTTL, 10*time.Second)
	if err != nil {
		return nil, err
	}
	retention, err := parseDuration("otp.retention", configFile.OTP.Retention, 24*time.Hour)
	if err != nil {
		return nil, err
	}

	policies, err := parsePolicies(configFile.OTP.Policies)
	if err != nil {
		return nil, err
	}

	port := configFile.App.Port
	if port == 0 {
		port = 8080
	}

	cfg := &Config{
		Port:     strconv.Itoa(envInt("WALLETGATE_PORT", port)),
		GinMode:  env("GIN_MODE", configFile.App.GinMode),
		Env:      env("WALLETGATE_ENV", orDefault(configFile.App.Env, "development")),
		LogLevel: env("WALLETGATE_LOG_LEVEL", orDefault(configFile.App.LogLevel, "info")),

		TrustedProxies: envList("WALLETGATE_TRUSTED_PROXIES", configFile.App.TrustedProxies),

		DBDriver: env("WALLETGATE_DB_DRIVER", orDefault(configFile.Database.Driver, "postgres")),
		DSN:      env("WALLETGATE_DB_DSN", configFile.Database.DSN),

		RedisAddr:     env("WALLETGATE_REDIS_ADDR", configFile.Redis.Addr),
		RedisPassword: env("WALLETGATE_REDIS_PASSWORD", configFile.Redis.Password),
		RedisDB:       envInt("WALLETGATE_REDIS_DB", configFile.Redis.DB),

		JWTSecret: env("WALLETGATE_JWT_SECRET", configFile.JWT.Secret),
		JWTIssuer: orDefault(configFile.JWT.Issuer, "walletgate"),
		AccessTTL: accTTL,

		OTPTokenTTL:   tokenTTL,
		OTPLockTTL:    lockTTL,
		OTPRetention:  retention,
		BcryptCost:    configFile.OTP.BcryptCost,
		OTPPolicies:   policies,
		TOTPIssuer:    orDefault(configFile.JWT.Issuer, "walletgate"),
		HighValue:     configFile.Risk.HighValueThreshold,
		AutoBlock:     envBool("WALLETGATE_RISK_AUTO_BLOCK", configFile.Risk.AutoBlock.Enabled),
		AutoBlockAt:   configFile.Risk.AutoBlock.Threshold,
		SMSProvider:   env("WALLETGATE_SMS_PROVIDER", orDefault(configFile.Delivery.SMSProvider, "log")),
		EmailProvider: env("WALLETGATE_EMAIL_PROVIDER", orDefault(configFile.Delivery.EmailProvider, "log")),

		TwilioSID:   env("TWILIO_ACCOUNT_SID", configFile.Twilio.AccountSID),
		TwilioToken: env("TWILIO_AUTH_TOKEN", configFile.Twilio.AuthToken),
		TwilioFrom:  env("TWILIO_FROM_NUMBER", configFile.Twilio.FromNumber),
		SNSRegion:   env("AWS_REGION", configFile.SNS.Region),
		SMTP: SMTPConfig{
			Host:     env("WALLETGATE_SMTP_HOST", configFile.SMTP.Host),
			Port:     envInt("WALLETGATE_SMTP_PORT", configFile.SMTP.Port),
			Username: env("WALLETGATE_SMTP_USERNAME", configFile.SMTP.Username),
			Password: env("WALLETGATE_SMTP_PASSWORD", configFile.SMTP.Password),
			From:     env("WALLETGATE_SMTP_FROM", configFile.SMTP.From),
		},

		CasbinModelPath: orDefault(configFile.Casbin.ModelPath, "config/rbac_model.conf"),
		RateLimitRPS:    configFile.RateLimit.RequestsPerSecond,
		RateLimitBurst:  configFile.RateLimit.Burst,
	}
	if cfg.HighValue == 0 {
		cfg.HighValue = 10000
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	if cfg.AutoBlock && cfg.AutoBlockAt == 0 {
		return nil, fmt.Errorf("risk.auto_block.threshold is required when auto block is enabled")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.EmailProvider == "smtp" && (cfg.SMTP.Host == "" || cfg.SMTP.From == "") {
		return nil, fmt.Errorf("invalid configuration: smtp host and from are required")
	}
	// the log provider writes codes in clear text
	if cfg.Env == "production" && (cfg.SMSProvider == "log" || cfg.EmailProvider == "log") {
		return nil, fmt.Errorf("invalid configuration: log delivery providers are not allowed in production")
	}
	return cfg, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func parsePolicies(raw []OTPPolicyConfig) ([]domain.OTPPolicy, error) {
	policies := make([]domain.OTPPolicy, 0, len(raw))
	for i, p := range raw {
		otpType, err := domain.ParseOTPType(p.Type)
		if err != nil {
			return nil, fmt.Errorf("otp.policies[%d]: %w", i, err)
		}
		channel, err := domain.ParseOTPChannel(p.Channel)
		if err != nil {
			return nil, fmt.Errorf("otp.policies[%d]: %w", i, err)
		}
		policy := domain.OTPPolicy{
			Type:            otpType,
			Channel:         channel,
			Enabled:         p.Enabled,
			CodeLength:      p.CodeLength,
			ExpiryMinutes:   p.ExpiryMinutes,
			MaxAttempts:     p.MaxAttempts,
			CooldownMinutes: p.CooldownMinutes,
		}
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("otp.policies[%d]: %w", i, err)
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
