package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Code store drivers
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Mail drivers
const (
	MailLog  = "log"
	MailSMTP = "smtp"
)

const minSecretLength = 32

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBUrl       string `mapstructure:"DB_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	CodeStore   string `mapstructure:"CODE_STORE"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTIssuer string        `mapstructure:"JWT_ISSUER"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	OTPTTL            time.Duration `mapstructure:"OTP_TTL"`
	OTPShortWindow    time.Duration `mapstructure:"OTP_SHORT_WINDOW"`
	OTPShortThreshold int           `mapstructure:"OTP_SHORT_THRESHOLD"`
	OTPDailyThreshold int           `mapstructure:"OTP_DAILY_THRESHOLD"`
	OTPRetention      time.Duration `mapstructure:"OTP_RETENTION"`

	MailDriver   string `mapstructure:"MAIL_DRIVER"`
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

// every key needs a default so AutomaticEnv values reach Unmarshal
func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CODE_STORE", StorePostgres)
	v.SetDefault("AUTO_MIGRATE", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "extension-admin")
	v.SetDefault("TOKEN_TTL", "24h")

	v.SetDefault("OTP_TTL", "10m")
	v.SetDefault("OTP_SHORT_WINDOW", "15m")
	v.SetDefault("OTP_SHORT_THRESHOLD", 5)
	v.SetDefault("OTP_DAILY_THRESHOLD", 20)
	v.SetDefault("OTP_RETENTION", "48h")

	v.SetDefault("MAIL_DRIVER", MailLog)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
}

// LoadConfig reads the optional env file at path, then the process
// environment, which wins. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config unmarshal error: %w", err)
	}

	c.CodeStore = strings.ToLower(strings.TrimSpace(c.CodeStore))
	c.MailDriver = strings.ToLower(strings.TrimSpace(c.MailDriver))

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.TokenTTL < time.Second {
		errs = append(errs, errors.New("TOKEN_TTL must be at least 1s"))
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, errors.New("OTP_TTL must be positive"))
	}
	if c.OTPShortWindow <= 0 {
		errs = append(errs, errors.New("OTP_SHORT_WINDOW must be positive"))
	}
	if c.OTPShortThreshold <= 0 {
		errs = append(errs, errors.New("OTP_SHORT_THRESHOLD must be positive"))
	}
	if c.OTPDailyThreshold <= 0 {
		errs = append(errs, errors.New("OTP_DAILY_THRESHOLD must be positive"))
	}

	switch c.CodeStore {
	case StorePostgres:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when CODE_STORE=redis"))
		}
		if c.OTPRetention < 24*time.Hour {
			errs = append(errs, errors.New("OTP_RETENTION must cover the 24h daily window"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CODE_STORE %q", c.CodeStore))
	}

	// principals always live in Postgres
	if c.DBUrl == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}

	switch c.MailDriver {
	case MailLog:
	case MailSMTP:
		if c.SMTPHost == "" || c.SMTPPort == 0 {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_PORT are required when MAIL_DRIVER=smtp"))
		}
		if c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when MAIL_DRIVER=smtp"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_DRIVER %q", c.MailDriver))
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}
