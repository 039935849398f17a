package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_URL", "postgres://localhost:5432/ext")

	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "development", c.AppEnv)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, StorePostgres, c.CodeStore)
	assert.True(t, c.AutoMigrate)
	assert.Equal(t, "extension-admin", c.JWTIssuer)
	assert.Equal(t, 24*time.Hour, c.TokenTTL)
	assert.Equal(t, 10*time.Minute, c.OTPTTL)
	assert.Equal(t, 15*time.Minute, c.OTPShortWindow)
	assert.Equal(t, 5, c.OTPShortThreshold)
	assert.Equal(t, 20, c.OTPDailyThreshold)
	assert.Equal(t, 48*time.Hour, c.OTPRetention)
	assert.Equal(t, MailLog, c.MailDriver)
	assert.Equal(t, 587, c.SMTPPort)
	assert.False(t, c.IsProduction())
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=" + testSecret + "\n" +
		"DB_URL=postgres://file:5432/ext\n" +
		"OTP_TTL=5m\n" +
		"OTP_SHORT_THRESHOLD=3\n" +
		"CODE_STORE=Redis\n" +
		"REDIS_URL=redis://localhost:6379/0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("OTP_SHORT_THRESHOLD", "7")

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file:5432/ext", c.DBUrl)
	assert.Equal(t, 5*time.Minute, c.OTPTTL)
	assert.Equal(t, 7, c.OTPShortThreshold)
	assert.Equal(t, StoreRedis, c.CodeStore)
}

func TestLoadConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "too-short")
	t.Setenv("DB_URL", "postgres://localhost:5432/ext")

	_, err := LoadConfig("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func validConfig() Config {
	return Config{
		DBUrl:             "postgres://localhost:5432/ext",
		CodeStore:         StorePostgres,
		JWTSecret:         testSecret,
		TokenTTL:          time.Hour,
		OTPTTL:            10 * time.Minute,
		OTPShortWindow:    15 * time.Minute,
		OTPShortThreshold: 5,
		OTPDailyThreshold: 20,
		OTPRetention:      48 * time.Hour,
		MailDriver:        MailLog,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no db", func(c *Config) { c.DBUrl = "" }, "DB_URL"},
		{"zero otp ttl", func(c *Config) { c.OTPTTL = 0 }, "OTP_TTL"},
		{"negative window", func(c *Config) { c.OTPShortWindow = -time.Minute }, "OTP_SHORT_WINDOW"},
		{"zero daily", func(c *Config) { c.OTPDailyThreshold = 0 }, "OTP_DAILY_THRESHOLD"},
		{"sub-second token", func(c *Config) { c.TokenTTL = time.Millisecond }, "TOKEN_TTL"},
		{"unknown store", func(c *Config) { c.CodeStore = "memcached" }, "CODE_STORE"},
		{"redis without url", func(c *Config) { c.CodeStore = StoreRedis }, "REDIS_URL"},
		{"redis short retention", func(c *Config) {
			c.CodeStore = StoreRedis
			c.RedisURL = "redis://localhost:6379"
			c.OTPRetention = time.Hour
		}, "OTP_RETENTION"},
		{"smtp without host", func(c *Config) { c.MailDriver = MailSMTP; c.SMTPFrom = "x@example.org" }, "SMTP_HOST"},
		{"smtp without from", func(c *Config) { c.MailDriver = MailSMTP; c.SMTPHost = "smtp"; c.SMTPPort = 25 }, "SMTP_FROM"},
		{"unknown mail driver", func(c *Config) { c.MailDriver = "pigeon" }, "MAIL_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
