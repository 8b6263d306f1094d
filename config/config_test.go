package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Token:           "token",
		AdminTelegramID: 42,
		DBName:          "receipts.db",
		DBPath:          "./data/",
		SMTPHost:        "smtp.example.com",
		SMTPPort:        "587",
		FromEmail:       "receipts@example.com",
		TemplateDir:     "./templates",
		Brands:          []string{"Apple"},
		SelectTimeout:   time.Minute,
		FormTimeout:     time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validConfig().ValidateConfig())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Token = "" }},
		{"missing admin", func(c *Config) { c.AdminTelegramID = 0 }},
		{"missing db name", func(c *Config) { c.DBName = "" }},
		{"missing smtp host", func(c *Config) { c.SMTPHost = "" }},
		{"missing from email", func(c *Config) { c.FromEmail = "" }},
		{"missing template dir", func(c *Config) { c.TemplateDir = "" }},
		{"no brands", func(c *Config) { c.Brands = nil }},
		{"zero select timeout", func(c *Config) { c.SelectTimeout = 0 }},
		{"zero form timeout", func(c *Config) { c.FormTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.ValidateConfig())
		})
	}
}

func TestIsKnownBrand(t *testing.T) {
	cfg := validConfig()

	assert.True(t, cfg.IsKnownBrand("Apple"))
	assert.True(t, cfg.IsKnownBrand("apple"))
	assert.True(t, cfg.IsKnownBrand("APPLE"))
	assert.False(t, cfg.IsKnownBrand("Nike"))
	assert.False(t, cfg.IsKnownBrand(""))
}

func TestGetSMTPAddress(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "smtp.example.com:587", cfg.GetSMTPAddress())
}
