package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains application configuration parameters
type Config struct {
	// Server configuration
	Port         string        `json:"port"`
	Host         string        `json:"host"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`

	// Telegram Bot configuration
	Token           string `json:"token"`
	AdminTelegramID int64  `json:"admin_telegram_id"`

	// Channels for administrative notices
	NotificationChannelID int64 `json:"notification_channel_id"`
	VerificationChannelID int64 `json:"verification_channel_id"`

	// Database configuration
	DBName          string        `json:"db_name"`
	DBPath          string        `json:"db_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`

	// SMTP configuration
	SMTPHost     string `json:"smtp_host"`
	SMTPPort     string `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	FromEmail    string `json:"from_email"`

	// Receipt workflow configuration
	TemplateDir   string        `json:"template_dir"`
	Brands        []string      `json:"brands"`
	SelectTimeout time.Duration `json:"select_timeout"`
	FormTimeout   time.Duration `json:"form_timeout"`

	// Grant expiry enforcement (off by default, expiry is informational)
	EnforceGrantExpiry bool          `json:"enforce_grant_expiry"`
	ExpirySweepPeriod  time.Duration `json:"expiry_sweep_period"`

	// App configuration
	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// NewConfig creates and returns a new configuration instance
func NewConfig() (*Config, error) {
	cfg := &Config{
		// Server defaults
		Port:         ":8081",
		Host:         "0.0.0.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		// Database defaults
		DBName:          "receipts.db",
		DBPath:          "./data/",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,

		// SMTP defaults
		SMTPHost: "smtp.gmail.com",
		SMTPPort: "587",

		// Workflow defaults
		TemplateDir:   "./templates",
		Brands:        []string{"Apple"},
		SelectTimeout: 2 * time.Minute,
		FormTimeout:   10 * time.Minute,

		// Expiry defaults
		EnforceGrantExpiry: false,
		ExpirySweepPeriod:  time.Hour,

		// App defaults
		Environment: "development",
		LogLevel:    "info",
	}

	// Override with environment variables if set
	if port := os.Getenv("PORT"); port != "" {
		if port[0] != ':' {
			cfg.Port = ":" + port
		} else {
			cfg.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		cfg.Host = host
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Token = token
	}

	if adminID := os.Getenv("ADMIN_TELEGRAM_ID"); adminID != "" {
		if id, err := strconv.ParseInt(adminID, 10, 64); err == nil {
			cfg.AdminTelegramID = id
		}
	}

	if channelID := os.Getenv("NOTIFICATION_CHANNEL_ID"); channelID != "" {
		if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
			cfg.NotificationChannelID = id
		}
	}

	if channelID := os.Getenv("VERIFICATION_CHANNEL_ID"); channelID != "" {
		if id, err := strconv.ParseInt(channelID, 10, 64); err == nil {
			cfg.VerificationChannelID = id
		}
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.DBName = dbName
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	if smtpHost := os.Getenv("SMTP_HOST"); smtpHost != "" {
		cfg.SMTPHost = smtpHost
	}

	if smtpPort := os.Getenv("SMTP_PORT"); smtpPort != "" {
		cfg.SMTPPort = smtpPort
	}

	if smtpUsername := os.Getenv("SMTP_USERNAME"); smtpUsername != "" {
		cfg.SMTPUsername = smtpUsername
	}

	if smtpPassword := os.Getenv("SMTP_PASSWORD"); smtpPassword != "" {
		cfg.SMTPPassword = smtpPassword
	}

	if fromEmail := os.Getenv("FROM_EMAIL"); fromEmail != "" {
		cfg.FromEmail = fromEmail
	}

	if templateDir := os.Getenv("TEMPLATE_DIR"); templateDir != "" {
		cfg.TemplateDir = templateDir
	}

	if brands := os.Getenv("BRANDS"); brands != "" {
		parts := strings.Split(brands, ",")
		cfg.Brands = cfg.Brands[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Brands = append(cfg.Brands, p)
			}
		}
	}

	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Environment = env
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if enforce := os.Getenv("ENFORCE_GRANT_EXPIRY"); enforce != "" {
		if v, err := strconv.ParseBool(enforce); err == nil {
			cfg.EnforceGrantExpiry = v
		}
	}

	// Parse numeric environment variables
	if maxOpenConns := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenConns != "" {
		if conns, err := strconv.Atoi(maxOpenConns); err == nil {
			cfg.MaxOpenConns = conns
		}
	}

	if maxIdleConns := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleConns != "" {
		if conns, err := strconv.Atoi(maxIdleConns); err == nil {
			cfg.MaxIdleConns = conns
		}
	}

	// Parse duration environment variables
	if readTimeout := os.Getenv("READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			cfg.ReadTimeout = timeout
		}
	}

	if writeTimeout := os.Getenv("WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			cfg.WriteTimeout = timeout
		}
	}

	if idleTimeout := os.Getenv("IDLE_TIMEOUT"); idleTimeout != "" {
		if timeout, err := time.ParseDuration(idleTimeout); err == nil {
			cfg.IdleTimeout = timeout
		}
	}

	if connMaxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); connMaxLifetime != "" {
		if lifetime, err := time.ParseDuration(connMaxLifetime); err == nil {
			cfg.ConnMaxLifetime = lifetime
		}
	}

	if selectTimeout := os.Getenv("SELECT_TIMEOUT"); selectTimeout != "" {
		if timeout, err := time.ParseDuration(selectTimeout); err == nil {
			cfg.SelectTimeout = timeout
		}
	}

	if formTimeout := os.Getenv("FORM_TIMEOUT"); formTimeout != "" {
		if timeout, err := time.ParseDuration(formTimeout); err == nil {
			cfg.FormTimeout = timeout
		}
	}

	if sweepPeriod := os.Getenv("EXPIRY_SWEEP_PERIOD"); sweepPeriod != "" {
		if period, err := time.ParseDuration(sweepPeriod); err == nil {
			cfg.ExpirySweepPeriod = period
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabasePath returns the full path to the database file
func (c *Config) GetDatabasePath() string {
	return c.DBPath + c.DBName
}

// GetServerAddress returns the server address
func (c *Config) GetServerAddress() string {
	return c.Host + c.Port
}

// GetSMTPAddress returns the SMTP server address
func (c *Config) GetSMTPAddress() string {
	return c.SMTPHost + ":" + c.SMTPPort
}

// ValidateConfig validates the configuration
func (c *Config) ValidateConfig() error {
	if c.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.AdminTelegramID == 0 {
		return fmt.Errorf("admin telegram id is required")
	}

	if c.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.SMTPHost == "" || c.SMTPPort == "" {
		return fmt.Errorf("smtp host and port are required")
	}

	if c.FromEmail == "" {
		return fmt.Errorf("from email is required")
	}

	if c.TemplateDir == "" {
		return fmt.Errorf("template directory is required")
	}

	if len(c.Brands) == 0 {
		return fmt.Errorf("at least one brand is required")
	}

	if c.SelectTimeout <= 0 || c.FormTimeout <= 0 {
		return fmt.Errorf("selection and form timeouts must be positive")
	}

	return nil
}

// IsKnownBrand checks if a brand is in the configured option set
func (c *Config) IsKnownBrand(brand string) bool {
	for _, b := range c.Brands {
		if strings.EqualFold(b, brand) {
			return true
		}
	}
	return false
}
