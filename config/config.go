package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Users   []User        `yaml:"users"`
	Upload  UploadConfig  `yaml:"upload"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	CORS    CORSConfig    `yaml:"cors"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// RateLimit is requests per minute per client IP
	RateLimit int `yaml:"rate_limit"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

// User is one entry of the fixed account table.
// Password may be plaintext or a bcrypt hash.
type User struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

type UploadConfig struct {
	MaxFileSize     int64         `yaml:"max_file_size"`
	MaxFiles        int           `yaml:"max_files"`
	AllowedTypes    []string      `yaml:"allowed_types"`
	StepPercent     int           `yaml:"step_percent"`
	StepDelay       time.Duration `yaml:"step_delay"`
	ProcessingDelay time.Duration `yaml:"processing_delay"`
}

type StoreConfig struct {
	MaxInvoices int `yaml:"max_invoices"` // 0 = unlimited
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

const (
	DefaultMaxFileSize = 10 << 20
	DefaultMaxFiles    = 10
)

// DefaultUsers is the built-in account table used when the config has none
func DefaultUsers() []User {
	return []User{
		{ID: "1", Email: "admin@example.com", Password: "admin123", Name: "System Administrator", Role: "admin"},
		{ID: "2", Email: "accountant@example.com", Password: "acc123", Name: "Accountant", Role: "accountant"},
		{ID: "3", Email: "uploader@example.com", Password: "upload123", Name: "Uploader", Role: "uploader"},
	}
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.SetDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// SetDefaults fills every zero value with its default
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if len(c.Users) == 0 {
		c.Users = DefaultUsers()
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if c.Upload.MaxFiles == 0 {
		c.Upload.MaxFiles = DefaultMaxFiles
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{"image/*", "application/pdf"}
	}
	if c.Upload.StepPercent == 0 {
		c.Upload.StepPercent = 10
	}
	if c.Upload.StepDelay == 0 {
		c.Upload.StepDelay = 200 * time.Millisecond
	}
	if c.Upload.ProcessingDelay == 0 {
		c.Upload.ProcessingDelay = 2 * time.Second
	}
	if c.Store.MaxInvoices < 0 {
		c.Store.MaxInvoices = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// applyEnv lets a few deployment settings be overridden from the environment
func applyEnv(cfg *Config) error {
	if v := os.Getenv("INVOICEDESK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INVOICEDESK_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("INVOICEDESK_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("INVOICEDESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("INVOICEDESK_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	return nil
}

// FindUser finds a user by email, case-insensitively
func (c *Config) FindUser(email string) *User {
	for i := range c.Users {
		if strings.EqualFold(c.Users[i].Email, email) {
			return &c.Users[i]
		}
	}
	return nil
}
