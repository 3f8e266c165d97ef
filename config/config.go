// Package config loads and saves the stayconnected YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/spachava753/stayconnected/mail"
	"github.com/spachava753/stayconnected/people"
)

// FileName is the config file name inside the config directory.
const FileName = "config.yaml"

// MailConfig selects the mail servers. The account and password come from
// the environment, never from this file.
type MailConfig struct {
	IMAPAddress string `yaml:"imap_address"`
	SMTPAddress string `yaml:"smtp_address"`
	Mailbox     string `yaml:"mailbox"`
}

// Config is the top-level application configuration.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// LogLevel is a zap level name: debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// ImportLimit caps how many records one import reads from a source.
	ImportLimit int `yaml:"import_limit"`

	// ImportConcurrency bounds concurrent writes during an import.
	ImportConcurrency int `yaml:"import_concurrency"`

	// Timezone is the IANA zone used when printing plans and reminders.
	// Empty means the local zone.
	Timezone string `yaml:"timezone"`

	Mail MailConfig `yaml:"mail"`
}

// Dir returns the config directory, $XDG_CONFIG_HOME/stayconnected or the
// platform equivalent.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving config directory failed: %w", err)
	}
	return filepath.Join(base, "stayconnected"), nil
}

// DefaultPath returns Dir()/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// DefaultConfig returns an in-memory default configuration. The database
// lives next to the config file.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or invalid values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Database == "" {
		if dir, err := Dir(); err == nil {
			c.Database = filepath.Join(dir, "stayconnected.db")
		} else {
			c.Database = "stayconnected.db"
		}
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil || c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ImportLimit <= 0 {
		c.ImportLimit = people.DefaultImportLimit
	}
	if c.ImportConcurrency <= 0 {
		c.ImportConcurrency = people.DefaultConcurrency
	}
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Mail.IMAPAddress == "" {
		c.Mail.IMAPAddress = mail.DefaultIMAPAddress
	}
	if c.Mail.SMTPAddress == "" {
		c.Mail.SMTPAddress = mail.DefaultSMTPAddress
	}
	if c.Mail.Mailbox == "" {
		c.Mail.Mailbox = mail.DefaultMailbox
	}
}

// Level returns the parsed log level.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Location returns the configured time zone, or time.Local when Timezone
// is empty.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// MailSettings converts the mail section for the mail package.
func (c *Config) MailSettings() mail.Config {
	return mail.Config{
		IMAPAddress: c.Mail.IMAPAddress,
		SMTPAddress: c.Mail.SMTPAddress,
		Mailbox:     c.Mail.Mailbox,
	}
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config: path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s failed: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s failed: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions, creating the
// parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config: path is empty")
	}
	if cfg == nil {
		return errors.New("config: config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s failed: %w", dir, err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encoding failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".stayconnected-config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file failed: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: writing temp file failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config: syncing temp file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: closing temp file failed: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("config: setting permissions failed: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("config: replacing %s failed: %w", path, err)
	}
	return nil
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
