package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"
	"go.uber.org/zap/zapcore"

	"github.com/spachava753/stayconnected/mail"
	"github.com/spachava753/stayconnected/people"
)

func TestLoadCreatesDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.LogLevel, "info")
	be.Equal(t, cfg.ImportLimit, people.DefaultImportLimit)
	be.Equal(t, cfg.ImportConcurrency, people.DefaultConcurrency)
	be.Equal(t, cfg.Mail.IMAPAddress, mail.DefaultIMAPAddress)
	be.True(t, strings.HasSuffix(cfg.Database, filepath.Join("stayconnected", "stayconnected.db")))

	info, err := os.Stat(path)
	be.Err(t, err, nil)
	be.Equal(t, info.Mode().Perm(), os.FileMode(0o600))

	again, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, again, cfg)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	data := "database: /tmp/people.db\nlog_level: LOUD\nimport_limit: -4\nmail:\n  mailbox: INBOX\n"
	be.Err(t, os.WriteFile(path, []byte(data), 0o600), nil)

	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.Database, "/tmp/people.db")
	be.Equal(t, cfg.LogLevel, "info")
	be.Equal(t, cfg.ImportLimit, people.DefaultImportLimit)
	be.Equal(t, cfg.Mail.Mailbox, "INBOX")
	be.Equal(t, cfg.Mail.SMTPAddress, mail.DefaultSMTPAddress)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	be.Err(t, os.WriteFile(path, []byte("database: [unterminated\n"), 0o600), nil)

	_, err := Load(path)
	be.Err(t, err, "config: parsing")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := &Config{Database: "x.db", LogLevel: "debug", ImportLimit: 50, ImportConcurrency: 2, Timezone: "America/Chicago"}
	be.Err(t, cfg.Save(path), nil)

	loaded, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, loaded, cfg)
	be.Equal(t, loaded.Level(), zapcore.DebugLevel)

	loc, err := loaded.Location()
	be.Err(t, err, nil)
	be.Equal(t, loc.String(), "America/Chicago")
}

func TestSaveRequiresPathAndConfig(t *testing.T) {
	be.Err(t, Save("", DefaultConfig()), "path is empty")
	be.Err(t, Save(filepath.Join(t.TempDir(), FileName), nil), "config is nil")
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	loc, err := cfg.Location()
	be.Err(t, err, nil)
	be.Equal(t, loc, time.Local)

	cfg.Timezone = "Not/AZone"
	_, err = cfg.Location()
	be.Err(t, err, "unknown timezone")
}
