package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/syssam/silo/dialect"
	"github.com/syssam/silo/dialect/sql/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Database.Dialect)
	assert.Equal(t, []string{"models"}, cfg.Models.Paths)
	assert.Equal(t, 200*time.Millisecond, cfg.Metrics.SlowThreshold)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, schema.CheckOnly, p)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
database:
  dialect: postgres
  dsn: postgres://localhost/silo?sslmode=disable
  max_open_conns: 4
migrate:
  policy: safe
models:
  paths: [models, addons/sale]
log:
  level: debug
  format: json
metrics:
  enabled: true
  slow_threshold: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, cfg.Database.Dialect)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, "migrations", cfg.Migrate.Dir)
	assert.Equal(t, []string{"models", "addons/sale"}, cfg.Models.Paths)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, time.Second, cfg.Metrics.SlowThreshold)
	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, schema.Safe, p)
	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	var buf bytes.Buffer
	cfg.Logger(&buf).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestLoad_Env(t *testing.T) {
	path := writeFile(t, "database:\n  dialect: mysql\n  dsn: root@/silo\n")
	t.Setenv("SILO_DATABASE_DIALECT", "sqlite")
	t.Setenv("SILO_MIGRATE_POLICY", "enforce")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Database.Dialect)
	assert.Equal(t, "root@/silo", cfg.Database.DSN)
	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, schema.Enforce, p)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeFile(t, `
database:
  dialect: oracle
  dsn: ""
migrate:
  policy: yolo
log:
  level: loud
  format: xml
`)
	_, err = Load(path)
	require.Error(t, err)
	for _, msg := range []string{
		`database.dialect: unsupported dialect "oracle"`,
		"database.dsn: must be set",
		"migrate.policy:",
		"log.level:",
		`log.format: unknown format "xml"`,
	} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestConfig_Logger(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "text"}}
	var buf bytes.Buffer
	l := cfg.Logger(&buf)
	l.Info("dropped")
	l.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}
