package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModels = `models:
  - name: named
    abstract: true
    fields:
      - {name: name, kind: string, size: 64, required: true}
  - name: res_partner
    inherits: [named]
    fields:
      - {name: email, kind: string, size: 128}
  - name: sale_order
    inherits: [named]
    fields:
      - {name: partner_id, kind: many2one, target: res_partner}
      - {name: state, kind: selection, options: [draft, done]}
      - {name: amount, kind: float}
`

// fixture is a project directory with a config file, a declaration file
// and an SQLite database.
type fixture struct {
	dir    string
	config string
	models string
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		config: filepath.Join(dir, "silo.yaml"),
		models: filepath.Join(dir, "models"),
	}
	require.NoError(t, os.MkdirAll(f.models, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.models, "sale.yaml"), []byte(testModels), 0o644))
	cfg := fmt.Sprintf(`database:
  dialect: sqlite
  dsn: "file:%s?_pragma=foreign_keys(1)"
migrate:
  policy: %s
  dir: %q
models:
  paths: [%q]
log:
  level: error
`, filepath.Join(dir, "silo.db"), policy, filepath.Join(dir, "migrations"), f.models)
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0o644))
	return f
}

// run executes the root command with the fixture config.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRoot_InvalidFormat(t *testing.T) {
	f := newFixture(t, "check_only")
	_, err := f.run(t, "--format", "xml", "models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_MissingConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "models"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestModels(t *testing.T) {
	f := newFixture(t, "check_only")

	out, err := f.run(t, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "- name: res_partner")
	assert.Contains(t, out, "- name: sale_order")
	assert.Contains(t, out, "table: sale_order")
	assert.Contains(t, out, "column: VARCHAR(64)")
	assert.Contains(t, out, "options: [draft, done]")
	assert.NotContains(t, out, "abstract: true")

	out, err = f.run(t, "models", "--abstract")
	require.NoError(t, err)
	assert.Contains(t, out, "- name: named")
	assert.Contains(t, out, "abstract: true")

	out, err = f.run(t, "--format", "json", "models", "sale_order")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   []ModelInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	m := resp.Data[0]
	assert.Equal(t, "sale_order", m.Name)
	assert.Equal(t, []string{"named", "sale_order"}, m.Lineage)
	var names []string
	for _, fi := range m.Fields {
		names = append(names, fi.Name)
	}
	assert.Equal(t, []string{"id", "name", "partner_id", "state", "amount"}, names)
	assert.Equal(t, "res_partner", m.Fields[2].Target)

	_, err = f.run(t, "models", "account_move")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestModels_ModelsFlag(t *testing.T) {
	f := newFixture(t, "check_only")
	other := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("models:\n  - name: res_country\n    fields:\n      - {name: code, kind: string, size: 2}\n"), 0o644))

	out, err := f.run(t, "--models", other, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "- name: res_country")
	assert.NotContains(t, out, "sale_order")
}

func TestMigrate(t *testing.T) {
	f := newFixture(t, "check_only")

	out, err := f.run(t, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 pending changes")
	assert.Contains(t, out, `add table "res_partner"`)
	assert.Contains(t, out, `add table "sale_order"`)

	_, err = f.run(t, "migrate")
	require.Error(t, err, "check_only refuses to create tables")
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "table does not exist")

	out, err = f.run(t, "migrate", "--policy", "enforce")
	require.NoError(t, err)
	assert.Equal(t, "✓ 2 tables reconciled (policy enforce)\n", out)

	out, err = f.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "policy check_only")

	out, err = f.run(t, "migrate", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "✓ database is up to date\n", out)

	out, err = f.run(t, "--format", "json", "migrate", "--policy", "safe")
	require.NoError(t, err)
	var resp struct {
		Status string        `json:"status"`
		Data   MigrateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "safe", resp.Data.Policy)
	assert.Equal(t, []string{"res_partner", "sale_order"}, resp.Data.Tables)

	_, err = f.run(t, "migrate", "--policy", "yolo")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMigrate_Metrics(t *testing.T) {
	f := newFixture(t, "enforce")
	cfg, err := os.ReadFile(f.config)
	require.NoError(t, err)
	cfg = append(cfg, []byte("metrics:\n  enabled: true\n  slow_threshold: 1h\n")...)
	require.NoError(t, os.WriteFile(f.config, cfg, 0o644))

	// Metrics wrap the driver; twice in a row must not collide on
	// collector registration.
	for range 2 {
		out, err := f.run(t, "migrate")
		require.NoError(t, err)
		assert.Contains(t, out, "policy enforce")
	}
}

func TestMigrate_JSONError(t *testing.T) {
	f := newFixture(t, "check_only")
	out, err := f.run(t, "--format", "json", "migrate")
	require.Error(t, err)
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "migration failed")
}

func TestDiff(t *testing.T) {
	f := newFixture(t, "check_only")
	dir := filepath.Join(f.dir, "sql")

	out, err := f.run(t, "--format", "json", "diff", "init", "--dir", dir, "--layout", "goose")
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   DiffResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Files, 1)
	assert.True(t, strings.HasSuffix(resp.Data.Files[0], "_init.sql"), resp.Data.Files[0])
	b, err := os.ReadFile(filepath.Join(dir, resp.Data.Files[0]))
	require.NoError(t, err)
	assert.Contains(t, string(b), "-- +goose Up")
	assert.Contains(t, string(b), "CREATE TABLE `sale_order`")
	assert.FileExists(t, filepath.Join(dir, "atlas.sum"))

	// The default directory comes from migrate.dir.
	out, err = f.run(t, "diff", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "migration written to "+filepath.Join(f.dir, "migrations"))

	_, err = f.run(t, "diff", "init", "--layout", "liquibase")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown layout "liquibase"`)

	_, err = f.run(t, "diff")
	require.Error(t, err)
}

func TestDomain(t *testing.T) {
	f := newFixture(t, "enforce")

	out, err := f.run(t, "domain", "sale_order", `[["state", "=", "draft"], "|", ["name", "ilike", "acme"]]`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "sale_order" WHERE "state" = 'draft' OR LOWER("name") LIKE LOWER('%acme%')`+"\n", out)

	out, err = f.run(t, "domain", "res_partner", "[]")
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "res_partner"`+"\n", out)

	out, err = f.run(t, "--format", "json", "domain", "sale_order", `["!", ["partner_id", "=", null]]`)
	require.NoError(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   DomainResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, `SELECT "id" FROM "sale_order" WHERE NOT ("partner_id" IS NULL)`, resp.Data.SQL)
	assert.NotEmpty(t, resp.Data.Tree)

	tests := []struct {
		name   string
		model  string
		domain string
	}{
		{"malformed json", "sale_order", `[["state"`},
		{"unknown field", "sale_order", `[["color", "=", "red"]]`},
		{"missing connective", "sale_order", `[["state", "=", "draft"], ["name", "=", "x"]]`},
		{"unknown model", "account_move", `[]`},
		{"abstract model", "named", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.run(t, "domain", tt.model, tt.domain)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
		})
	}
}

func TestDomain_Run(t *testing.T) {
	f := newFixture(t, "enforce")
	_, err := f.run(t, "migrate")
	require.NoError(t, err)

	out, err := f.run(t, "domain", "--run", "sale_order", `[["state", "=", "draft"]]`)
	require.NoError(t, err)
	assert.Contains(t, out, "sale_order[]")
}

func TestDomain_Stdin(t *testing.T) {
	f := newFixture(t, "check_only")
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader(`[["email", "=ilike", "%@example.com"]]`))
	cmd.SetArgs([]string{"--config", f.config, "domain", "res_partner", "-"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, `SELECT "id" FROM "res_partner" WHERE LOWER("email") LIKE LOWER('%@example.com')`+"\n", buf.String())
}

func TestGen(t *testing.T) {
	f := newFixture(t, "check_only")
	target := filepath.Join(f.dir, "silomodel")

	out, err := f.run(t, "gen", "--target", target)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ generated 2 packages in "+target)
	for _, p := range []string{"saleorder/saleorder.go", "saleorder/where.go", "respartner/respartner.go", "respartner/where.go"} {
		assert.FileExists(t, filepath.Join(target, p))
	}
	b, err := os.ReadFile(filepath.Join(target, "saleorder", "saleorder.go"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "// Code generated by silo. DO NOT EDIT.")
	assert.Contains(t, string(b), "StateDraft")

	_, err = f.run(t, "gen", "--target", target, "--workers", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	err := fmt.Errorf("wrapped: %w", WrapExitError(ExitCommandError, "boom", assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "boom: "+assert.AnError.Error(), WrapExitError(ExitCommandError, "boom", assert.AnError).Error())
	assert.Equal(t, "plain", NewExitError(ExitFailure, "plain").Error())
}
