package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/driver"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "catalogc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("catalog", "", "")
	flags.String("build-db", "", "")
	flags.StringP("output", "o", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("log-format", "", "")
	flags.Int("concurrency", 0, "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Catalog:     DefaultCatalog,
		BuildDB:     DefaultBuildDB,
		Output:      DefaultOutput,
		LogFormat:   DefaultLogFormat,
		Concurrency: DefaultConcurrency,
	}, cfg)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "build.db")

	path := writeConfig(t, dir, `
catalog: catalog/tables.yaml
build_db: `+dbPath+`
output: markdown
concurrency: 2
drivers:
  postgres:
    url: http://localhost:9000
    timeout: 5s
  sqlite:
    url: http://localhost:9001
    retries: -1
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "catalog", "tables.yaml"), cfg.Catalog)
	assert.Equal(t, dbPath, cfg.BuildDB)
	assert.Equal(t, "markdown", cfg.Output)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, map[string]DriverConfig{
		"postgres": {URL: "http://localhost:9000", Timeout: 5 * time.Second},
		"sqlite":   {URL: "http://localhost:9001", Timeout: DefaultDriverTimeout, Retries: -1},
	}, cfg.Drivers)
}

func TestLoad_DiscoversConfigUpward(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "catalog: tables.yaml\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Chdir(nested)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "catalogc.yaml"), cfg.ConfigFile)
	assert.Equal(t, filepath.Join(dir, "tables.yaml"), cfg.Catalog)
	assert.Equal(t, filepath.Join(dir, DefaultBuildDB), cfg.BuildDB)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := writeConfig(t, dir, "output: markdown\nconcurrency: 2\nverbose: false\n")

	t.Setenv("CATALOGC_OUTPUT", "json")
	t.Setenv("CATALOGC_CONCURRENCY", "3")
	t.Setenv("CATALOGC_VERBOSE", "true")
	t.Setenv("CATALOGC_DRIVERS__WEBHOOK__URL", "http://hooks.local")

	t.Run("env over file", func(t *testing.T) {
		cfg, err := Load(path, testFlags(t))
		require.NoError(t, err)
		assert.Equal(t, "json", cfg.Output)
		assert.Equal(t, 3, cfg.Concurrency)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, DriverConfig{URL: "http://hooks.local", Timeout: DefaultDriverTimeout}, cfg.Drivers["webhook"])
	})

	t.Run("flags over env", func(t *testing.T) {
		cfg, err := Load(path, testFlags(t, "-o", "text", "--concurrency", "4", "--build-db", "rel/build.db"))
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Output)
		assert.Equal(t, 4, cfg.Concurrency)
		// Flagged paths stay relative to the working directory.
		assert.Equal(t, "rel/build.db", cfg.BuildDB)
		assert.Equal(t, filepath.Join(dir, DefaultCatalog), cfg.Catalog)
	})
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "output", content: "output: bogus\n", errMsg: `invalid output "bogus"`},
		{name: "log format", content: "log_format: xml\n", errMsg: `invalid log_format "xml"`},
		{name: "concurrency", content: "concurrency: -1\n", errMsg: "concurrency cannot be negative"},
		{name: "endpoint type", content: "drivers:\n  ftp:\n    url: http://x\n", errMsg: "drivers.ftp: unknown endpoint type"},
		{name: "driver url", content: "drivers:\n  postgres:\n    timeout: 1s\n", errMsg: "drivers.postgres.url is required"},
		{name: "malformed", content: "output: [\n", errMsg: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			path := writeConfig(t, t.TempDir(), tt.content)

			_, err := Load(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_NewDrivers(t *testing.T) {
	cfg := &Config{Drivers: map[string]DriverConfig{
		"sqlite":   {URL: "http://localhost:9001"},
		"postgres": {URL: "http://localhost:9000", Timeout: time.Second},
	}}

	router, err := cfg.NewDrivers(nil)
	require.NoError(t, err)
	assert.Equal(t, []catalog.EndpointType{catalog.EndpointPostgres, catalog.EndpointSqlite}, router.Routes())

	// Endpoint types without a connector have no fallback.
	_, err = router.ValidateMaterialization(context.Background(), catalog.EndpointWebhook, nil, &driver.ValidateRequest{})
	assert.ErrorContains(t, err, `no driver is configured for endpoint type "webhook"`)

	cfg.Drivers["webhook"] = DriverConfig{}
	_, err = cfg.NewDrivers(nil)
	assert.ErrorContains(t, err, "drivers.webhook")
}
