package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estuary/flow-sub001/internal/catalog"
	"github.com/estuary/flow-sub001/internal/cli/output"
	"github.com/estuary/flow-sub001/internal/config"
	"github.com/estuary/flow-sub001/internal/driver"
	"github.com/estuary/flow-sub001/internal/testutil"
	"github.com/estuary/flow-sub001/internal/validation"
)

const ordersTables = `
endpoints:
  - scope: file:///catalog/flow.yaml#/endpoints/acme~1store
    name: acme/store
    type: s3
    config: {bucket: acme-data, prefix: flow/}
  - scope: file:///catalog/flow.yaml#/endpoints/acme~1pg
    name: acme/pg
    type: postgres
    config: {host: db, port: 5432}
collections:
  - scope: file:///catalog/flow.yaml#/collections/acme~1orders
    name: acme/orders
    schema: file:///catalog/schemas/order.json
    key: [/id]
    store: acme/store
    projections:
      - {field: region, location: /region, partition: true}
materializations:
  - scope: file:///catalog/flow.yaml#/materializations/acme~1orders-pg
    name: acme/orders-pg
    collection: acme/orders
    endpoint: ` + "%ENDPOINT%" + `
schemas:
  - url: file:///catalog/schemas/order.json
    document:
      type: object
      properties:
        id: {type: string}
        region: {type: string}
        qty: {type: integer}
      required: [id, region, qty]
`

// writeTables writes the orders catalog, materialized to endpoint, into dir.
func writeTables(t *testing.T, dir, endpoint string) string {
	t.Helper()
	path := filepath.Join(dir, "tables.yaml")
	content := strings.Replace(ordersTables, "%ENDPOINT%", endpoint, 1)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig(t *testing.T, catalogPath, mode string) *config.Config {
	t.Helper()
	return &config.Config{
		Catalog:     catalogPath,
		BuildDB:     filepath.Join(filepath.Dir(catalogPath), ".catalogc", "build.db"),
		Output:      mode,
		LogFormat:   config.DefaultLogFormat,
		Concurrency: 2,
	}
}

func execute(t *testing.T, ctx context.Context, cfg *config.Config, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	ctx = WithConfig(ctx, cfg)
	ctx = WithLogger(ctx, testutil.NewTestLogger(t))
	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

func staticValidate() *cobra.Command {
	return newValidateCommand(&ValidateOptions{Drivers: &driver.Static{}})
}

func TestValidate_RecordsBuild(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, writeTables(t, t.TempDir(), "acme/pg"), "json")

	out, _, err := execute(t, ctx, cfg, staticValidate())
	require.NoError(t, err)

	var got output.ValidateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got.Diagnostics)
	assert.Equal(t, cfg.Catalog, got.Summary.Catalog)
	assert.Equal(t, 1, got.Summary.Collections)
	assert.Equal(t, 1, got.Summary.Materializations)
	require.NotEmpty(t, got.Summary.BuildID)
	buildID := got.Summary.BuildID

	t.Run("builds", func(t *testing.T) {
		out, _, err := execute(t, ctx, cfg, NewBuildsCommand())
		require.NoError(t, err)

		var builds []output.BuildSummary
		require.NoError(t, json.Unmarshal([]byte(out), &builds))
		require.Len(t, builds, 1)
		assert.Equal(t, buildID, builds[0].BuildID)
	})

	t.Run("errors of latest build", func(t *testing.T) {
		out, _, err := execute(t, ctx, cfg, NewErrorsCommand())
		require.NoError(t, err)

		var got output.ValidateOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, buildID, got.Summary.BuildID)
		assert.Empty(t, got.Diagnostics)
	})

	t.Run("collection", func(t *testing.T) {
		out, _, err := execute(t, ctx, cfg, NewCollectionCommand(), "acme/orders", "--build", buildID)
		require.NoError(t, err)

		var bc catalog.BuiltCollection
		require.NoError(t, json.Unmarshal([]byte(out), &bc))
		assert.Equal(t, "acme/orders", bc.Spec.Name)
		assert.Equal(t, []string{"/id"}, bc.Spec.KeyPtrs)
		assert.Equal(t, []string{"region"}, bc.Spec.PartitionFields)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, _, err := execute(t, ctx, cfg, NewCollectionCommand(), "acme/missing")
		assert.ErrorContains(t, err, "not found")
	})

	t.Run("materializations", func(t *testing.T) {
		out, _, err := execute(t, ctx, cfg, NewMaterializationsCommand(), buildID)
		require.NoError(t, err)

		var bms []catalog.BuiltMaterialization
		require.NoError(t, json.Unmarshal([]byte(out), &bms))
		require.Len(t, bms, 1)
		assert.Equal(t, "acme/orders-pg", bms[0].Name)
		assert.Equal(t, catalog.EndpointPostgres, bms[0].EndpointType)
	})

	t.Run("unknown build", func(t *testing.T) {
		_, _, err := execute(t, ctx, cfg, NewErrorsCommand(), "missing")
		assert.ErrorContains(t, err, "build missing")
	})
}

func TestValidate_Markdown(t *testing.T) {
	cfg := testConfig(t, writeTables(t, t.TempDir(), "acme/pg"), "markdown")

	out, _, err := execute(t, context.Background(), cfg, staticValidate(), "--no-persist")
	require.NoError(t, err)
	assert.Contains(t, out, "# Catalog "+cfg.Catalog)
	assert.Contains(t, out, "No problems found")
	assert.Contains(t, out, "1 collections, 1 materializations: 0 errors, 0 warnings")
	assert.NotContains(t, out, "build ")

	_, statErr := os.Stat(cfg.BuildDB)
	assert.True(t, os.IsNotExist(statErr), "build database should not be created")
}

func TestValidate_Errors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, writeTables(t, t.TempDir(), "acme/nope"), "markdown")

	out, errOut, err := execute(t, ctx, cfg, staticValidate())
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Contains(t, out, "| Severity | Kind | Scope | Message |")
	assert.Contains(t, out, "acme/nope")
	assert.Contains(t, errOut, "errors")

	// The failed build is still recorded.
	out, _, err = execute(t, ctx, cfg, NewErrorsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, string(validation.NoSuchEntity))
}

func TestValidate_MissingCatalog(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), "json")

	_, _, err := execute(t, context.Background(), cfg, staticValidate())
	assert.ErrorContains(t, err, "failed to read catalog tables")
}

func TestReadCommands_NoBuildDatabase(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "tables.yaml"), "json")

	for _, cmd := range []*cobra.Command{NewErrorsCommand(), NewBuildsCommand(), NewMaterializationsCommand()} {
		t.Run(cmd.Name(), func(t *testing.T) {
			_, _, err := execute(t, context.Background(), cfg, cmd)
			assert.ErrorContains(t, err, "no build database")
		})
	}
}

func TestValidate_Watch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, writeTables(t, dir, "acme/pg"), "json")

	runs := make(chan *validation.Result, 16)
	cmd := newValidateCommand(&ValidateOptions{
		Drivers:   &driver.Static{},
		NoPersist: true,
		Debounce:  20 * time.Millisecond,
		afterRun:  func(res *validation.Result) { runs <- res },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, _, err := execute(t, ctx, cfg, cmd, "--watch")
		done <- err
	}()

	next := func() *validation.Result {
		select {
		case res := <-runs:
			return res
		case <-time.After(5 * time.Second):
			require.FailNow(t, "timed out waiting for a validation pass")
			return nil
		}
	}

	first := next()
	assert.False(t, first.HasErrors())

	writeTables(t, dir, "acme/nope")
	// A write may be observed mid-way; wait for the pass which sees the new endpoint.
	for res := next(); !res.HasErrors(); res = next() {
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watch did not stop on cancellation")
	}
}
