package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeFile(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "assetid-workers", cfg.App.Name)
	assert.Equal(t, "lenient", cfg.Generation.Policy)
	assert.Equal(t, []string{"location", "space", "subspace", "equipment"}, cfg.Generation.Levels)
	assert.Equal(t, "-", cfg.Generation.Separator)
	assert.Equal(t, "UNK", cfg.Generation.Placeholder)
	assert.Equal(t, "EQP", cfg.Generation.EquipmentPlaceholder)
	assert.Equal(t, 999, cfg.Generation.MaxSuffix)
	assert.Equal(t, 9999, cfg.Generation.MaxSequence)
	assert.Equal(t, 4, cfg.Generation.PrefetchConcurrency)
	assert.Equal(t, 5000, cfg.Generation.AbbreviationTimeout)
	assert.Equal(t, "gpt-3.5-turbo", cfg.APIs.GenAI.Model)
	assert.Equal(t, 10, cfg.APIs.GenAI.MaxTokens)
	assert.InDelta(t, 0.3, cfg.APIs.GenAI.Temperature, 1e-9)
	assert.Equal(t, 30*24*3600, cfg.Database.Redis.AbbreviationTTL)
	assert.Equal(t, "asset-ids", cfg.Database.Elasticsearch.AssetIndex)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoadFromFile_ExpandsEnvAndWorkers(t *testing.T) {
	t.Setenv("TEST_ZEEBE_ADDRESS", "zeebe:26500")
	cfg, err := LoadFromFile(writeFile(t, `
camunda:
  broker_address: ${TEST_ZEEBE_ADDRESS}
database:
  redis:
    address: ${TEST_UNSET_REDIS_ADDRESS}
workers:
  validate-equipment-data:
    enabled: true
    fail_on_non_standard: true
generation:
  policy: strict
  max_lengths:
    equipment: 5
`))
	require.NoError(t, err)

	assert.Equal(t, "zeebe:26500", cfg.Camunda.BrokerAddress)
	assert.Empty(t, cfg.Database.Redis.Address)
	assert.Equal(t, "strict", cfg.Generation.Policy)
	assert.Equal(t, 5, cfg.Generation.MaxLengths["equipment"])

	w := cfg.Workers["validate-equipment-data"]
	assert.True(t, w.Enabled)
	assert.True(t, w.FailOnNonStandard)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 120000, w.Timeout)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	_, err := LoadFromFile(writeFile(t, "generation:\n  policy: sloppy\n"))
	assert.ErrorContains(t, err, "generation.policy")

	_, err = LoadFromFile(writeFile(t, "generation:\n  max_suffix: 1\n"))
	assert.ErrorContains(t, err, "max_suffix")

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateForWorkers(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, ValidateForWorkers(cfg), "camunda.broker_address")

	cfg.Camunda.BrokerAddress = "zeebe:26500"
	cfg.Database.Postgres = PostgresConfig{Host: "db", Database: "assetid", User: "assetid"}
	assert.NoError(t, ValidateForWorkers(cfg))
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "assetid", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=assetid sslmode=disable", p.GetDSN())
}

func TestWorkerSettings(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"search-asset-ids": {Enabled: false, MaxJobsActive: 7, Timeout: 2500},
	}}

	got := GetWorkerConfig(cfg, "search-asset-ids")
	assert.Equal(t, 7, got.MaxJobsActive)
	assert.Equal(t, 2500*time.Millisecond, GetDuration(got.Timeout))
	assert.False(t, IsWorkerEnabled(cfg, "search-asset-ids"))

	missing := GetWorkerConfig(cfg, "manage-code-table")
	assert.True(t, missing.Enabled)
	assert.Zero(t, missing.MaxJobsActive)
	assert.Zero(t, missing.Timeout)
	assert.True(t, IsWorkerEnabled(nil, "generate-asset-ids"))
}
