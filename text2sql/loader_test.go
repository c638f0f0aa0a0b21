package text2sql

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStackConfigFromJSON(t *testing.T) {
	data := []byte(`{
		"stackName": "fleet-chat",
		"dataBucket": "fleet-telemetry",
		"crawlerTargets": ["s3://fleet-telemetry/trips/AWSDynamoDB/data/"]
	}`)

	cfg, err := LoadStackConfigFromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, "fleet-chat", cfg.StackName)
	assert.Equal(t, "fleet-telemetry", cfg.DataBucket)
	assert.Equal(t, "fleet-telemetry", cfg.GlueDatabase)
	// Defaults applied on load.
	assert.Equal(t, DefaultAgentName, cfg.AgentName)
}

func TestLoadStackConfigFromJSONInvalid(t *testing.T) {
	_, err := LoadStackConfigFromJSON([]byte(`{"stackName": ""}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stackName")
}

func TestLoadStackConfigFromYAML(t *testing.T) {
	data := []byte(`
stackName: fleet-chat
environment: prod
crawlerSchedule: "cron(0 6 * * ? *)"
`)
	cfg, err := LoadStackConfigFromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "fleet-chat", cfg.StackName)
	assert.Equal(t, DefaultProdResultsBucket, cfg.AthenaResultsBucket)
	assert.Equal(t, "cron(0 6 * * ? *)", cfg.CrawlerSchedule)
}

func TestLoadStackConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"stackName": "a"}`), 0o644))

	cfg, err := LoadStackConfigFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.StackName)

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("stackName: b\n"), 0o644))

	cfg, err = LoadStackConfigFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.StackName)

	_, err = LoadStackConfigFromFile(filepath.Join(dir, "config.toml"))
	require.Error(t, err)
}

func TestConfigExamplesRoundTrip(t *testing.T) {
	cfg, err := LoadStackConfigFromJSON([]byte(JSONConfigExample()))
	require.NoError(t, err)
	assert.Equal(t, "text-2-sql", cfg.StackName)

	cfg, err = LoadStackConfigFromYAML([]byte(YAMLConfigExample()))
	require.NoError(t, err)
	assert.Equal(t, "text-2-sql", cfg.StackName)
}

func TestWriteExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.yaml")
	require.NoError(t, WriteExampleConfig(path))

	cfg, err := LoadStackConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "text-2-sql", cfg.StackName)
}
