package text2sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStackBuilder(t *testing.T) {
	b := NewStackBuilder("fleet-chat").
		WithDescription("fleet chatbot").
		WithEnvironment(EnvProd).
		WithDataBucket("fleet-telemetry").
		WithGlueDatabase("fleet").
		WithCrawlerSchedule("cron(0 6 * * ? *)").
		WithCrawlerTarget("s3://fleet-telemetry/trips/AWSDynamoDB/data/").
		WithCrawlerTargets(
			"s3://fleet-telemetry/drivers/AWSDynamoDB/data/",
			"s3://fleet-telemetry/vehicles/AWSDynamoDB/data/",
		).
		WithFoundationModel("anthropic.claude-3-haiku-20240307-v1:0").
		WithAgentName("Fleet-SQL-Agent").
		WithInstruction("answer fleet questions with SQL").
		WithLambda(512, 120).
		WithAthenaWorkgroup("fleet").
		WithTag("Team", "data").
		WithTags(map[string]string{"Project": "fleet-chat"}).
		RetainOnDelete()

	require.NoError(t, b.Validate())
	cfg := b.Config()

	assert.Equal(t, "fleet-chat", cfg.StackName)
	assert.Equal(t, "fleet chatbot", cfg.Description)
	assert.Equal(t, EnvProd, cfg.Environment)
	assert.Equal(t, "fleet-telemetry", cfg.DataBucket)
	assert.Equal(t, "fleet", cfg.GlueDatabase)
	assert.Len(t, cfg.CrawlerTargets, 3)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.FoundationModel)
	assert.Equal(t, "Fleet-SQL-Agent", cfg.AgentName)
	assert.Equal(t, "answer fleet questions with SQL", cfg.AgentInstruction)
	assert.Equal(t, 512, cfg.LambdaMemoryMB)
	assert.Equal(t, 120, cfg.LambdaTimeoutSeconds)
	assert.Equal(t, "fleet", cfg.AthenaWorkgroup)
	assert.Equal(t, "data", cfg.Tags["Team"])
	assert.Equal(t, "fleet-chat", cfg.Tags["Project"])
	assert.Equal(t, "retain", cfg.RemovalPolicy)
}

func TestStackBuilderValidateRejectsBadConfig(t *testing.T) {
	b := NewStackBuilder("fleet-chat").WithCrawlerSchedule("hourly")
	assert.Error(t, b.Validate())
}

func TestAgentConstructIDUnique(t *testing.T) {
	a := agentConstructID()
	b := agentConstructID()

	assert.Contains(t, a, "sql-agent-")
	assert.NotEqual(t, a, b)
}

func TestDataSourceBuilder(t *testing.T) {
	ds := NewDataSourceBuilder("vehicle-data").
		WithDynamoDBExport("vehicles/").
		WithDynamoDBExport("maintenance").
		WithPath("s3://vehicle-data/extra/")

	assert.Equal(t, "vehicle-data", ds.Bucket())
	assert.Equal(t, []string{
		"s3://vehicle-data/vehicles/AWSDynamoDB/data/",
		"s3://vehicle-data/maintenance/AWSDynamoDB/data/",
		"s3://vehicle-data/extra/",
	}, ds.Targets())
}

func TestStackBuilderWithDataSource(t *testing.T) {
	ds := NewDataSourceBuilder("fleet-exports").WithDynamoDBExport("trips")
	cfg := NewStackBuilder("fleet-chat").WithDataSource(ds).Config()

	assert.Equal(t, "fleet-exports", cfg.DataBucket)
	assert.Equal(t, []string{"s3://fleet-exports/trips/AWSDynamoDB/data/"}, cfg.CrawlerTargets)
}
