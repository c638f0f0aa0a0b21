package text2sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := StackConfig{StackName: "text-2-sql"}
	cfg.ApplyDefaults()

	assert.Equal(t, EnvPoc, cfg.Environment)
	assert.Equal(t, "vehicle-data", cfg.DataBucket)
	assert.Equal(t, "athena-destination-store-texttosql", cfg.AthenaResultsBucket)
	assert.Equal(t, "vehicle-data", cfg.GlueDatabase)
	assert.Equal(t, "text-2-sql-crawler", cfg.CrawlerName)
	assert.Equal(t, "cron(0/1 * * * ? *)", cfg.CrawlerSchedule)
	assert.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", cfg.FoundationModel)
	assert.Equal(t, "SQL-Agent-CDK", cfg.AgentName)
	assert.Equal(t, "QueryAthenaActionGroup", cfg.ActionGroupName)
	assert.Equal(t, 1024, cfg.LambdaMemoryMB)
	assert.Equal(t, 300, cfg.LambdaTimeoutSeconds)
	assert.Equal(t, "primary", cfg.AthenaWorkgroup)
	assert.NotNil(t, cfg.Tags)
}

func TestApplyDefaultsProdResultsBucket(t *testing.T) {
	cfg := StackConfig{StackName: "text-2-sql", Environment: EnvProd}
	cfg.ApplyDefaults()

	assert.Equal(t, "athena-destination-chatbot", cfg.AthenaResultsBucket)
}

func TestApplyDefaultsDatabaseFollowsBucket(t *testing.T) {
	cfg := StackConfig{StackName: "s", DataBucket: "fleet-telemetry"}
	cfg.ApplyDefaults()

	assert.Equal(t, "fleet-telemetry", cfg.GlueDatabase)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*StackConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *StackConfig) {},
		},
		{
			name:    "missing stack name",
			mutate:  func(c *StackConfig) { c.StackName = "" },
			wantErr: "stackName is required",
		},
		{
			name:    "bad environment",
			mutate:  func(c *StackConfig) { c.Environment = "staging" },
			wantErr: "environment",
		},
		{
			name:    "bad schedule",
			mutate:  func(c *StackConfig) { c.CrawlerSchedule = "every minute" },
			wantErr: "crawlerSchedule",
		},
		{
			name:    "non-s3 crawler target",
			mutate:  func(c *StackConfig) { c.CrawlerTargets = []string{"/local/data"} },
			wantErr: "s3://",
		},
		{
			name:    "memory too small",
			mutate:  func(c *StackConfig) { c.LambdaMemoryMB = 64 },
			wantErr: "lambdaMemoryMB",
		},
		{
			name:    "timeout too large",
			mutate:  func(c *StackConfig) { c.LambdaTimeoutSeconds = 1000 },
			wantErr: "lambdaTimeoutSeconds",
		},
		{
			name:    "bad removal policy",
			mutate:  func(c *StackConfig) { c.RemovalPolicy = "keep" },
			wantErr: "removalPolicy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStackConfig("text-2-sql")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResultsBucketForEnv(t *testing.T) {
	assert.Equal(t, DefaultPocResultsBucket, ResultsBucketForEnv(EnvPoc))
	assert.Equal(t, DefaultProdResultsBucket, ResultsBucketForEnv(EnvProd))
	assert.Equal(t, DefaultPocResultsBucket, ResultsBucketForEnv(""))
}
