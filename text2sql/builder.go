package text2sql

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
)

// StackBuilder provides a fluent interface for building text-to-SQL stacks.
type StackBuilder struct {
	config StackConfig
}

// NewStackBuilder creates a new stack builder.
func NewStackBuilder(stackName string) *StackBuilder {
	return &StackBuilder{
		config: StackConfig{
			StackName: stackName,
			Tags:      make(map[string]string),
		},
	}
}

// WithDescription sets the stack description.
func (b *StackBuilder) WithDescription(description string) *StackBuilder {
	b.config.Description = description
	return b
}

// WithEnvironment sets the deployment environment (poc or prod).
func (b *StackBuilder) WithEnvironment(env string) *StackBuilder {
	b.config.Environment = env
	return b
}

// WithDataBucket points the stack at an existing source-data bucket.
func (b *StackBuilder) WithDataBucket(bucket string) *StackBuilder {
	b.config.DataBucket = bucket
	return b
}

// WithAthenaResultsBucket overrides the Athena output bucket.
func (b *StackBuilder) WithAthenaResultsBucket(bucket string) *StackBuilder {
	b.config.AthenaResultsBucket = bucket
	return b
}

// WithGlueDatabase overrides the Glue database name.
func (b *StackBuilder) WithGlueDatabase(name string) *StackBuilder {
	b.config.GlueDatabase = name
	return b
}

// WithCrawlerSchedule sets the crawler cron expression.
func (b *StackBuilder) WithCrawlerSchedule(cron string) *StackBuilder {
	b.config.CrawlerSchedule = cron
	return b
}

// WithCrawlerTarget adds a single crawler s3:// target path.
func (b *StackBuilder) WithCrawlerTarget(path string) *StackBuilder {
	b.config.CrawlerTargets = append(b.config.CrawlerTargets, path)
	return b
}

// WithCrawlerTargets adds multiple crawler target paths.
func (b *StackBuilder) WithCrawlerTargets(paths ...string) *StackBuilder {
	b.config.CrawlerTargets = append(b.config.CrawlerTargets, paths...)
	return b
}

// WithFoundationModel sets the Bedrock foundation model ID.
func (b *StackBuilder) WithFoundationModel(modelID string) *StackBuilder {
	b.config.FoundationModel = modelID
	return b
}

// WithAgentName sets the Bedrock agent name.
func (b *StackBuilder) WithAgentName(name string) *StackBuilder {
	b.config.AgentName = name
	return b
}

// WithInstruction sets the agent instruction text. When unset the stack
// generates the standard querying instruction for the database.
func (b *StackBuilder) WithInstruction(instruction string) *StackBuilder {
	b.config.AgentInstruction = instruction
	return b
}

// WithLambda sets the action-group Lambda memory and timeout.
func (b *StackBuilder) WithLambda(memoryMB, timeoutSeconds int) *StackBuilder {
	b.config.LambdaMemoryMB = memoryMB
	b.config.LambdaTimeoutSeconds = timeoutSeconds
	return b
}

// WithLambdaCode sets the asset directory containing the compiled handler.
func (b *StackBuilder) WithLambdaCode(path string) *StackBuilder {
	b.config.LambdaCodePath = path
	return b
}

// WithAthenaWorkgroup sets the Athena workgroup.
func (b *StackBuilder) WithAthenaWorkgroup(workgroup string) *StackBuilder {
	b.config.AthenaWorkgroup = workgroup
	return b
}

// WithTags adds tags to all resources.
func (b *StackBuilder) WithTags(tags map[string]string) *StackBuilder {
	for k, v := range tags {
		b.config.Tags[k] = v
	}
	return b
}

// WithTag adds a single tag.
func (b *StackBuilder) WithTag(key, value string) *StackBuilder {
	b.config.Tags[key] = value
	return b
}

// RetainOnDelete sets the removal policy to retain.
func (b *StackBuilder) RetainOnDelete() *StackBuilder {
	b.config.RemovalPolicy = "retain"
	return b
}

// DestroyOnDelete sets the removal policy to destroy.
func (b *StackBuilder) DestroyOnDelete() *StackBuilder {
	b.config.RemovalPolicy = "destroy"
	return b
}

// Config returns the current configuration.
func (b *StackBuilder) Config() StackConfig {
	return b.config
}

// Validate validates the current configuration.
func (b *StackBuilder) Validate() error {
	b.config.ApplyDefaults()
	return b.config.Validate()
}

// Build creates the text-to-SQL stack.
func (b *StackBuilder) Build(scope constructs.Construct) *Text2SQLStack {
	return NewText2SQLStack(scope, b.config.StackName, b.config)
}

// DataSourceBuilder assembles the crawler target paths for a data bucket.
type DataSourceBuilder struct {
	bucket  string
	targets []string
}

// NewDataSourceBuilder creates a builder for the given data bucket.
func NewDataSourceBuilder(bucket string) *DataSourceBuilder {
	return &DataSourceBuilder{bucket: bucket}
}

// WithDynamoDBExport adds the DynamoDB export data path for a top-level
// folder in the bucket.
func (b *DataSourceBuilder) WithDynamoDBExport(folder string) *DataSourceBuilder {
	folder = strings.TrimSuffix(folder, "/")
	b.targets = append(b.targets, fmt.Sprintf("s3://%s/%s/AWSDynamoDB/data/", b.bucket, folder))
	return b
}

// WithPath adds a raw s3:// target path.
func (b *DataSourceBuilder) WithPath(path string) *DataSourceBuilder {
	b.targets = append(b.targets, path)
	return b
}

// Bucket returns the data bucket name.
func (b *DataSourceBuilder) Bucket() string {
	return b.bucket
}

// Targets returns the accumulated crawler target paths.
func (b *DataSourceBuilder) Targets() []string {
	return b.targets
}

// WithDataSource applies a data-source builder: its bucket becomes the data
// bucket and its targets become the crawler targets.
func (b *StackBuilder) WithDataSource(ds *DataSourceBuilder) *StackBuilder {
	b.config.DataBucket = ds.Bucket()
	b.config.CrawlerTargets = append(b.config.CrawlerTargets, ds.Targets()...)
	return b
}

// NewApp creates a new CDK app with common settings.
func NewApp() awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			"@aws-cdk/core:newStyleStackSynthesis": true,
		},
	})
}

// Synth synthesizes the CDK app to CloudFormation templates.
func Synth(app awscdk.App) {
	app.Synth(nil)
}
