package text2sql

import (
	"fmt"
	"strings"
)

// Environment names. The environment selects the Athena results bucket when
// one is not configured explicitly.
const (
	EnvPoc  = "poc"
	EnvProd = "prod"
)

// Defaults for the vehicle-data proof-of-concept deployment.
const (
	DefaultDataBucket         = "vehicle-data"
	DefaultPocResultsBucket   = "athena-destination-store-texttosql"
	DefaultProdResultsBucket  = "athena-destination-chatbot"
	DefaultFoundationModel    = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultAgentName          = "SQL-Agent-CDK"
	DefaultActionGroupName    = "QueryAthenaActionGroup"
	DefaultCrawlerSchedule    = "cron(0/1 * * * ? *)"
	DefaultAthenaWorkgroup    = "primary"
	DefaultLambdaMemoryMB     = 1024
	DefaultLambdaTimeoutSec   = 300
	DefaultLambdaCodePath     = "./lambda/action-handler"
	DefaultLogRetentionDays   = 30
	DefaultAgentDescription   = "Agent for performing SQL queries."
	DefaultActionGroupDescSQL = "Actions for getting the database schema and querying the Athena database for sample data or final query."
)

// StackConfig configures a text-to-SQL agent stack.
type StackConfig struct {
	// StackName is the CloudFormation stack name.
	StackName string `json:"stackName" yaml:"stackName"`

	// Description is the stack description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Environment is the deployment environment (poc or prod).
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// DataBucket is the existing S3 bucket holding the source data trees.
	DataBucket string `json:"dataBucket,omitempty" yaml:"dataBucket,omitempty"`

	// AthenaResultsBucket is the existing S3 bucket for Athena query output.
	// Defaults from Environment when empty.
	AthenaResultsBucket string `json:"athenaResultsBucket,omitempty" yaml:"athenaResultsBucket,omitempty"`

	// GlueDatabase is the Glue catalog database name. Defaults to DataBucket.
	GlueDatabase string `json:"glueDatabase,omitempty" yaml:"glueDatabase,omitempty"`

	// CrawlerName names the Glue crawler. Defaults to <stackName>-crawler.
	CrawlerName string `json:"crawlerName,omitempty" yaml:"crawlerName,omitempty"`

	// CrawlerSchedule is a Glue cron schedule expression.
	CrawlerSchedule string `json:"crawlerSchedule,omitempty" yaml:"crawlerSchedule,omitempty"`

	// CrawlerTargets are the s3:// paths the crawler catalogs. When empty the
	// stack falls back to the DynamoDB-export layout under DataBucket.
	CrawlerTargets []string `json:"crawlerTargets,omitempty" yaml:"crawlerTargets,omitempty"`

	// FoundationModel is the Bedrock foundation model ID for the agent.
	FoundationModel string `json:"foundationModel,omitempty" yaml:"foundationModel,omitempty"`

	// AgentName is the Bedrock agent name.
	AgentName string `json:"agentName,omitempty" yaml:"agentName,omitempty"`

	// AgentInstruction is the agent instruction text. When empty the stack
	// generates the standard querying instruction for GlueDatabase.
	AgentInstruction string `json:"agentInstruction,omitempty" yaml:"agentInstruction,omitempty"`

	// ActionGroupName names the agent action group.
	ActionGroupName string `json:"actionGroupName,omitempty" yaml:"actionGroupName,omitempty"`

	// LambdaMemoryMB is the action-group Lambda memory allocation.
	LambdaMemoryMB int `json:"lambdaMemoryMB,omitempty" yaml:"lambdaMemoryMB,omitempty"`

	// LambdaTimeoutSeconds is the action-group Lambda timeout.
	LambdaTimeoutSeconds int `json:"lambdaTimeoutSeconds,omitempty" yaml:"lambdaTimeoutSeconds,omitempty"`

	// LambdaCodePath is the asset directory containing the compiled handler.
	LambdaCodePath string `json:"lambdaCodePath,omitempty" yaml:"lambdaCodePath,omitempty"`

	// AthenaWorkgroup is the Athena workgroup the Lambda may use.
	AthenaWorkgroup string `json:"athenaWorkgroup,omitempty" yaml:"athenaWorkgroup,omitempty"`

	// LogRetentionDays is the CloudWatch retention for the Lambda log group.
	LogRetentionDays int `json:"logRetentionDays,omitempty" yaml:"logRetentionDays,omitempty"`

	// Tags are applied to all stack resources.
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// RemovalPolicy is "retain" or "destroy" (default destroy).
	RemovalPolicy string `json:"removalPolicy,omitempty" yaml:"removalPolicy,omitempty"`
}

// DefaultStackConfig returns a config for the vehicle-data deployment.
func DefaultStackConfig(stackName string) StackConfig {
	cfg := StackConfig{
		StackName: stackName,
		Tags:      make(map[string]string),
	}
	cfg.ApplyDefaults()
	return cfg
}

// ResultsBucketForEnv returns the default Athena output bucket for an
// environment.
func ResultsBucketForEnv(env string) string {
	if env == EnvProd {
		return DefaultProdResultsBucket
	}
	return DefaultPocResultsBucket
}

// ApplyDefaults fills in zero-valued fields.
func (c *StackConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvPoc
	}
	if c.DataBucket == "" {
		c.DataBucket = DefaultDataBucket
	}
	if c.AthenaResultsBucket == "" {
		c.AthenaResultsBucket = ResultsBucketForEnv(c.Environment)
	}
	if c.GlueDatabase == "" {
		c.GlueDatabase = c.DataBucket
	}
	if c.CrawlerName == "" {
		c.CrawlerName = fmt.Sprintf("%s-crawler", c.StackName)
	}
	if c.CrawlerSchedule == "" {
		c.CrawlerSchedule = DefaultCrawlerSchedule
	}
	if c.FoundationModel == "" {
		c.FoundationModel = DefaultFoundationModel
	}
	if c.AgentName == "" {
		c.AgentName = DefaultAgentName
	}
	if c.ActionGroupName == "" {
		c.ActionGroupName = DefaultActionGroupName
	}
	if c.LambdaMemoryMB == 0 {
		c.LambdaMemoryMB = DefaultLambdaMemoryMB
	}
	if c.LambdaTimeoutSeconds == 0 {
		c.LambdaTimeoutSeconds = DefaultLambdaTimeoutSec
	}
	if c.LambdaCodePath == "" {
		c.LambdaCodePath = DefaultLambdaCodePath
	}
	if c.AthenaWorkgroup == "" {
		c.AthenaWorkgroup = DefaultAthenaWorkgroup
	}
	if c.LogRetentionDays == 0 {
		c.LogRetentionDays = DefaultLogRetentionDays
	}
	if c.Tags == nil {
		c.Tags = make(map[string]string)
	}
}

// Validate reports the first configuration problem found.
func (c *StackConfig) Validate() error {
	if c.StackName == "" {
		return fmt.Errorf("stackName is required")
	}
	if c.Environment != EnvPoc && c.Environment != EnvProd {
		return fmt.Errorf("environment must be %q or %q, got %q", EnvPoc, EnvProd, c.Environment)
	}
	if !strings.HasPrefix(c.CrawlerSchedule, "cron(") || !strings.HasSuffix(c.CrawlerSchedule, ")") {
		return fmt.Errorf("crawlerSchedule must be a cron(...) expression, got %q", c.CrawlerSchedule)
	}
	for _, target := range c.CrawlerTargets {
		if !strings.HasPrefix(target, "s3://") {
			return fmt.Errorf("crawler target %q must be an s3:// path", target)
		}
	}
	if c.LambdaMemoryMB < 128 || c.LambdaMemoryMB > 10240 {
		return fmt.Errorf("lambdaMemoryMB must be between 128 and 10240, got %d", c.LambdaMemoryMB)
	}
	if c.LambdaTimeoutSeconds < 1 || c.LambdaTimeoutSeconds > 900 {
		return fmt.Errorf("lambdaTimeoutSeconds must be between 1 and 900, got %d", c.LambdaTimeoutSeconds)
	}
	switch c.RemovalPolicy {
	case "", "retain", "destroy":
	default:
		return fmt.Errorf("removalPolicy must be retain or destroy, got %q", c.RemovalPolicy)
	}
	return nil
}
