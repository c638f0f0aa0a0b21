package text2sql

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsbedrock"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsglue"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/google/uuid"

	"github.com/querybridge/text2sql-aws-cdk/internal/instruction"
)

// Text2SQLStack provisions the text-to-SQL chatbot backend: a Glue database
// and crawler over the data bucket, the action-group Lambda with its Athena
// and Glue permissions, and a Bedrock agent wired to the Lambda through an
// OpenAPI action group.
type Text2SQLStack struct {
	awscdk.Stack

	// Config is the stack configuration.
	Config StackConfig

	// SchemaBucket is the imported source-data bucket.
	SchemaBucket awss3.IBucket

	// ResultsBucket is the imported Athena output bucket.
	ResultsBucket awss3.IBucket

	// GlueRole is the crawler service role.
	GlueRole awsiam.Role

	// Database is the Glue catalog database.
	Database awsglue.CfnDatabase

	// Crawler is the Glue crawler over the data bucket.
	Crawler awsglue.CfnCrawler

	// ActionFunction is the action-group Lambda.
	ActionFunction awslambda.Function

	// LogGroup is the Lambda log group.
	LogGroup awslogs.LogGroup

	// AgentRole is the Bedrock agent resource role.
	AgentRole awsiam.Role

	// Agent is the Bedrock agent.
	Agent awsbedrock.CfnAgent
}

// NewText2SQLStack creates the text-to-SQL CDK stack.
func NewText2SQLStack(scope constructs.Construct, id string, config StackConfig) *Text2SQLStack {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid stack configuration: %v", err))
	}

	stack := awscdk.NewStack(scope, jsii.String(id), &awscdk.StackProps{
		StackName:   jsii.String(config.StackName),
		Description: jsii.String(config.Description),
		Tags:        convertTags(config.Tags),
	})

	s := &Text2SQLStack{
		Stack:  stack,
		Config: config,
	}

	s.importBuckets()
	s.createGlueRole()
	s.createDatabase()
	s.createCrawler()
	s.createActionFunction()
	s.attachActionPolicies()
	s.createAgent()
	s.addOutputs()

	return s
}

// importBuckets imports the pre-created data and Athena result buckets.
// Both must exist before deployment; the stack never owns the data.
func (s *Text2SQLStack) importBuckets() {
	s.SchemaBucket = awss3.Bucket_FromBucketArn(s.Stack, jsii.String("SchemaBucket"),
		jsii.String(fmt.Sprintf("arn:aws:s3:::%s", s.Config.DataBucket)))
	s.ResultsBucket = awss3.Bucket_FromBucketArn(s.Stack, jsii.String("AthenaOutputBucket"),
		jsii.String(fmt.Sprintf("arn:aws:s3:::%s", s.Config.AthenaResultsBucket)))
}

// createGlueRole creates the crawler service role.
func (s *Text2SQLStack) createGlueRole() {
	s.GlueRole = awsiam.NewRole(s.Stack, jsii.String("GlueRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("glue.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("service-role/AWSGlueServiceRole")),
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonS3FullAccess")),
		},
	})
}

// createDatabase creates the Glue catalog database.
func (s *Text2SQLStack) createDatabase() {
	s.Database = awsglue.NewCfnDatabase(s.Stack, jsii.String("GlueDatabase"), &awsglue.CfnDatabaseProps{
		CatalogId: s.Account(),
		DatabaseInput: &awsglue.CfnDatabase_DatabaseInputProperty{
			Name: jsii.String(s.Config.GlueDatabase),
		},
	})
}

// createCrawler creates the scheduled Glue crawler over the data bucket.
func (s *Text2SQLStack) createCrawler() {
	targets := s.Config.CrawlerTargets
	if len(targets) == 0 {
		// No discovered folders; crawl the whole bucket.
		targets = []string{fmt.Sprintf("s3://%s/", s.Config.DataBucket)}
	}

	s3Targets := make([]*awsglue.CfnCrawler_S3TargetProperty, len(targets))
	for i, path := range targets {
		s3Targets[i] = &awsglue.CfnCrawler_S3TargetProperty{Path: jsii.String(path)}
	}

	s.Crawler = awsglue.NewCfnCrawler(s.Stack, jsii.String("ChatbotCrawler"), &awsglue.CfnCrawlerProps{
		Name:         jsii.String(s.Config.CrawlerName),
		Role:         s.GlueRole.RoleArn(),
		DatabaseName: jsii.String(s.Config.GlueDatabase),
		Schedule: &awsglue.CfnCrawler_ScheduleProperty{
			ScheduleExpression: jsii.String(s.Config.CrawlerSchedule),
		},
		Targets: &awsglue.CfnCrawler_TargetsProperty{
			S3Targets: &s3Targets,
		},
	})
}

// createActionFunction creates the action-group Lambda and its log group.
func (s *Text2SQLStack) createActionFunction() {
	s.LogGroup = awslogs.NewLogGroup(s.Stack, jsii.String("ActionGroupLogs"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String(fmt.Sprintf("/aws/lambda/%s-action-group", s.Config.StackName)),
		Retention:     retentionFor(s.Config.LogRetentionDays),
		RemovalPolicy: s.removalPolicy(),
	})

	s.ActionFunction = awslambda.NewFunction(s.Stack, jsii.String("ActionGroupFunction"), &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(s.Config.LambdaCodePath), nil),
		MemorySize:   jsii.Number(float64(s.Config.LambdaMemoryMB)),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(float64(s.Config.LambdaTimeoutSeconds))),
		LogGroup:     s.LogGroup,
		Environment: &map[string]*string{
			"outputLocation":     jsii.String(fmt.Sprintf("s3://%s/", s.Config.AthenaResultsBucket)),
			"glue_database_name": jsii.String(s.Config.GlueDatabase),
			"region":             s.Region(),
			"bucket_name":        s.SchemaBucket.BucketName(),
			"crawler_name":       jsii.String(s.Config.CrawlerName),
			"athena_workgroup":   jsii.String(s.Config.AthenaWorkgroup),
		},
	})
}

// attachActionPolicies grants the Lambda its Glue, S3, and Athena access.
func (s *Text2SQLStack) attachActionPolicies() {
	role := s.ActionFunction.Role()

	role.AddToPrincipalPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"glue:StartCrawler", "glue:GetCrawler", "glue:StartJobRun",
			"glue:GetDatabase", "glue:GetDatabases", "glue:GetTable", "glue:GetTables",
			"glue:BatchGetPartition", "glue:GetPartition", "glue:GetPartitions",
			"glue:BatchCreatePartition", "glue:CreatePartition", "glue:DeletePartition",
			"glue:UpdatePartition", "glue:BatchDeletePartition",
		),
		Resources: jsii.Strings(
			fmt.Sprintf("arn:aws:glue:%s:%s:catalog", *s.Region(), *s.Account()),
			fmt.Sprintf("arn:aws:glue:%s:%s:database/%s", *s.Region(), *s.Account(), s.Config.GlueDatabase),
			fmt.Sprintf("arn:aws:glue:%s:%s:table/%s/*", *s.Region(), *s.Account(), s.Config.GlueDatabase),
			fmt.Sprintf("arn:aws:glue:%s:%s:crawler/%s", *s.Region(), *s.Account(), s.Config.CrawlerName),
		),
	}))

	role.AddToPrincipalPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"s3:PutObject", "s3:GetObject", "s3:ListBucket",
			"s3:CreateBucket", "s3:GetBucketLocation",
		),
		Resources: &[]*string{
			s.SchemaBucket.BucketArn(),
			jsii.String(fmt.Sprintf("%s/*", *s.SchemaBucket.BucketArn())),
			s.ResultsBucket.BucketArn(),
			jsii.String(fmt.Sprintf("%s/*", *s.ResultsBucket.BucketArn())),
		},
	}))

	role.AddToPrincipalPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"athena:StartQueryExecution", "athena:GetQueryExecution",
			"athena:GetQueryResults", "athena:StopQueryExecution", "athena:GetWorkGroup",
		),
		Resources: jsii.Strings(
			fmt.Sprintf("arn:aws:athena:%s:%s:workgroup/%s", *s.Region(), *s.Account(), s.Config.AthenaWorkgroup),
		),
	}))
}

// createAgent creates the Bedrock agent, its resource role, and the action
// group bound to the Lambda.
func (s *Text2SQLStack) createAgent() {
	s.AgentRole = awsiam.NewRole(s.Stack, jsii.String("AgentRole"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("bedrock.amazonaws.com"), nil),
	})

	s.AgentRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:  awsiam.Effect_ALLOW,
		Actions: jsii.Strings("s3:GetObject", "s3:ListBucket"),
		Resources: &[]*string{
			s.SchemaBucket.BucketArn(),
			jsii.String(fmt.Sprintf("%s/*", *s.SchemaBucket.BucketArn())),
		},
	}))

	s.AgentRole.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:  awsiam.Effect_ALLOW,
		Actions: jsii.Strings("bedrock:InvokeModel"),
		Resources: jsii.Strings(
			fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", *s.Region(), s.Config.FoundationModel),
		),
	}))

	instr := s.Config.AgentInstruction
	if instr == "" {
		instr = instruction.Generate(s.Config.GlueDatabase, nil)
	}

	s.Agent = awsbedrock.NewCfnAgent(s.Stack, jsii.String(agentConstructID()), &awsbedrock.CfnAgentProps{
		AgentName:            jsii.String(s.Config.AgentName),
		Description:          jsii.String(DefaultAgentDescription),
		FoundationModel:      jsii.String(s.Config.FoundationModel),
		Instruction:          jsii.String(instr),
		AgentResourceRoleArn: s.AgentRole.RoleArn(),
		AutoPrepare:          jsii.Bool(true),
		ActionGroups: &[]*awsbedrock.CfnAgent_AgentActionGroupProperty{
			{
				ActionGroupName:  jsii.String(s.Config.ActionGroupName),
				Description:      jsii.String(DefaultActionGroupDescSQL),
				ActionGroupState: jsii.String("ENABLED"),
				ActionGroupExecutor: &awsbedrock.CfnAgent_ActionGroupExecutorProperty{
					Lambda: s.ActionFunction.FunctionArn(),
				},
				ApiSchema: &awsbedrock.CfnAgent_APISchemaProperty{
					Payload: jsii.String(ActionSchemaJSON()),
				},
			},
		},
	})

	s.ActionFunction.AddPermission(jsii.String("AllowBedrockInvoke"), &awslambda.Permission{
		Principal: awsiam.NewServicePrincipal(jsii.String("bedrock.amazonaws.com"), nil),
		Action:    jsii.String("lambda:InvokeFunction"),
		SourceArn: jsii.String(fmt.Sprintf("arn:aws:bedrock:%s:%s:agent/*", *s.Region(), *s.Account())),
	})
}

// addOutputs adds CloudFormation outputs.
func (s *Text2SQLStack) addOutputs() {
	awscdk.NewCfnOutput(s.Stack, jsii.String("AgentID"), &awscdk.CfnOutputProps{
		Value:       s.Agent.AttrAgentId(),
		Description: jsii.String("Bedrock agent ID"),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String("AgentARN"), &awscdk.CfnOutputProps{
		Value:       s.Agent.AttrAgentArn(),
		Description: jsii.String("Bedrock agent ARN"),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String("CrawlerName"), &awscdk.CfnOutputProps{
		Value:       jsii.String(s.Config.CrawlerName),
		Description: jsii.String("Glue crawler name"),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String("DatabaseName"), &awscdk.CfnOutputProps{
		Value:       jsii.String(s.Config.GlueDatabase),
		Description: jsii.String("Glue database name"),
	})
	awscdk.NewCfnOutput(s.Stack, jsii.String("ActionFunctionARN"), &awscdk.CfnOutputProps{
		Value:       s.ActionFunction.FunctionArn(),
		Description: jsii.String("Action-group Lambda ARN"),
	})
}

// removalPolicy maps the configured policy to the CDK enum.
func (s *Text2SQLStack) removalPolicy() awscdk.RemovalPolicy {
	if s.Config.RemovalPolicy == "retain" {
		return awscdk.RemovalPolicy_RETAIN
	}
	return awscdk.RemovalPolicy_DESTROY
}

// agentConstructID returns a unique construct id so repeated deployments in
// one app never collide.
func agentConstructID() string {
	return fmt.Sprintf("sql-agent-%s", strings.Split(uuid.NewString(), "-")[0])
}

// retentionFor maps a day count to the closest CloudWatch retention setting.
func retentionFor(days int) awslogs.RetentionDays {
	switch {
	case days <= 1:
		return awslogs.RetentionDays_ONE_DAY
	case days <= 7:
		return awslogs.RetentionDays_ONE_WEEK
	case days <= 14:
		return awslogs.RetentionDays_TWO_WEEKS
	case days <= 30:
		return awslogs.RetentionDays_ONE_MONTH
	case days <= 90:
		return awslogs.RetentionDays_THREE_MONTHS
	case days <= 180:
		return awslogs.RetentionDays_SIX_MONTHS
	case days <= 365:
		return awslogs.RetentionDays_ONE_YEAR
	default:
		return awslogs.RetentionDays_INFINITE
	}
}

// convertTags converts a map to CDK tags.
func convertTags(tags map[string]string) *map[string]*string {
	if tags == nil {
		return nil
	}
	result := make(map[string]*string)
	for k, v := range tags {
		result[k] = jsii.String(v)
	}
	return &result
}
