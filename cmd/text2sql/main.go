// text2sql is the CDK app that synthesizes the text-to-SQL chatbot stack.
//
// Context keys (passed with cdk --context key=value):
//
//	region            target AWS region (falls back to AWS_REGION)
//	config            path to a JSON/YAML stack config; overrides everything else
//	discover          "true" to list the data bucket and derive crawler targets
//	instruction_mode  "model" to refine the agent instruction through Bedrock
//
// Deploy with:
//
//	cdk deploy --profile <PROFILE> --context region=<REGION>
package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"

	"github.com/querybridge/text2sql-aws-cdk/internal/awsx"
	"github.com/querybridge/text2sql-aws-cdk/internal/bedrockx"
	"github.com/querybridge/text2sql-aws-cdk/internal/datasource"
	"github.com/querybridge/text2sql-aws-cdk/internal/instruction"
	logx "github.com/querybridge/text2sql-aws-cdk/internal/log"
	"github.com/querybridge/text2sql-aws-cdk/text2sql"
)

func main() {
	defer jsii.Close()
	logx.InitLogger()

	app := text2sql.NewApp()

	if configPath := contextString(app, "config"); configPath != "" {
		text2sql.MustNewStackFromFile(app, configPath)
		text2sql.Synth(app)
		return
	}

	region := contextString(app, "region")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	cfg := text2sql.DefaultStackConfig("text-2-sql")
	cfg.Description = "Text-to-SQL chatbot backend (Bedrock agent over Athena)"

	if contextString(app, "discover") == "true" {
		if targets, err := discoverTargets(region, cfg.DataBucket); err != nil {
			log.Warnf("crawler target discovery failed, crawling the whole bucket: %v", err)
		} else {
			cfg.CrawlerTargets = targets
		}
	}

	if contextString(app, "instruction_mode") == "model" {
		if refined, err := refineInstruction(region, cfg); err != nil {
			log.Warnf("instruction refinement failed, using the generated text: %v", err)
		} else {
			cfg.AgentInstruction = refined
		}
	}

	text2sql.NewText2SQLStack(app, cfg.StackName, cfg)
	text2sql.Synth(app)
}

// discoverTargets lists the data bucket and maps each top-level folder to its
// DynamoDB export path.
func discoverTargets(region, bucket string) ([]string, error) {
	ctx := context.Background()
	awsCfg, err := awsx.LoadConfig(ctx, awsx.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return datasource.CrawlerTargets(ctx, awsx.NewS3(awsCfg), bucket)
}

// refineInstruction rewrites the generated instruction through the stack's
// own foundation model before it is baked into the agent.
func refineInstruction(region string, cfg text2sql.StackConfig) (string, error) {
	ctx := context.Background()
	awsCfg, err := awsx.LoadConfig(ctx, awsx.WithRegion(region))
	if err != nil {
		return "", err
	}
	invoker := bedrockx.NewInvoker(awsx.NewBedrockRuntime(awsCfg), cfg.FoundationModel)
	return instruction.Refine(ctx, invoker, instruction.Generate(cfg.GlueDatabase, nil))
}

func contextString(app awscdk.App, key string) string {
	if v, ok := app.Node().TryGetContext(jsii.String(key)).(string); ok {
		return v
	}
	return ""
}
