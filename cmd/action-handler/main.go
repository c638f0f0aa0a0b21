// action-handler is the Bedrock agent action-group Lambda. It executes the
// schema, query, and catalog-refresh operations against Athena and Glue.
//
// Build it into the stack's Lambda asset directory:
//
//	GOOS=linux GOARCH=arm64 go build -o lambda/action-handler/bootstrap ./cmd/action-handler
package main

import (
	"context"
	"os"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/querybridge/text2sql-aws-cdk/internal/action"
	"github.com/querybridge/text2sql-aws-cdk/internal/athenaq"
	"github.com/querybridge/text2sql-aws-cdk/internal/awsx"
	logx "github.com/querybridge/text2sql-aws-cdk/internal/log"
)

func main() {
	logx.InitLogger()
	ctx := context.Background()

	cfg, err := action.LoadConfig()
	if err != nil {
		log.Errorf("invalid environment: %v", err)
		os.Exit(1)
	}

	awsCfg, err := awsx.LoadConfig(ctx, awsx.WithRegion(cfg.Region))
	if err != nil {
		log.Errorf("loading AWS config: %v", err)
		os.Exit(1)
	}

	runner := athenaq.NewRunner(awsx.NewAthena(awsCfg), cfg.Database, cfg.OutputLocation)
	runner.Workgroup = cfg.Workgroup

	h := &action.Handler{
		Athena:      runner,
		Glue:        awsx.NewGlue(awsCfg),
		CrawlerName: cfg.Crawler,
	}

	lambda.Start(h.Handle)
}
