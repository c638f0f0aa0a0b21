// deploy orchestrates the text-to-SQL stack deployment.
//
// It handles:
//  1. Preflight checks on the required S3 buckets
//  2. Pushing chatbot configuration from .env to AWS Secrets Manager
//  3. Bootstrapping AWS CDK
//  4. Deploying (or destroying) the CDK stack
//
// Usage:
//
//	deploy [flags]
//
// Examples:
//
//	deploy                              # Deploy from current directory
//	deploy --env ../.env                # Specify env file location
//	deploy --region us-west-2           # Deploy to specific region
//	deploy --dry-run                    # Preview without deploying
//	deploy --destroy                    # Tear the stack down
//
// Install:
//
//	go install github.com/querybridge/text2sql-aws-cdk/cmd/deploy@latest
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/querybridge/text2sql-aws-cdk/internal/awsx"
	logx "github.com/querybridge/text2sql-aws-cdk/internal/log"
	"github.com/querybridge/text2sql-aws-cdk/text2sql"
)

const (
	// DefaultConfigDir is the default directory for text2sql configuration
	DefaultConfigDir = ".text2sql"
)

var (
	region        = flag.String("region", "", "AWS region (default: AWS_REGION or us-east-1)")
	profile       = flag.String("profile", "", "AWS shared config profile (default: AWS_PROFILE)")
	envFile       = flag.String("env", "", "Path to .env file (default: auto-detect)")
	prefix        = flag.String("prefix", "text2sql", "Secret name prefix")
	project       = flag.String("project", "", "Project name for ~/.text2sql/projects/{project}/.env lookup")
	dataBucket    = flag.String("data-bucket", text2sql.DefaultDataBucket, "Source data bucket that must exist")
	resultsBucket = flag.String("results-bucket", text2sql.DefaultPocResultsBucket, "Athena output bucket that must exist")
	zipName       = flag.String("zip", "", "zip_file_name context passed through to cdk destroy")
	dryRun        = flag.Bool("dry-run", false, "Preview changes without deploying")
	destroy       = flag.Bool("destroy", false, "Destroy the stack instead of deploying")
	skipSecrets   = flag.Bool("skip-secrets", false, "Skip pushing secrets")
	skipBootstrap = flag.Bool("skip-bootstrap", false, "Skip CDK bootstrap")
	skipPreflight = flag.Bool("skip-preflight", false, "Skip S3 bucket preflight checks")
	verbose       = flag.Bool("verbose", false, "Show verbose output")
)

func main() {
	logx.InitLogger()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Deploy the text-to-SQL chatbot backend.\n\n")
		fmt.Fprintf(os.Stderr, "Env file search order (if --env not specified):\n")
		fmt.Fprintf(os.Stderr, "  1. .env (current directory)\n")
		fmt.Fprintf(os.Stderr, "  2. ../.env (parent directory)\n")
		fmt.Fprintf(os.Stderr, "  3. ~/.text2sql/projects/{project}/.env (if --project specified)\n")
		fmt.Fprintf(os.Stderr, "  4. ~/.text2sql/.env (global fallback)\n\n")
		fmt.Fprintf(os.Stderr, "Project is auto-detected from config.json stackName if not specified.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSteps:\n")
		fmt.Fprintf(os.Stderr, "  1. Check the data and Athena output buckets exist\n")
		fmt.Fprintf(os.Stderr, "  2. Push configuration from .env to AWS Secrets Manager\n")
		fmt.Fprintf(os.Stderr, "  3. Bootstrap AWS CDK (if needed)\n")
		fmt.Fprintf(os.Stderr, "  4. Deploy (or destroy) the CDK stack\n")
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Determine region
	awsRegion := *region
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_REGION")
	}
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
	if awsRegion == "" {
		awsRegion = "us-east-1"
	}

	// Detect project name
	projectName := *project
	if projectName == "" {
		projectName = detectProjectName()
	}

	fmt.Println("=== Text-to-SQL Deployment ===")
	fmt.Println()
	fmt.Printf("Region: %s\n", awsRegion)
	if projectName != "" {
		fmt.Printf("Project: %s\n", projectName)
	}
	fmt.Printf("Working directory: %s\n", mustGetwd())
	if *dryRun {
		fmt.Println("Mode: DRY RUN (no changes will be made)")
	}
	if *destroy {
		fmt.Println("Mode: DESTROY")
	}
	fmt.Println()

	ctx := context.Background()

	opts := []awsx.Option{awsx.WithRegion(awsRegion)}
	if *profile != "" {
		opts = append(opts, awsx.WithProfile(*profile))
	}
	cfg, err := awsx.LoadConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	// Get account ID
	stsClient := sts.NewFromConfig(cfg)
	identity, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("getting AWS identity: %w", err)
	}
	accountID := *identity.Account
	fmt.Printf("AWS Account: %s\n", accountID)
	fmt.Println()

	// Step 1: Preflight
	if !*skipPreflight && !*destroy {
		fmt.Println("=== Step 1: Preflight ===")
		if err := checkBuckets(ctx, awsx.NewS3(cfg), *dataBucket, *resultsBucket); err != nil {
			return err
		}
		fmt.Println()
	} else {
		fmt.Println("=== Step 1: Skipping preflight ===")
		fmt.Println()
	}

	// Step 2: Push secrets
	if !*skipSecrets && !*destroy {
		fmt.Println("=== Step 2: Push Secrets ===")
		if err := pushSecrets(ctx, cfg, *envFile, *prefix, projectName, *dryRun, *verbose); err != nil {
			return fmt.Errorf("pushing secrets: %w", err)
		}
		fmt.Println()
	} else {
		fmt.Println("=== Step 2: Skipping secrets ===")
		fmt.Println()
	}

	// Step 3: Bootstrap CDK
	if !*skipBootstrap && !*destroy {
		fmt.Println("=== Step 3: Bootstrap CDK ===")
		bootstrapCDK(ctx, accountID, awsRegion, *dryRun)
		fmt.Println()
	} else {
		fmt.Println("=== Step 3: Skipping bootstrap ===")
		fmt.Println()
	}

	// Step 4: Deploy or destroy
	if *destroy {
		fmt.Println("=== Step 4: Destroy ===")
		if err := destroyCDK(ctx, awsRegion, *zipName, *dryRun); err != nil {
			return fmt.Errorf("destroying: %w", err)
		}
	} else {
		fmt.Println("=== Step 4: Deploy ===")
		if err := deployCDK(ctx, awsRegion, *dryRun); err != nil {
			return fmt.Errorf("deploying: %w", err)
		}
	}
	fmt.Println()

	fmt.Println("=== Done ===")
	if !*dryRun && !*destroy {
		fmt.Println()
		fmt.Println("To get outputs:")
		fmt.Printf("  aws cloudformation describe-stacks --stack-name text-2-sql --region %s --query 'Stacks[0].Outputs' --no-cli-pager\n", awsRegion)
	}

	return nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// checkBuckets verifies the stack's pre-created buckets exist. The stack
// imports them by ARN, so a missing bucket only surfaces at query time
// otherwise.
func checkBuckets(ctx context.Context, client *s3.Client, buckets ...string) error {
	for _, bucket := range buckets {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		if err != nil {
			return fmt.Errorf("bucket %q is not accessible (create it and upload the data tree first): %w", bucket, err)
		}
		fmt.Printf("  Bucket %s: OK\n", bucket)
	}
	return nil
}

// pushSecrets pushes environment variables to AWS Secrets Manager
func pushSecrets(ctx context.Context, cfg aws.Config, envFile, prefix, projectName string, dryRun, verbose bool) error {
	// Find env file
	var envPath string
	if envFile != "" {
		envPath = envFile
		if !filepath.IsAbs(envPath) {
			// Try relative to current directory, then parent
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				parentPath := filepath.Join("..", envPath)
				if _, err := os.Stat(parentPath); err == nil {
					envPath = parentPath
				}
			}
		}
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			fmt.Printf("Warning: %s not found, skipping secrets push\n", envFile)
			return nil
		}
	} else {
		// Auto-detect env file
		var err error
		envPath, err = findEnvFile(projectName)
		if err != nil {
			fmt.Println("No .env file found, skipping secrets push")
			fmt.Println("  Searched: .env, ../.env, ~/.text2sql/")
			return nil
		}
	}

	fmt.Printf("Reading from: %s\n", envPath)

	groups := secretGroups()

	// Parse env file
	if err := parseEnvFile(envPath, groups, verbose); err != nil {
		return err
	}

	// Create secrets client
	var client *secretsmanager.Client
	if !dryRun {
		client = secretsmanager.NewFromConfig(cfg)
	}

	// Process each group
	for _, group := range groups {
		secretName := fmt.Sprintf("%s/%s", prefix, group.name)
		if err := createOrUpdateSecret(ctx, client, secretName, group, dryRun); err != nil {
			return err
		}
	}

	return nil
}

type secretGroup struct {
	name        string
	description string
	keys        map[string]string
	patterns    []string
}

// secretGroups defines which .env keys land in which secret.
func secretGroups() []secretGroup {
	return []secretGroup{
		{
			name:        "model",
			description: "Bedrock model and agent settings",
			keys:        make(map[string]string),
			patterns: []string{
				"BEDROCK_MODEL_ID", "AGENT_NAME", "AGENT_INSTRUCTION",
				"FOUNDATION_MODEL",
			},
		},
		{
			name:        "athena",
			description: "Athena database and output settings",
			keys:        make(map[string]string),
			patterns: []string{
				"ATHENA_WORKGROUP", "ATHENA_OUTPUT_LOCATION",
				"GLUE_DATABASE", "DATA_BUCKET",
			},
		},
		{
			name:        "config",
			description: "Tooling and logging settings",
			keys:        make(map[string]string),
			patterns: []string{
				"TEXT2SQL_LOG", "TEXT2SQL_ENV", "CRAWLER_SCHEDULE",
			},
		},
	}
}

func parseEnvFile(filename string, groups []secretGroup, verbose bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	envRegex := regexp.MustCompile(`^\s*(export\s+)?([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		matches := envRegex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}

		key := matches[2]
		value := strings.Trim(matches[3], `"'`)

		if value == "" || strings.HasPrefix(value, "your-") {
			continue
		}

		for i := range groups {
			for _, pattern := range groups[i].patterns {
				if key == pattern {
					groups[i].keys[key] = value
					if verbose {
						fmt.Printf("  Found %s: %s\n", groups[i].name, key)
					}
					break
				}
			}
		}
	}

	return scanner.Err()
}

func createOrUpdateSecret(ctx context.Context, client *secretsmanager.Client, secretName string, group secretGroup, dryRun bool) error {
	if len(group.keys) == 0 {
		fmt.Printf("  Skipping %s (no keys found)\n", secretName)
		return nil
	}

	jsonBytes, err := json.Marshal(group.keys)
	if err != nil {
		return err
	}
	secretValue := string(jsonBytes)

	var keyNames []string
	for k := range group.keys {
		keyNames = append(keyNames, k)
	}
	fmt.Printf("  %s: %s\n", secretName, strings.Join(keyNames, ", "))

	if dryRun {
		fmt.Printf("    [DRY RUN] Would create/update\n")
		return nil
	}

	_, err = client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(secretName),
		SecretString: aws.String(secretValue),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			_, err = client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(secretName),
				Description:  aws.String(group.description),
				SecretString: aws.String(secretValue),
			})
			if err != nil {
				return err
			}
			fmt.Printf("    Created\n")
			return nil
		}
		return err
	}
	fmt.Printf("    Updated\n")
	return nil
}

// bootstrapCDK runs cdk bootstrap
func bootstrapCDK(ctx context.Context, accountID, region string, dryRun bool) {
	target := fmt.Sprintf("aws://%s/%s", accountID, region)
	fmt.Printf("Bootstrap target: %s\n", target)

	if dryRun {
		fmt.Println("[DRY RUN] Would run: cdk bootstrap " + target)
		return
	}

	cmd := exec.CommandContext(ctx, "cdk", "bootstrap", target)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		// Bootstrap might fail if already done, that's OK
		fmt.Println("  Bootstrap completed (or already bootstrapped)")
	}
}

// findEnvFile searches for .env file in standard locations
func findEnvFile(projectName string) (string, error) {
	candidates := []string{
		".env",
		"../.env",
	}

	// Add project-specific and global paths
	if home, err := os.UserHomeDir(); err == nil {
		if projectName != "" {
			candidates = append(candidates, filepath.Join(home, DefaultConfigDir, "projects", projectName, ".env"))
		}
		candidates = append(candidates, filepath.Join(home, DefaultConfigDir, ".env"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no .env file found")
}

// detectProjectName tries to detect the project name from config.json or directory name
func detectProjectName() string {
	// Try to read stackName from config.json
	configPaths := []string{"config.json", "../config.json"}
	for _, path := range configPaths {
		if data, err := os.ReadFile(path); err == nil {
			var config struct {
				StackName string `json:"stackName"`
			}
			if json.Unmarshal(data, &config) == nil && config.StackName != "" {
				return config.StackName
			}
		}
	}

	// Fall back to current directory name
	if wd, err := os.Getwd(); err == nil {
		return filepath.Base(wd)
	}

	return ""
}

// deployCDK runs cdk deploy
func deployCDK(ctx context.Context, region string, dryRun bool) error {
	if dryRun {
		fmt.Println("Running cdk diff...")
		cmd := exec.CommandContext(ctx, "cdk", "diff", "--context", "region="+region)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		_ = cmd.Run() // Ignore error, diff returns non-zero if there are differences
		return nil
	}

	fmt.Println("Running cdk deploy...")
	cmd := exec.CommandContext(ctx, "cdk", "deploy",
		"--require-approval", "never",
		"--context", "region="+region)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// destroyCDK runs cdk destroy
func destroyCDK(ctx context.Context, region, zipName string, dryRun bool) error {
	args := []string{"destroy", "--force", "--context", "region=" + region}
	if zipName != "" {
		args = append(args, "--context", "zip_file_name="+zipName)
	}

	if dryRun {
		fmt.Printf("[DRY RUN] Would run: cdk %s\n", strings.Join(args, " "))
		return nil
	}

	fmt.Println("Running cdk destroy...")
	cmd := exec.CommandContext(ctx, "cdk", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
