// push-secrets pushes environment variables from .env files to AWS Secrets Manager.
//
// It reads KEY=VALUE pairs from a file and creates/updates secrets in AWS Secrets Manager,
// organizing them into logical groups (model, athena, config).
//
// Usage:
//
//	push-secrets [flags] [env-file]
//
// Examples:
//
//	push-secrets .env                          # Push from .env to us-east-1
//	push-secrets --region us-west-2 .env       # Push to specific region
//	push-secrets --prefix mybot .env           # Use custom prefix (mybot/model, mybot/athena, etc.)
//	push-secrets --dry-run .env                # Preview without creating
//
// Install:
//
//	go install github.com/querybridge/text2sql-aws-cdk/cmd/push-secrets@latest
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/querybridge/text2sql-aws-cdk/internal/awsx"
)

const (
	// DefaultConfigDir is the default directory for text2sql configuration
	DefaultConfigDir = ".text2sql"
)

// SecretGroup represents a logical grouping of secrets
type SecretGroup struct {
	Name        string
	Description string
	Keys        map[string]string
	Patterns    []string // Key patterns that belong to this group
}

var (
	region  = flag.String("region", "", "AWS region (default: AWS_REGION or us-east-1)")
	prefix  = flag.String("prefix", "text2sql", "Secret name prefix")
	project = flag.String("project", "", "Project name for ~/.text2sql/projects/{project}/.env lookup")
	dryRun  = flag.Bool("dry-run", false, "Preview changes without creating secrets")
	verbose = flag.Bool("verbose", false, "Show verbose output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [env-file]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Push environment variables to AWS Secrets Manager.\n\n")
		fmt.Fprintf(os.Stderr, "If env-file is not specified, searches in order:\n")
		fmt.Fprintf(os.Stderr, "  1. .env (current directory)\n")
		fmt.Fprintf(os.Stderr, "  2. ../.env (parent directory)\n")
		fmt.Fprintf(os.Stderr, "  3. ~/.text2sql/projects/{project}/.env (if --project specified)\n")
		fmt.Fprintf(os.Stderr, "  4. ~/.text2sql/.env (global fallback)\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSecret Groups:\n")
		fmt.Fprintf(os.Stderr, "  {prefix}/model   - Bedrock model and agent settings\n")
		fmt.Fprintf(os.Stderr, "  {prefix}/athena  - Athena database and output settings\n")
		fmt.Fprintf(os.Stderr, "  {prefix}/config  - Tooling and logging settings\n")
	}
	flag.Parse()

	projectName := *project
	if projectName == "" {
		projectName = detectProjectName()
	}

	var envFile string
	if flag.NArg() >= 1 {
		envFile = flag.Arg(0)
	}

	if err := run(envFile, projectName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile, projectName string) error {
	awsRegion := *region
	if awsRegion == "" {
		awsRegion = os.Getenv("AWS_REGION")
	}
	if awsRegion == "" {
		awsRegion = "us-east-1"
	}

	// Find env file
	envPath := envFile
	if envPath == "" {
		var err error
		envPath, err = findEnvFile(projectName)
		if err != nil {
			return err
		}
	}
	if _, err := os.Stat(envPath); err != nil {
		return fmt.Errorf("env file %s: %w", envPath, err)
	}

	fmt.Printf("Region: %s\n", awsRegion)
	fmt.Printf("Reading from: %s\n", envPath)
	fmt.Println()

	groups := []SecretGroup{
		{
			Name:        "model",
			Description: "Bedrock model and agent settings",
			Keys:        make(map[string]string),
			Patterns: []string{
				"BEDROCK_MODEL_ID", "AGENT_NAME", "AGENT_INSTRUCTION",
				"FOUNDATION_MODEL",
			},
		},
		{
			Name:        "athena",
			Description: "Athena database and output settings",
			Keys:        make(map[string]string),
			Patterns: []string{
				"ATHENA_WORKGROUP", "ATHENA_OUTPUT_LOCATION",
				"GLUE_DATABASE", "DATA_BUCKET",
			},
		},
		{
			Name:        "config",
			Description: "Tooling and logging settings",
			Keys:        make(map[string]string),
			Patterns: []string{
				"TEXT2SQL_LOG", "TEXT2SQL_ENV", "CRAWLER_SCHEDULE",
			},
		},
	}

	if err := parseEnvFile(envPath, groups); err != nil {
		return err
	}

	ctx := context.Background()
	var client *secretsmanager.Client
	if !*dryRun {
		cfg, err := awsx.LoadConfig(ctx, awsx.WithRegion(awsRegion))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		client = secretsmanager.NewFromConfig(cfg)
	}

	for _, group := range groups {
		secretName := fmt.Sprintf("%s/%s", *prefix, group.Name)
		if err := createOrUpdateSecret(ctx, client, secretName, group); err != nil {
			return err
		}
	}

	return nil
}

func parseEnvFile(filename string, groups []SecretGroup) error {
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
			for _, pattern := range groups[i].Patterns {
				if key == pattern {
					groups[i].Keys[key] = value
					if *verbose {
						fmt.Printf("  Found %s: %s\n", groups[i].Name, key)
					}
					break
				}
			}
		}
	}

	return scanner.Err()
}

func createOrUpdateSecret(ctx context.Context, client *secretsmanager.Client, secretName string, group SecretGroup) error {
	if len(group.Keys) == 0 {
		fmt.Printf("  Skipping %s (no keys found)\n", secretName)
		return nil
	}

	jsonBytes, err := json.Marshal(group.Keys)
	if err != nil {
		return err
	}
	secretValue := string(jsonBytes)

	var keyNames []string
	for k := range group.Keys {
		keyNames = append(keyNames, k)
	}
	fmt.Printf("  %s: %s\n", secretName, strings.Join(keyNames, ", "))

	if *dryRun {
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
				Description:  aws.String(group.Description),
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

func findEnvFile(projectName string) (string, error) {
	candidates := []string{
		".env",
		"../.env",
	}

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

func detectProjectName() string {
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

	if wd, err := os.Getwd(); err == nil {
		return filepath.Base(wd)
	}

	return ""
}
