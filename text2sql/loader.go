// Package text2sql provides AWS CDK constructs for deploying a text-to-SQL
// chatbot backend built on Bedrock Agents, Glue, Athena, Lambda, and S3.
package text2sql

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/constructs-go/constructs/v10"
	"gopkg.in/yaml.v3"
)

// LoadStackConfigFromFile loads a StackConfig from a JSON or YAML file,
// chosen by extension.
func LoadStackConfigFromFile(path string) (*StackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadStackConfigFromJSON(data)
	case ".yaml", ".yml":
		return LoadStackConfigFromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .json, .yaml, or .yml)", filepath.Ext(path))
	}
}

// LoadStackConfigFromJSON parses a StackConfig from JSON data.
func LoadStackConfigFromJSON(data []byte) (*StackConfig, error) {
	var config StackConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing JSON config: %w", err)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadStackConfigFromYAML parses a StackConfig from YAML data.
func LoadStackConfigFromYAML(data []byte) (*StackConfig, error) {
	var config StackConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// NewStackFromFile creates a Text2SQLStack from a JSON or YAML config file.
// This is the simplest way to deploy - just provide a config file.
func NewStackFromFile(scope constructs.Construct, configPath string) (*Text2SQLStack, error) {
	config, err := LoadStackConfigFromFile(configPath)
	if err != nil {
		return nil, err
	}
	return NewText2SQLStack(scope, config.StackName, *config), nil
}

// MustNewStackFromFile is like NewStackFromFile but panics on error.
func MustNewStackFromFile(scope constructs.Construct, configPath string) *Text2SQLStack {
	stack, err := NewStackFromFile(scope, configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to create stack from %s: %v", configPath, err))
	}
	return stack
}

// NewStackFromJSON creates a Text2SQLStack from JSON data.
func NewStackFromJSON(scope constructs.Construct, jsonData []byte) (*Text2SQLStack, error) {
	config, err := LoadStackConfigFromJSON(jsonData)
	if err != nil {
		return nil, err
	}
	return NewText2SQLStack(scope, config.StackName, *config), nil
}

// JSONConfigExample returns an example JSON configuration.
func JSONConfigExample() string {
	cfg := DefaultStackConfig("text-2-sql")
	cfg.Description = "Text-to-SQL chatbot backend"
	cfg.CrawlerTargets = []string{"s3://vehicle-data/fleet/AWSDynamoDB/data/"}
	b, _ := json.MarshalIndent(cfg, "", "  ")
	return string(b)
}

// YAMLConfigExample returns an example YAML configuration.
func YAMLConfigExample() string {
	cfg := DefaultStackConfig("text-2-sql")
	cfg.Description = "Text-to-SQL chatbot backend"
	cfg.CrawlerTargets = []string{"s3://vehicle-data/fleet/AWSDynamoDB/data/"}
	b, _ := yaml.Marshal(cfg)
	return string(b)
}

// WriteExampleConfig writes an example configuration file, JSON or YAML by
// extension.
func WriteExampleConfig(path string) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		content = JSONConfigExample()
	case ".yaml", ".yml":
		content = YAMLConfigExample()
	default:
		return fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
