// Package bedrockx invokes Anthropic models through the Bedrock runtime.
package bedrockx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
)

// DefaultModelID is the Claude 3 Sonnet model the chatbot ships with.
const DefaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 4096
)

// Client is the slice of the Bedrock runtime API this package uses.
type Client interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Invoker sends text prompts to one Bedrock model.
type Invoker struct {
	client Client

	// ModelID is the Bedrock model identifier.
	ModelID string

	// MaxTokens caps the response length. Default 4096.
	MaxTokens int
}

// NewInvoker creates an invoker for the given model. An empty modelID selects
// DefaultModelID.
func NewInvoker(client Client, modelID string) *Invoker {
	if modelID == "" {
		modelID = DefaultModelID
	}
	return &Invoker{client: client, ModelID: modelID, MaxTokens: defaultMaxTokens}
}

type messageBody struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string    `json:"role"`
	Content []content `json:"content"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// InvokeText runs a single-turn text inference and returns the model's text.
func (i *Invoker) InvokeText(ctx context.Context, prompt string) (string, error) {
	maxTokens := i.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(messageBody{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []message{
			{Role: "user", Content: []content{{Type: "text", Text: prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request body: %w", err)
	}

	out, err := i.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: aws.String(i.ModelID),
		Body:    body,
	})
	if err != nil {
		return "", fmt.Errorf("invoking %s: %w", i.ModelID, err)
	}

	// The response carries a content array; the final text block is the
	// answer.
	var text string
	for _, block := range gjson.GetBytes(out.Body, "content").Array() {
		if t := block.Get("text"); t.Exists() {
			text = t.String()
		}
	}
	if text == "" {
		log.Warnf("%s returned no text content", i.ModelID)
	}
	return text, nil
}
