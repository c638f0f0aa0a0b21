package bedrockx

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeBedrock struct {
	input *bedrockruntime.InvokeModelInput
	body  string
	err   error
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestNewInvokerDefaults(t *testing.T) {
	inv := NewInvoker(&fakeBedrock{}, "")
	assert.Equal(t, DefaultModelID, inv.ModelID)
	assert.Equal(t, 4096, inv.MaxTokens)

	inv = NewInvoker(&fakeBedrock{}, "anthropic.claude-3-haiku-20240307-v1:0")
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", inv.ModelID)
}

func TestInvokeText(t *testing.T) {
	client := &fakeBedrock{
		body: `{"content":[{"type":"text","text":"SELECT 1"}]}`,
	}
	inv := NewInvoker(client, "")

	got, err := inv.InvokeText(context.Background(), "write a query")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)

	require.NotNil(t, client.input)
	assert.Equal(t, DefaultModelID, aws.ToString(client.input.ModelId))

	sent := gjson.ParseBytes(client.input.Body)
	assert.Equal(t, "bedrock-2023-05-31", sent.Get("anthropic_version").String())
	assert.Equal(t, int64(4096), sent.Get("max_tokens").Int())
	assert.Equal(t, "user", sent.Get("messages.0.role").String())
	assert.Equal(t, "write a query", sent.Get("messages.0.content.0.text").String())
}

func TestInvokeTextTakesLastTextBlock(t *testing.T) {
	client := &fakeBedrock{
		body: `{"content":[{"type":"text","text":"thinking"},{"type":"text","text":"final answer"}]}`,
	}
	inv := NewInvoker(client, "")

	got, err := inv.InvokeText(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, "final answer", got)
}

func TestInvokeTextEmptyContent(t *testing.T) {
	client := &fakeBedrock{body: `{"content":[]}`}
	inv := NewInvoker(client, "")

	got, err := inv.InvokeText(context.Background(), "question")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvokeTextError(t *testing.T) {
	client := &fakeBedrock{err: errors.New("throttled")}
	inv := NewInvoker(client, "")

	_, err := inv.InvokeText(context.Background(), "question")
	require.ErrorContains(t, err, DefaultModelID)
}
