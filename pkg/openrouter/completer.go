package openrouter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
)

var (
	_ contractx.Completer = (*SDKCompleter)(nil)
	_ contractx.Completer = (*ChatCompleter)(nil)
)

// SDKCompleter asks the chat completions endpoint through the OpenAI SDK.
type SDKCompleter struct {
	client      *openaisdk.Client
	model       string
	temperature float32
	maxTokens   *int
}

func NewSDKCompleter(cfg Config, opts ...option.RequestOption) (*SDKCompleter, error) {
	client := NewClient(cfg, opts...)
	if client == nil {
		return nil, fmt.Errorf("%w: openrouter api key is required", contractx.ErrConfiguration)
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, fmt.Errorf("%w: openrouter model is required", contractx.ErrConfiguration)
	}
	return &SDKCompleter{
		client:      client,
		model:       modelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxCompletionToken,
	}, nil
}

func (c *SDKCompleter) Complete(ctx context.Context, prompt string, system string) (string, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, openaisdk.SystemMessage(system))
	}
	messages = append(messages, openaisdk.UserMessage(prompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:       openaisdk.ChatModel(c.model),
		Messages:    messages,
		Temperature: openaisdk.Float(float64(c.temperature)),
	}
	if c.maxTokens != nil && *c.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(*c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openrouter: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openrouter: chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ChatCompleter asks an eino chat model, the same component the routing graph is
// built from.
type ChatCompleter struct {
	model model.BaseChatModel
}

func NewChatCompleter(m model.BaseChatModel) (*ChatCompleter, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: chat model is nil", contractx.ErrConfiguration)
	}
	return &ChatCompleter{model: m}, nil
}

func (c *ChatCompleter) Complete(ctx context.Context, prompt string, system string) (string, error) {
	input := make([]*schema.Message, 0, 2)
	if strings.TrimSpace(system) != "" {
		input = append(input, schema.SystemMessage(system))
	}
	input = append(input, schema.UserMessage(prompt))

	msg, err := c.model.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("openrouter: generate: %w", err)
	}
	if msg == nil {
		return "", errors.New("openrouter: generate returned nil message")
	}
	return strings.TrimSpace(msg.Content), nil
}
