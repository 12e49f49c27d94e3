// Package azure adapts Azure OpenAI deployments to eino's model and embedding
// components.
package azure

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

// Config identifies one Azure OpenAI deployment.
type Config struct {
	APIKey     string
	Endpoint   string
	APIVersion string
	Deployment string
	Timeout    time.Duration
}

func (c Config) client() (*openai.Client, error) {
	if c.APIKey == "" || c.Endpoint == "" || c.APIVersion == "" || c.Deployment == "" {
		return nil, errors.New("azure: api key, endpoint, api version and deployment are required")
	}

	cfg := openai.DefaultAzureConfig(c.APIKey, c.Endpoint)
	cfg.APIVersion = c.APIVersion
	deployment := c.Deployment
	cfg.AzureModelMapperFunc = func(string) string { return deployment }
	if c.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return openai.NewClientWithConfig(cfg), nil
}

var _ model.BaseChatModel = (*ChatModel)(nil)

// ChatModel answers chat completions through a single Azure deployment.
type ChatModel struct {
	client     *openai.Client
	deployment string
}

// NewChatModel builds a chat model bound to cfg.Deployment.
func NewChatModel(cfg Config) (*ChatModel, error) {
	client, err := cfg.client()
	if err != nil {
		return nil, err
	}
	return &ChatModel{client: client, deployment: cfg.Deployment}, nil
}

// Generate sends the conversation and returns the first choice.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	req := openai.ChatCompletionRequest{
		Model:    m.deployment,
		Messages: toChatMessages(input),
	}
	if options.Temperature != nil {
		req.Temperature = temperature(*options.Temperature)
	}
	if options.TopP != nil {
		req.TopP = *options.TopP
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if len(options.Stop) > 0 {
		req.Stop = options.Stop
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("azure chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("azure chat completion: no choices returned")
	}

	out := schema.AssistantMessage(strings.TrimSpace(resp.Choices[0].Message.Content), nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	return out, nil
}

// Stream is served by a single Generate call; token streaming is not used by
// this service.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toChatMessages(input []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.System:
			role = openai.ChatMessageRoleSystem
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// temperature keeps an explicit zero on the wire; the request field is
// omitempty and a literal 0 would fall back to the server default of 1.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
