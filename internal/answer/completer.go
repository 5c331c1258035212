// Package answer turns a question into an answer grounded in indexed
// initiative chunks: retrieve by similarity, assemble a context prompt, and
// ask the completion model.
package answer

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Completer generates a completion from a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// completionTemperature keeps answers close to the provided context.
const completionTemperature = 0.2

// OpenAICompleter implements Completer against the OpenAI chat API.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// Option configures an OpenAICompleter.
type Option func(*openai.ClientConfig)

// WithBaseURL overrides the API endpoint, for tests and proxies.
func WithBaseURL(url string) Option {
	return func(cfg *openai.ClientConfig) { cfg.BaseURL = url }
}

// NewOpenAICompleter creates a completer using the given model.
func NewOpenAICompleter(apiKey, model string, opts ...Option) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("answer: API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("answer: model is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Complete sends the prompts to the chat API and returns the first choice.
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: completionTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
