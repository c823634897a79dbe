// Package openai implements ports.Generator on the OpenAI chat completion
// API.
package openai

import (
	"context"
	"fmt"

	backend "github.com/sashabaranov/go-openai"

	"github.com/aretw0/arbor/pkg/domain"
)

const defaultModel = backend.GPT4oMini

// Generator calls the chat completion endpoint once per node invocation.
type Generator struct {
	client *backend.Client
	model  string
}

type Option func(*Generator)

// WithModel sets the model used when a node's sampling params omit one.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// New creates a generator with its own API client.
func New(apiKey string, opts ...Option) *Generator {
	return NewFromClient(backend.NewClient(apiKey), opts...)
}

// NewFromClient creates a generator from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Generator {
	g := &Generator{
		client: client,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements ports.Generator. The returned value is the assistant
// message content as a string.
func (g *Generator) Generate(ctx context.Context, systemPrompt, userPrompt string, params domain.SamplingParams) (any, error) {
	model := params.Model
	if model == "" {
		model = g.model
	}

	var messages []backend.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, backend.ChatCompletionMessage{
			Role:    backend.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, backend.ChatCompletionMessage{
		Role:    backend.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, backend.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: float32(params.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
