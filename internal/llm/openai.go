package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/geminichat/internal/config"
)

// ChatCompleter is the subset of openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	api          ChatCompleter
	model        string
	systemPrompt string
}

// NewOpenAIClient creates a client from the LLM configuration.
func NewOpenAIClient(cfg config.LLMConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return NewOpenAIClientWithAPI(openai.NewClientWithConfig(oc), cfg.Model, cfg.SystemPrompt)
}

// NewOpenAIClientWithAPI wraps an existing completer.
func NewOpenAIClientWithAPI(api ChatCompleter, model, systemPrompt string) *OpenAIClient {
	return &OpenAIClient{api: api, model: model, systemPrompt: systemPrompt}
}

// Complete sends a single user turn and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	var msgs []openai.ChatCompletionMessage
	if c.systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Text})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	if err != nil {
		return Response{}, classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, payloadError("no choices")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return Response{}, payloadError("empty completion")
	}
	return Response{Text: text}, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{Kind: KindStatus, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &RemoteError{Kind: KindStatus, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	if re := networkError(err); re != nil {
		return re
	}
	return &RemoteError{Kind: KindNetwork, Err: fmt.Errorf("openai: %w", err)}
}
