package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/comigor/geminichat/internal/config"
)

// ContentGenerator is the subset of genai.GenerativeModel used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	model  ContentGenerator
	closer func() error
}

// NewGeminiClient creates a client for the configured model.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing api key: set llm.api_key, GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	if prompt := strings.TrimSpace(cfg.SystemPrompt); prompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt)}}
	}
	return &GeminiClient{model: model, closer: client.Close}, nil
}

// NewGeminiClientWithModel wraps an existing generator.
func NewGeminiClientWithModel(model ContentGenerator) *GeminiClient {
	return &GeminiClient{model: model}
}

// Complete sends the text and joins the text parts of the first candidate.
func (g *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(req.Text))
	if err != nil {
		return Response{}, classifyGemini(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, payloadError("no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return Response{}, payloadError("candidate has no text")
	}
	return Response{Text: b.String()}, nil
}

// Close releases the underlying connection.
func (g *GeminiClient) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

func classifyGemini(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &RemoteError{Kind: KindPayload, Err: err}
	}
	if re := networkError(err); re != nil {
		return re
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return &RemoteError{Kind: KindNetwork, Status: s.Code().String(), Err: err}
		default:
			return &RemoteError{Kind: KindStatus, Status: s.Code().String(), Err: err}
		}
	}
	return &RemoteError{Kind: KindNetwork, Err: fmt.Errorf("gemini: %w", err)}
}
