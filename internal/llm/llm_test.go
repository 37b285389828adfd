package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/comigor/geminichat/internal/config"
)

type mockCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	got  openai.ChatCompletionRequest
}

func (m *mockCompleter) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	m.got = r
	return m.resp, m.err
}

func reply(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: text}}},
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	api := &mockCompleter{resp: reply("Hello, I am a helpful AI.")}
	c := NewOpenAIClientWithAPI(api, "gpt", "Be brief.")

	out, err := c.Complete(context.Background(), Request{Text: "User says hi"})
	require.NoError(t, err)
	require.Equal(t, "Hello, I am a helpful AI.", out.Text)

	require.Equal(t, "gpt", api.got.Model)
	require.Len(t, api.got.Messages, 2)
	require.Equal(t, openai.ChatMessageRoleSystem, api.got.Messages[0].Role)
	require.Equal(t, "User says hi", api.got.Messages[1].Content)
}

func TestOpenAIClient_Failures(t *testing.T) {
	cases := []struct {
		name   string
		api    *mockCompleter
		kind   FailureKind
		status int
	}{
		{"timeout", &mockCompleter{err: context.DeadlineExceeded}, KindNetwork, 0},
		{"api status", &mockCompleter{err: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}}, KindStatus, 429},
		{"request status", &mockCompleter{err: &openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")}}, KindStatus, 502},
		{"no choices", &mockCompleter{resp: openai.ChatCompletionResponse{}}, KindPayload, 0},
		{"empty content", &mockCompleter{resp: reply("")}, KindPayload, 0},
		{"other", &mockCompleter{err: errors.New("boom")}, KindNetwork, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOpenAIClientWithAPI(tc.api, "gpt", "").Complete(context.Background(), Request{Text: "hi"})
			require.ErrorIs(t, err, ErrRemoteCall)
			var re *RemoteError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tc.kind, re.Kind)
			require.Equal(t, tc.status, re.StatusCode)
			if tc.kind == KindPayload {
				require.ErrorIs(t, err, ErrInvalidPayload)
			}
		})
	}
}

type mockGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
	got  []genai.Part
}

func (m *mockGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	m.got = parts
	return m.resp, m.err
}

func candidate(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: parts}}},
	}
}

func TestGeminiClient_Complete(t *testing.T) {
	gen := &mockGenerator{resp: candidate(genai.Text("Hi "), genai.Text("there"))}
	out, err := NewGeminiClientWithModel(gen).Complete(context.Background(), Request{Text: "Hello"})
	require.NoError(t, err)
	require.Equal(t, "Hi there", out.Text)
	require.Equal(t, []genai.Part{genai.Text("Hello")}, gen.got)
}

func TestGeminiClient_Failures(t *testing.T) {
	cases := []struct {
		name   string
		gen    *mockGenerator
		kind   FailureKind
		status string
	}{
		{"no candidates", &mockGenerator{resp: &genai.GenerateContentResponse{}}, KindPayload, ""},
		{"nil response", &mockGenerator{}, KindPayload, ""},
		{"nil content", &mockGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}}, KindPayload, ""},
		{"no text parts", &mockGenerator{resp: candidate(genai.Blob{MIMEType: "image/png"})}, KindPayload, ""},
		{"blocked", &mockGenerator{err: &genai.BlockedError{}}, KindPayload, ""},
		{"permission", &mockGenerator{err: status.Error(codes.PermissionDenied, "bad key")}, KindStatus, "PermissionDenied"},
		{"unavailable", &mockGenerator{err: status.Error(codes.Unavailable, "down")}, KindNetwork, "Unavailable"},
		{"deadline", &mockGenerator{err: context.DeadlineExceeded}, KindNetwork, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewGeminiClientWithModel(tc.gen).Complete(context.Background(), Request{Text: "hi"})
			require.ErrorIs(t, err, ErrRemoteCall)
			var re *RemoteError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tc.kind, re.Kind)
			require.Equal(t, tc.status, re.Status)
		})
	}
}

type funcClient func(ctx context.Context, req Request) (Response, error)

func (f funcClient) Complete(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

func TestWithPolicy_Timeout(t *testing.T) {
	slow := funcClient(func(ctx context.Context, req Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	_, err := WithPolicy(slow, 20*time.Millisecond, 0).Complete(context.Background(), Request{Text: "hi"})
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	require.Equal(t, KindNetwork, re.Kind)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithPolicy_PassesThrough(t *testing.T) {
	calls := 0
	c := WithPolicy(funcClient(func(ctx context.Context, req Request) (Response, error) {
		calls++
		_, hasDeadline := ctx.Deadline()
		require.True(t, hasDeadline)
		return Response{Text: "echo " + req.Text}, nil
	}), time.Second, 600)

	out, err := c.Complete(context.Background(), Request{Text: "a"})
	require.NoError(t, err)
	require.Equal(t, "echo a", out.Text)
	require.Equal(t, 1, calls)
}

func TestWithPolicy_RateLimitRespectsContext(t *testing.T) {
	ok := funcClient(func(ctx context.Context, req Request) (Response, error) { return Response{Text: "x"}, nil })
	c := WithPolicy(ok, 50*time.Millisecond, 1)

	_, err := c.Complete(context.Background(), Request{Text: "first"})
	require.NoError(t, err)

	// The second token is a minute away, beyond the call timeout.
	_, err = c.Complete(context.Background(), Request{Text: "second"})
	require.ErrorIs(t, err, ErrRemoteCall)
}

func TestNewClient(t *testing.T) {
	c, closeFn, err := NewClient(context.Background(), config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt", Timeout: time.Second})
	require.NoError(t, err)
	require.NotNil(t, c)
	require.NoError(t, closeFn())

	_, _, err = NewClient(context.Background(), config.LLMConfig{Provider: config.ProviderGemini})
	require.ErrorContains(t, err, "missing api key")

	_, _, err = NewClient(context.Background(), config.LLMConfig{Provider: "other"})
	require.Error(t, err)
}
