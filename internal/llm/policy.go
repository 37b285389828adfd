package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/comigor/geminichat/internal/config"
	"github.com/comigor/geminichat/internal/logger"
)

// limitedClient bounds each call with a timeout and an optional request rate.
type limitedClient struct {
	next    Client
	timeout time.Duration
	limiter *rate.Limiter
}

// WithPolicy wraps c so every call gets timeout and, when perMinute > 0, waits
// for the rate limiter first.
func WithPolicy(c Client, timeout time.Duration, perMinute int) Client {
	lc := &limitedClient{next: c, timeout: timeout}
	if perMinute > 0 {
		lc.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return lc
}

func (c *limitedClient) Complete(ctx context.Context, req Request) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, &RemoteError{Kind: KindNetwork, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	start := time.Now()
	resp, err := c.next.Complete(ctx, req)
	if err != nil {
		err = asRemote(err)
		logger.L.Error("completion failed", "error", err, "elapsed", time.Since(start))
		return Response{}, err
	}
	logger.L.Debug("completion received", "elapsed", time.Since(start), "chars", len(resp.Text))
	return resp, nil
}

// NewClient builds the configured backend wrapped with the call policy. The
// returned close function releases provider resources.
func NewClient(ctx context.Context, cfg config.LLMConfig) (Client, func() error, error) {
	var c Client
	closeFn := func() error { return nil }
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c = NewOpenAIClient(cfg)
	case config.ProviderGemini, "":
		g, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		c, closeFn = g, g.Close
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	return WithPolicy(c, cfg.Timeout, cfg.RequestsPerMinute), closeFn, nil
}
