// Package llm sends plan and expansion requests to a language model and
// returns the raw response text.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/config"
)

// Params tunes a single call. Zero values mean the backend default.
type Params struct {
	Model       string
	Temperature float32
	MaxTokens   int
	System      string
}

type Client interface {
	Generate(ctx context.Context, document string, p Params) (string, error)
}

// Func adapts a function to Client.
type Func func(ctx context.Context, document string, p Params) (string, error)

func (f Func) Generate(ctx context.Context, document string, p Params) (string, error) {
	return f(ctx, document, p)
}

// Disabled is used when no provider is configured. Every call fails with a
// configuration error.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, Params) (string, error) {
	return "", apperr.New(apperr.KindConfiguration, "llm.Generate", "no language model provider configured")
}

// Open builds the client selected by cfg, wrapped with the configured
// timeout.
func Open(ctx context.Context, cfg config.LLM, logger *slog.Logger) (Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var c Client
	switch cfg.Provider {
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, logger)
		if err != nil {
			return nil, err
		}
		c = g
	case config.ProviderClaudeCLI:
		c = NewClaudeCLIClient(cfg.Binary, "", logger)
	case config.ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, apperr.New(apperr.KindConfiguration, "llm.Open", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
	return WithTimeout(c, cfg.Timeout()), nil
}

// DefaultParams maps the configured model settings onto Params.
func DefaultParams(cfg config.LLM) Params {
	return Params{
		Model:       cfg.Model,
		Temperature: float32(cfg.Temperature),
		MaxTokens:   cfg.MaxTokens,
	}
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every call to d. A non-positive d returns c unchanged.
func WithTimeout(c Client, d time.Duration) Client {
	if d <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: d}
}

func (t *timeoutClient) Generate(ctx context.Context, document string, p Params) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	out, err := t.next.Generate(ctx, document, p)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && apperr.KindOf(err) == "" {
		return "", apperr.Wrapf(apperr.KindTransport, "llm.Generate", err, "model call timed out after %s", t.timeout)
	}
	return out, err
}

// classifyTransport maps context and network failures to a transport error
// and returns nil for anything else.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}
	return nil
}
