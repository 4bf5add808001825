package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/sandeepkv93/dayplan/internal/apperr"
)

const defaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	models contentGenerator
	logger *slog.Logger
}

// NewGeminiClient connects to the Gemini API. An empty key is a
// configuration error and no connection is attempted.
func NewGeminiClient(ctx context.Context, apiKey string, logger *slog.Logger) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.New(apperr.KindConfiguration, "llm.NewGeminiClient", "gemini api key is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "llm.NewGeminiClient", err)
	}
	return newGeminiClient(client.Models, logger), nil
}

func newGeminiClient(models contentGenerator, logger *slog.Logger) *GeminiClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiClient{models: models, logger: logger.With("component", "gemini")}
}

func (g *GeminiClient) Generate(ctx context.Context, document string, p Params) (string, error) {
	const op = "llm.Gemini"
	model := p.Model
	if model == "" {
		model = defaultGeminiModel
	}

	cfg := &genai.GenerateContentConfig{}
	if p.Temperature > 0 {
		cfg.Temperature = genai.Ptr(p.Temperature)
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := g.models.GenerateContent(ctx, model, genai.Text(document), cfg)
	if err != nil {
		return "", classifyGemini(op, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", apperr.New(apperr.KindUpstream, op, "empty response")
	}
	g.logger.Debug("model call complete", "model", model, "chars", len(text))
	return text, nil
}

func classifyGemini(op string, err error) error {
	if t := classifyTransport(op, err); t != nil {
		return t
	}
	code, msg, ok := apiError(err)
	if !ok {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.Wrapf(apperr.KindConfiguration, op, err, "credential rejected")
	default:
		return apperr.Wrapf(apperr.KindUpstream, op, err, "status %d: %s", code, msg)
	}
}

// apiError unpacks genai.APIError, which the SDK returns by value.
func apiError(err error) (int, string, bool) {
	var byValue genai.APIError
	if errors.As(err, &byValue) {
		return byValue.Code, byValue.Message, true
	}
	var byPointer *genai.APIError
	if errors.As(err, &byPointer) && byPointer != nil {
		return byPointer.Code, byPointer.Message, true
	}
	return 0, fmt.Sprint(err), false
}
