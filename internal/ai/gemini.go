package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

var errEmptyModelResponse = errors.New("ai: model response was empty")

// GeminiConfig describes the connection to the Gemini API.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiGenerator is a Generator backed by the Gemini API. Construct one
// per process; the underlying client is safe for concurrent use.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator constructs the shared Gemini client.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: gemini api key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ai: gemini model required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate performs a single content-generation call. No retries.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if len(req.Audio) > 0 {
		parts = append(parts, genai.NewPartFromBytes(req.Audio, req.AudioMIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var generateConfig *genai.GenerateContentConfig
	if req.WantJSON {
		generateConfig = &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, generateConfig)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", errEmptyModelResponse
	}
	return text, nil
}
