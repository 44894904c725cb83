// Package ai wraps the generative-model calls the note pipeline depends
// on: verbatim audio transcription and style-driven rewriting. Each call
// is a single attempt; rewrite responses that fail to parse are degraded
// into a usable result rather than surfaced as errors.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
)

const (
	transcribePrompt = "transcribe word by word."
	summaryMaxRunes  = 160
	previewMaxRunes  = 80
)

var (
	// ErrTranscription indicates the transcription call failed or returned nothing usable.
	ErrTranscription = errors.New("ai: transcription failed")
	// ErrRewrite indicates the rewrite call itself failed. Malformed model
	// JSON is not a rewrite error; it is absorbed by the fallback result.
	ErrRewrite = errors.New("ai: rewrite failed")
)

// GenerateRequest describes one generative-model invocation.
type GenerateRequest struct {
	Prompt    string
	Audio     []byte
	AudioMIME string
	WantJSON  bool
}

// Generator performs a single model call and returns the raw text output.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// RewriteResult is the structured outcome of a rewrite call.
type RewriteResult struct {
	Title             string
	Content           string
	TranscriptSummary string
}

// Client exposes the transcribe and rewrite operations.
type Client struct {
	generator Generator
	logger    *zap.Logger
}

// NewClient wraps a Generator with logging.
func NewClient(generator Generator, logger *zap.Logger) (*Client, error) {
	if generator == nil {
		return nil, errors.New("ai: generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{generator: generator, logger: logger}, nil
}

// Transcribe sends audio inline to the model and returns the verbatim
// transcript. An empty or whitespace-only response is a failure.
func (c *Client) Transcribe(ctx context.Context, userID string, audio []byte, mimeType string) (string, error) {
	c.logger.Info("submitting audio for transcription",
		zap.String("code", "ai.transcription.start"),
		zap.String("user_id", userID),
		zap.String("mime_type", mimeType),
	)

	raw, err := c.generator.Generate(ctx, GenerateRequest{
		Prompt:    transcribePrompt,
		Audio:     audio,
		AudioMIME: mimeType,
	})
	if err != nil {
		c.logger.Error("transcription failed",
			zap.String("code", "ai.transcription.error"),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	transcript := strings.TrimSpace(raw)
	if transcript == "" {
		c.logger.Error("transcription failed",
			zap.String("code", "ai.transcription.error"),
			zap.String("user_id", userID),
		)
		return "", fmt.Errorf("%w: response was empty", ErrTranscription)
	}

	c.logger.Info("transcription received",
		zap.String("code", "ai.transcription.success"),
		zap.String("user_id", userID),
		zap.String("transcript_preview", truncateRunes(transcript, previewMaxRunes)),
	)
	return transcript, nil
}

type rewritePayload struct {
	Title             string `json:"title"`
	Content           string `json:"content"`
	TranscriptSummary string `json:"transcriptSummary"`
}

// Rewrite sends transcript plus style prompt to the model and parses the
// JSON response. Parse failures and individually empty fields fall back to
// defaults derived from the style and transcript; only a failed model call
// returns an error.
func (c *Client) Rewrite(ctx context.Context, userID, transcript string, style styles.WritingStyle) (RewriteResult, error) {
	c.logger.Info("submitting transcript for rewrite",
		zap.String("code", "ai.rewrite.start"),
		zap.String("user_id", userID),
		zap.String("style_id", style.ID),
	)

	raw, err := c.generator.Generate(ctx, GenerateRequest{
		Prompt:   buildRewritePrompt(transcript, style),
		WantJSON: true,
	})
	if err != nil {
		c.logger.Error("rewrite failed",
			zap.String("code", "ai.rewrite.error"),
			zap.String("user_id", userID),
			zap.String("style_id", style.ID),
			zap.Error(err),
		)
		return RewriteResult{}, fmt.Errorf("%w: %v", ErrRewrite, err)
	}

	raw = strings.TrimSpace(raw)
	var parsed rewritePayload
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		c.logger.Warn("failed to parse rewrite response, falling back to raw text",
			zap.String("code", "ai.rewrite.json_fallback"),
			zap.String("user_id", userID),
			zap.String("style_id", style.ID),
			zap.String("parse_error", jsonErr.Error()),
		)
		parsed = rewritePayload{Content: raw}
	}

	result := RewriteResult{
		Title:             strings.TrimSpace(parsed.Title),
		Content:           strings.TrimSpace(parsed.Content),
		TranscriptSummary: strings.TrimSpace(parsed.TranscriptSummary),
	}
	if result.Title == "" {
		result.Title = fallbackTitle(style)
	}
	if result.Content == "" {
		result.Content = transcript
	}
	if result.TranscriptSummary == "" {
		result.TranscriptSummary = truncateRunes(transcript, summaryMaxRunes)
	}

	c.logger.Info("rewrite completed",
		zap.String("code", "ai.rewrite.success"),
		zap.String("user_id", userID),
		zap.String("style_id", style.ID),
		zap.String("title_preview", truncateRunes(result.Title, 60)),
	)
	return result, nil
}

func buildRewritePrompt(transcript string, style styles.WritingStyle) string {
	lines := []string{
		"Rewrite the following transcript in the requested style.",
		"Return valid JSON that matches this shape:",
		`{"title": string, "content": string, "transcriptSummary": string}`,
		"Rules:",
		"- Title should be short and descriptive (<= 10 words).",
		"- Content should be well formatted with paragraphs separated by blank lines where appropriate.",
		"- transcriptSummary must be a single sentence summarizing the original transcript.",
		"Style definition: " + style.Description,
		"Style prompt: " + style.Prompt,
		"Transcript:",
		transcript,
	}
	return strings.Join(lines, "\n")
}

func fallbackTitle(style styles.WritingStyle) string {
	return "WalkNote - " + style.Name
}

func truncateRunes(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
