package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
)

type stubGenerator struct {
	response string
	err      error
	requests []GenerateRequest
}

func (s *stubGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestClient(t *testing.T, generator Generator) *Client {
	t.Helper()
	client, err := NewClient(generator, nil)
	if err != nil {
		t.Fatalf("unexpected client construction error: %v", err)
	}
	return client
}

func testStyle(t *testing.T) styles.WritingStyle {
	t.Helper()
	style, ok := styles.ByID("cut-fluff")
	if !ok {
		t.Fatalf("expected cut-fluff style in catalog")
	}
	return style
}

func TestTranscribeReturnsTrimmedTranscript(t *testing.T) {
	generator := &stubGenerator{response: "  hello from the walk  "}
	client := newTestClient(t, generator)

	transcript, err := client.Transcribe(context.Background(), "user-1", []byte{1, 2, 3}, "audio/webm")
	if err != nil {
		t.Fatalf("unexpected transcription error: %v", err)
	}
	if transcript != "hello from the walk" {
		t.Fatalf("unexpected transcript: %q", transcript)
	}
	if len(generator.requests) != 1 {
		t.Fatalf("expected a single model call, got %d", len(generator.requests))
	}
	if generator.requests[0].AudioMIME != "audio/webm" {
		t.Fatalf("expected audio mime to be forwarded, got %q", generator.requests[0].AudioMIME)
	}
	if generator.requests[0].WantJSON {
		t.Fatalf("transcription must not request JSON mode")
	}
}

func TestTranscribeFailsOnEmptyResponse(t *testing.T) {
	client := newTestClient(t, &stubGenerator{response: "   "})

	if _, err := client.Transcribe(context.Background(), "user-1", []byte{1}, "audio/webm"); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestTranscribeFailsOnGeneratorError(t *testing.T) {
	client := newTestClient(t, &stubGenerator{err: errors.New("network down")})

	if _, err := client.Transcribe(context.Background(), "user-1", []byte{1}, "audio/webm"); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestRewriteParsesValidJSON(t *testing.T) {
	generator := &stubGenerator{response: `{"title":"Morning Plan","content":"Do the thing.","transcriptSummary":"A plan."}`}
	client := newTestClient(t, generator)

	result, err := client.Rewrite(context.Background(), "user-1", "uh so I should do the thing", testStyle(t))
	if err != nil {
		t.Fatalf("unexpected rewrite error: %v", err)
	}
	if result.Title != "Morning Plan" {
		t.Fatalf("unexpected title: %q", result.Title)
	}
	if result.Content != "Do the thing." {
		t.Fatalf("unexpected content: %q", result.Content)
	}
	if result.TranscriptSummary != "A plan." {
		t.Fatalf("unexpected summary: %q", result.TranscriptSummary)
	}
	if !generator.requests[0].WantJSON {
		t.Fatalf("rewrite must request JSON mode")
	}
}

func TestRewriteFallsBackOnMalformedJSON(t *testing.T) {
	raw := "this is not json at all"
	client := newTestClient(t, &stubGenerator{response: raw})
	style := testStyle(t)

	result, err := client.Rewrite(context.Background(), "user-1", "original transcript", style)
	if err != nil {
		t.Fatalf("fallback must not surface an error, got %v", err)
	}
	if result.Content != raw {
		t.Fatalf("expected raw model text as content, got %q", result.Content)
	}
	if result.Title != "WalkNote - "+style.Name {
		t.Fatalf("unexpected fallback title: %q", result.Title)
	}
	if result.TranscriptSummary != "original transcript" {
		t.Fatalf("unexpected fallback summary: %q", result.TranscriptSummary)
	}
}

func TestRewriteDefaultsEmptyFieldsIndividually(t *testing.T) {
	client := newTestClient(t, &stubGenerator{response: `{"title":"","content":"  ","transcriptSummary":""}`})
	style := testStyle(t)
	transcript := strings.Repeat("y", 200)

	result, err := client.Rewrite(context.Background(), "user-1", transcript, style)
	if err != nil {
		t.Fatalf("unexpected rewrite error: %v", err)
	}
	if result.Title != "WalkNote - "+style.Name {
		t.Fatalf("unexpected fallback title: %q", result.Title)
	}
	if result.Content != transcript {
		t.Fatalf("expected transcript as content fallback")
	}
	if len([]rune(result.TranscriptSummary)) != summaryMaxRunes {
		t.Fatalf("expected summary truncated to %d runes, got %d", summaryMaxRunes, len([]rune(result.TranscriptSummary)))
	}
}

func TestRewriteFailsOnGeneratorError(t *testing.T) {
	client := newTestClient(t, &stubGenerator{err: errors.New("quota exhausted upstream")})

	if _, err := client.Rewrite(context.Background(), "user-1", "transcript", testStyle(t)); !errors.Is(err, ErrRewrite) {
		t.Fatalf("expected rewrite error, got %v", err)
	}
}
