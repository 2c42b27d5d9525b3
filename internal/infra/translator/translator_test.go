package translator_test

import (
	"context"
	"strings"
	"testing"

	"catchup-relay/internal/utils/text"

	"catchup-relay/internal/infra/translator"
)

func TestNewClaude(t *testing.T) {
	clearTranslatorEnv(t)

	claude := translator.NewClaude("test-api-key")
	if claude == nil {
		t.Fatal("NewClaude() returned nil")
	}
	if claude.Name() != "anthropic" {
		t.Errorf("Expected Name()=anthropic, got %s", claude.Name())
	}
}

func TestNewOpenAI(t *testing.T) {
	clearTranslatorEnv(t)

	client := translator.NewOpenAI("test-api-key")
	if client == nil {
		t.Fatal("NewOpenAI() returned nil")
	}
	if client.Name() != "openai" {
		t.Errorf("Expected Name()=openai, got %s", client.Name())
	}
}

func TestNoOp_PassesShortTextThrough(t *testing.T) {
	noop := translator.NewNoOp()

	input := "A short release note."
	got, err := noop.Translate(context.Background(), input, "ja")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if got != input {
		t.Errorf("Expected passthrough %q, got %q", input, got)
	}
}

func TestNoOp_TruncatesLongText(t *testing.T) {
	noop := translator.NewNoOp()

	input := strings.Repeat("あ", 600)
	got, err := noop.Translate(context.Background(), input, "en")
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("Expected truncated text to end with ellipsis")
	}
	if text.CountRunes(got) > 503 {
		t.Errorf("Expected at most 503 runes (500 + ellipsis), got %d", text.CountRunes(got))
	}
}

func TestNoOp_Name(t *testing.T) {
	noop := translator.NewNoOp()
	if noop.Name() != "noop" {
		t.Errorf("Expected Name()=noop, got %s", noop.Name())
	}
}
