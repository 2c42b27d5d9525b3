package translator

import (
	"context"

	"catchup-relay/internal/utils/text"
)

// NoOp is a translator that returns the original text without calling any
// AI provider. Useful for testing and for running the relay without API keys.
type NoOp struct{}

// NewNoOp creates a new NoOp translator.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Name identifies this provider in circuit breaker and recovery records.
func (n *NoOp) Name() string {
	return "noop"
}

// Translate returns the original text truncated to the first 500 characters
// to match the expected digest format. The language parameter is ignored.
func (n *NoOp) Translate(_ context.Context, input, _ string) (string, error) {
	const maxLength = 500
	return text.TruncateRunes(input, maxLength, "..."), nil
}
