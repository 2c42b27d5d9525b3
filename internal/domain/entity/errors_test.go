package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		field   string
		message string
		want    string
	}{
		{"link", "invalid format", "validation error on field 'link': invalid format"},
		{"title", "title is required", "validation error on field 'title': title is required"},
		{"", "test message", "validation error on field '': test message"},
	}

	for _, tt := range tests {
		err := &ValidationError{Field: tt.field, Message: tt.message}
		assert.Equal(t, tt.want, err.Error())
	}
}

func TestValidationError_MatchesSentinel(t *testing.T) {
	var err error = &ValidationError{Field: "title", Message: "title is required"}

	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.False(t, errors.Is(err, ErrDuplicate))

	// ラップしても届く
	wrapped := fmt.Errorf("reject entry: %w", err)
	assert.True(t, errors.Is(wrapped, ErrValidationFailed))

	var verr *ValidationError
	if assert.True(t, errors.As(wrapped, &verr)) {
		assert.Equal(t, "title", verr.Field)
		assert.Equal(t, "title is required", verr.Message)
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	assert.Equal(t, "entity already exists", ErrDuplicate.Error())
	assert.Equal(t, "validation failed", ErrValidationFailed.Error())

	assert.False(t, errors.Is(ErrDuplicate, ErrValidationFailed))
	assert.False(t, errors.Is(ErrValidationFailed, ErrDuplicate))
}

func TestErrDuplicate_WrappedDetection(t *testing.T) {
	// リポジトリはドライバの一意制約違反を ErrDuplicate にラップして返す
	wrapped := fmt.Errorf("record delivery: %w", ErrDuplicate)
	assert.True(t, errors.Is(wrapped, ErrDuplicate))
	assert.False(t, errors.Is(wrapped, ErrValidationFailed))
}
