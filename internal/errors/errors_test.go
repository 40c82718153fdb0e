package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := errors.New("disk read failed")

	// When: wrapping it
	err := New(ErrCodeIndexNotAvailable, "index artifact unreadable", cause)

	// Then: the chain reaches the cause
	require.NotNil(t, err)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestEngineError_Error_Format(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{"not available", ErrCodeIndexNotAvailable, "index missing", "[ERR_207_INDEX_NOT_AVAILABLE] index missing"},
		{"exists", ErrCodeIndexExists, "index docs exists", "[ERR_407_INDEX_EXISTS] index docs exists"},
		{"code only", ErrCodeNoChunks, "", "ERR_506_NO_CHUNKS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, New(tt.code, tt.message, nil).Error())
		})
	}
}

func TestEngineError_Is_MatchesSentinelThroughWrapping(t *testing.T) {
	// Given: an engine error wrapped by fmt.Errorf
	err := fmt.Errorf("open retriever: %w", New(ErrCodeModelMismatch, "model differs", nil))

	// Then: sentinel comparison matches by code only
	assert.True(t, errors.Is(err, ErrModelMismatch))
	assert.False(t, errors.Is(err, ErrIndexExists))
}

func TestEngineError_DerivedFields(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidIndexName, CategoryValidation, SeverityError, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, SeverityFatal, false},
		{ErrCodeBuildLocked, CategoryInternal, SeverityWarning, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode_AndIsFatal(t *testing.T) {
	err := fmt.Errorf("build: %w", New(ErrCodeNoChunks, "no chunks", nil))

	assert.Equal(t, ErrCodeNoChunks, GetCode(err))
	assert.True(t, IsFatal(err))
	assert.Equal(t, "", GetCode(errors.New("plain")))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestFormatForCLI_IncludesHintAndDetails(t *testing.T) {
	// Given: an error with details and a suggestion
	err := New(ErrCodeIndexNotAvailable, "index \"docs\" is not available", nil).
		WithDetail("index", "docs").
		WithSuggestion("run 'docindex rebuild docs <paths>'")

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: every part is present
	assert.Contains(t, out, "Error: index \"docs\" is not available")
	assert.Contains(t, out, "index: docs")
	assert.Contains(t, out, "Hint: run 'docindex rebuild docs <paths>'")
	assert.Contains(t, out, "Code: ERR_207_INDEX_NOT_AVAILABLE")
}

func TestFormatForCLI_PlainError(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, "Error: boom")
	assert.Contains(t, out, ErrCodeInternal)
	assert.Equal(t, "", FormatForCLI(nil))
}
