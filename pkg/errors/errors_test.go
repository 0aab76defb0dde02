package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewError(t *testing.T) {
	err := New("something broke")

	assert.Equal(t, "something broke", err.Error())
	assert.True(t, strings.HasPrefix(err.Location(), "errors_test.go:"))
	assert.Empty(t, err.Code)
}

func TestNewErrorRendersMessageOnce(t *testing.T) {
	err := New("something broke")
	assert.Equal(t, "something broke", err.Error())

	// Cloning through WithField keeps the same rendering
	assert.Equal(t, "something broke", err.WithField("stage", "decode").Error())
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "saving signature")

	assert.Equal(t, "saving signature: disk full", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing happened"))
}

func TestWithFieldDoesNotMutateOriginal(t *testing.T) {
	base := New("base")
	derived := base.WithField("key", "value")

	assert.Empty(t, base.GetFields())
	assert.Equal(t, "value", derived.GetFields()["key"])
}

func TestWithFields(t *testing.T) {
	err := New("base").WithFields(map[string]interface{}{
		"a": 1,
		"b": "two",
	})

	fields := err.GetFields()
	assert.Equal(t, 1, fields["a"])
	assert.Equal(t, "two", fields["b"])
}

func TestWithCode(t *testing.T) {
	err := New("base").WithCode("TEST_CODE")
	assert.Equal(t, "TEST_CODE", err.Code)
	assert.Equal(t, "TEST_CODE", GetErrorCode(err))
}

func TestGetErrorCodeThroughWrapping(t *testing.T) {
	inner := NewInvalidAudio("bad header")
	outer := fmt.Errorf("while decoding: %w", inner)

	assert.Equal(t, "INVALID_AUDIO", GetErrorCode(outer))
	assert.Empty(t, GetErrorCode(errors.New("plain")))
}

func TestDomainConstructors(t *testing.T) {
	invalid := NewInvalidAudio("zero samples")
	assert.True(t, IsErrorType(invalid, ErrInvalidAudio))
	assert.Contains(t, invalid.Error(), "zero samples")

	insufficient := NewInsufficientSamples(2, 3)
	assert.True(t, IsErrorType(insufficient, ErrInsufficientSamples))
	assert.Equal(t, 2, insufficient.GetFields()["samples"])
	assert.Equal(t, 3, insufficient.GetFields()["required"])

	notFound := NewSignatureNotFound("abc-123")
	assert.True(t, IsErrorType(notFound, ErrSignatureNotFound))
	assert.Contains(t, notFound.Error(), "abc-123")

	extraction := NewExtractionFailed("formants", nil)
	assert.True(t, IsErrorType(extraction, ErrExtractionFailed))
	assert.Equal(t, "formants", extraction.GetFields()["feature"])
}

func TestExtractionFailedKeepsCause(t *testing.T) {
	cause := errors.New("matrix is singular")
	err := NewExtractionFailed("lpc", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "lpc")
}

func TestIsErrorTypeThroughWrap(t *testing.T) {
	err := Wrap(NewInvalidAudio("truncated"), "preprocessing")
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrInvalidAudio))
	assert.False(t, IsErrorType(err, ErrSignatureNotFound))
}

func TestNilReceiverSafety(t *testing.T) {
	var err *Error

	assert.Equal(t, "", err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "", err.Location())
	assert.Nil(t, err.GetFields())
	assert.Nil(t, err.WithField("k", "v"))
	assert.Nil(t, err.WithCode("X"))
}
