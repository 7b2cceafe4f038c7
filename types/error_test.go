package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("connection refused")

	backendErr := BackendError(cause)
	assert.Equal(t, ErrBackendUnavailable, GetErrorCode(backendErr))
	assert.True(t, IsRetryable(backendErr))
	assert.ErrorIs(t, backendErr, cause)

	storageErr := StorageError("disk", cause)
	assert.Equal(t, ErrStorageUnavailable, GetErrorCode(storageErr))
	assert.Contains(t, storageErr.Error(), "disk")

	configErr := ConfigError("bad value")
	assert.Equal(t, ErrConfigInvalid, GetErrorCode(configErr))
	assert.False(t, IsRetryable(configErr))
}

func TestGetErrorCode_WrappedAndForeign(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ConfigError("inner"))
	assert.Equal(t, ErrConfigInvalid, GetErrorCode(wrapped))

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestVectorCodec(t *testing.T) {
	v := Vector{1.5, -0.25, 0, 3.14159}

	encoded := EncodeVector(v)
	assert.EqualValues(t, VectorBytes(v), len(encoded))
	assert.Equal(t, v, DecodeVector(encoded))
	assert.Empty(t, DecodeVector(nil))
}
