package handlers

import (
	"net/http"
	"testing"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdempotencyKey(t *testing.T) {
	key, err := resolveIdempotencyKey("key-1", "")
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)

	// Deprecated body placement still accepted on its own.
	key, err = resolveIdempotencyKey("", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)

	// Both present and equal is fine.
	key, err = resolveIdempotencyKey("key-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, "key-1", key)
}

func TestResolveIdempotencyKey_MissingEverywhere(t *testing.T) {
	_, err := resolveIdempotencyKey("", "")
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeIdempotencyKeyAbsent, svcErr.Code)
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus)
}

func TestResolveIdempotencyKey_MismatchRejected(t *testing.T) {
	_, err := resolveIdempotencyKey("key-1", "key-2")
	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeValidation, svcErr.Code)
}
