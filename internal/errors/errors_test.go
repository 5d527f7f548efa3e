package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("fetching cycles: %w", &APIError{Status: 429, Body: "rate limited"})
	assert.True(t, errors.Is(err, ErrAPIRequestFailed))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "status 429")
}

func TestWrapf(t *testing.T) {
	base := errors.New("boom")
	wrapped := Wrapf(base, "doing thing %d", 7)
	assert.EqualError(t, wrapped, "doing thing 7: boom")
	assert.True(t, errors.Is(wrapped, base))

	assert.NoError(t, Wrapf(nil, "ignored"))
}
