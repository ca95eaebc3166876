package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationError(t *testing.T) {
	err := fmt.Errorf("building client: %w", Configuration("openai", ErrMissingCredential))

	assert.True(t, IsConfiguration(err))
	assert.False(t, IsProtocol(err))
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Contains(t, err.Error(), "configuration error in openai: missing credential")
}

func TestProtocolError(t *testing.T) {
	err := Protocol("", fmt.Errorf("%w: got 2, want 1", ErrChoiceCountMismatch))

	assert.True(t, IsProtocol(err))
	assert.False(t, IsConfiguration(err))
	assert.True(t, errors.Is(err, ErrChoiceCountMismatch))
	assert.Equal(t, "protocol error: choice count changed mid-stream: got 2, want 1", err.Error())
}
