package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindErrorIsClassification(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(ErrRpcReadFailed, cause, "balanceOf(chainA)")

	assert.True(t, Is(err, ErrRpcReadFailed))
	assert.False(t, Is(err, ErrRpcWriteFailed))
	assert.ErrorIs(t, err, cause)
}

func TestErrfHasNoWrappedCause(t *testing.T) {
	err := Errf(ErrMissingDeployment, "no pool for %s", "chainA")
	assert.True(t, Is(err, ErrMissingDeployment))
	assert.Nil(t, err.(*KindError).Unwrap())
}
