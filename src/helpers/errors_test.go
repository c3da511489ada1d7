package helpers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTypes(t *testing.T) {
	cause := errors.New("connection reset")

	err := NewTransportError(cause, "read from %s", "BTC-USD")
	assert.EqualError(t, err, "read from BTC-USD: connection reset")
	assert.ErrorIs(t, err, cause)

	var transport *TransportError
	assert.True(t, errors.As(err, &transport))

	var parse *ParseError
	assert.False(t, errors.As(err, &parse))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, IsDuplicate(ErrDuplicate))
	assert.True(t, IsDuplicate(fmt.Errorf("insert aggregate: %w", ErrDuplicate)))
	assert.False(t, IsDuplicate(NewDatabaseError(errors.New("disk full"), "insert aggregate")))
	assert.False(t, IsDuplicate(nil))
}
