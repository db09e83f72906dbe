package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskError_UnwrapsToSentinel(t *testing.T) {
	err := NewTaskError("src_a.pdf", "fetch", fmt.Errorf("%w: HTTP 404", ErrPermanentFailure))

	assert.True(t, errors.Is(err, ErrPermanentFailure))
	assert.Equal(t, "fetch src_a.pdf: permanent failure: HTTP 404", err.Error())

	var te *TaskError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, "src_a.pdf", te.Key)
}
