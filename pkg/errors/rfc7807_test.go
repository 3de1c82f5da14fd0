package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivedErrorsLeaveSentinelUntouched(t *testing.T) {
	before := *ErrStalePrice

	explained := ErrStalePrice.Explain("quote is %ds old", 120)
	wrapped := ErrStalePrice.Wrap(stderrors.New("hermes timeout"))

	assert.Equal(t, before, *ErrStalePrice)
	assert.Equal(t, "[StalePrice] quote is 120s old", explained.Error())
	assert.Equal(t, "[StalePrice] price quote is stale (hermes timeout)", wrapped.Error())
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("deposit: %w", ErrHealthFactorTooLow.Explain("factor 1"))

	assert.True(t, Is(err, ErrHealthFactorTooLow))
	assert.False(t, Is(err, ErrStalePrice))
	assert.Equal(t, KindHealthFactorTooLow, KindOf(err))
	assert.Empty(t, KindOf(stderrors.New("plain")))
}

func TestToProblemDetails(t *testing.T) {
	problem := ToProblemDetails(ErrPositionNotFound, "/api/v1/positions/me")
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.Equal(t, KindPositionNotFound, problem.Kind)
	assert.Equal(t, problemBase+KindPositionNotFound, problem.Type)

	internal := ToProblemDetails(stderrors.New("connection refused"), "/x")
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.NotContains(t, internal.Detail, "connection refused")
}
