package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrapped(t *testing.T) {
	base := New(NotFound, "Transaction not found")
	wrapped := fmt.Errorf("ledger: %w", base)

	assert.Equal(t, NotFound, CodeOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "Transaction not found", Message(wrapped))
}

func TestCodeOfPlainErrorIsInternal(t *testing.T) {
	err := errors.New("connection reset")
	assert.Equal(t, Internal, CodeOf(err))
	assert.Equal(t, "Internal server error", Message(err))
	assert.Equal(t, Code(""), CodeOf(nil))
}

func TestWithStepKeepsOriginal(t *testing.T) {
	base := New(InsufficientStock, "Out of stock")
	tagged := base.WithStep("decrement_stock")

	assert.Equal(t, "", base.Step)
	assert.Equal(t, "decrement_stock", StepOf(tagged))
	assert.Contains(t, tagged.Error(), "step=decrement_stock")
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(OrderCreationFailed, cause, "Error creating order")
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		InvalidArgument:     http.StatusBadRequest,
		InsufficientStock:   http.StatusBadRequest,
		NotFound:            http.StatusNotFound,
		InvalidState:        http.StatusConflict,
		Conflict:            http.StatusConflict,
		Unauthenticated:     http.StatusUnauthorized,
		Forbidden:           http.StatusForbidden,
		RateLimited:         http.StatusTooManyRequests,
		OrderCreationFailed: http.StatusInternalServerError,
		PartialOrderFailure: http.StatusInternalServerError,
		Internal:            http.StatusInternalServerError,
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, HTTPStatus(code))
		})
	}
}
