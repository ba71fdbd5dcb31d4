package gateway_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hamta/tarabar/pkg/gateway"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := gateway.NewError("deka", gateway.KindIntegration, "request failed")
	assert.Equal(t, "deka integration error: request failed", err.Error())
}

func TestError_Error_WithCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := gateway.NewError("deka", gateway.KindIntegration, "request failed").WithCause(cause)

	assert.Equal(t, "deka integration error: request failed: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Is_MatchesKind(t *testing.T) {
	err := gateway.NewError("deka", gateway.KindAuthentication, "token rejected")

	assert.True(t, errors.Is(err, gateway.NewError("", gateway.KindAuthentication, "")))
	assert.False(t, errors.Is(err, gateway.NewError("", gateway.KindValidation, "")))
}

func TestError_Is_WrappedChain(t *testing.T) {
	inner := gateway.NewError("deka", gateway.KindValidation, "receiver mobile format is invalid")
	wrapped := fmt.Errorf("create shipment: %w", inner)

	assert.True(t, errors.Is(wrapped, gateway.NewError("", gateway.KindValidation, "")))
}

func TestError_WithStatusCode(t *testing.T) {
	err := gateway.NewError("deka", gateway.KindIntegration, "bad gateway").WithStatusCode(502)
	assert.Equal(t, 502, err.StatusCode)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"integration", gateway.NewError("deka", gateway.KindIntegration, "timeout"), true},
		{"authentication", gateway.NewError("deka", gateway.KindAuthentication, "empty token received"), true},
		{"validation", gateway.NewError("deka", gateway.KindValidation, "weight is required"), false},
		{"configuration", gateway.NewError("deka", gateway.KindConfiguration, "missing base url"), false},
		{"wrapped", fmt.Errorf("op: %w", gateway.NewError("deka", gateway.KindIntegration, "timeout")), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gateway.IsRetryable(tt.err))
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, gateway.IsValidation(gateway.NewError("deka", gateway.KindValidation, "contents too long")))
	assert.False(t, gateway.IsValidation(gateway.NewError("deka", gateway.KindIntegration, "timeout")))
	assert.False(t, gateway.IsValidation(errors.New("boom")))
}
