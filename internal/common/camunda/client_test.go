package camunda

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/errors"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	attempts := 0
	err := c.ExecuteWithRetry(context.Background(), "complete-job", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return status.Error(codes.Unavailable, "gateway restarting")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteWithRetry_StopsOnPermanentError(t *testing.T) {
	c := testClient()
	attempts := 0
	err := c.ExecuteWithRetry(context.Background(), "complete-job", func(context.Context) error {
		attempts++
		return status.Error(codes.NotFound, "job with key 7 not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrorCode("RESOURCE_NOT_FOUND")))
}

func TestExecuteWithRetry_ExhaustsRetries(t *testing.T) {
	c := testClient()
	attempts := 0
	err := c.ExecuteWithRetry(context.Background(), "complete-job", func(context.Context) error {
		attempts++
		return fmt.Errorf("context deadline exceeded")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errors.HasCode(err, errors.ErrorCode("TIMEOUT_ERROR")))
}

func TestExecuteWithRetry_ContextCancelled(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ExecuteWithRetry(ctx, "complete-job", func(context.Context) error {
		return status.Error(codes.Unavailable, "down")
	})
	assert.True(t, errors.HasCode(err, errors.ErrorCode("TIMEOUT_ERROR")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err       error
		want      codes.Code
		transient bool
	}{
		{status.Error(codes.ResourceExhausted, "backpressure"), codes.ResourceExhausted, true},
		{status.Error(codes.FailedPrecondition, "job is not activated"), codes.FailedPrecondition, false},
		{fmt.Errorf("dial tcp: connection refused"), codes.Unavailable, true},
		{fmt.Errorf("Deadline Exceeded"), codes.DeadlineExceeded, true},
		{fmt.Errorf("invalid argument"), codes.Unknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.transient, isTransient(got))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	err := mapZeebeError(status.Error(codes.FailedPrecondition, "job is not activated"), "complete-job", 1)
	assert.True(t, errors.HasCode(err, errors.ErrorCode("BUSINESS_RULE_VIOLATION")))

	err = mapZeebeError(fmt.Errorf("boom"), "complete-job", 4)
	std, ok := errors.AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorCode("EXTERNAL_SERVICE_ERROR"), std.Code)
	assert.Contains(t, std.Details, "after 4 attempt(s)")
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(config.CamundaConfig{BrokerAddress: "zeebe:26500", Plaintext: true, RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.True(t, cfg.UsePlaintextConnection)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}

func TestNewClient_RequiresAddress(t *testing.T) {
	_, err := NewClient(&ClientConfig{})
	assert.Error(t, err)
}
