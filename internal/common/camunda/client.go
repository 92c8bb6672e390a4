// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"assetid-workers/internal/common/config"
	"assetid-workers/internal/common/errors"
)

// Client wraps the Zeebe gRPC client used by the asset ID workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds retries of gateway commands.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// ConfigFromSettings builds a client configuration from the camunda config section.
func ConfigFromSettings(cfg config.CamundaConfig) *ClientConfig {
	requestTimeout := 30 * time.Second
	if cfg.RequestTimeout > 0 {
		requestTimeout = time.Duration(cfg.RequestTimeout) * time.Millisecond
	}
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.Plaintext,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClient connects to the gateway and verifies the topology before returning.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.GatewayAddress == "" {
		return nil, fmt.Errorf("zeebe gateway address is required")
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()
	if _, err := zc.NewTopologyCommand().Send(ctx); err != nil {
		zc.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}

	return &Client{client: zc, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// ExecuteWithRetry runs fn with exponential backoff while the gateway reports transient failures.
// The final error is a StandardError.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation string, fn func(context.Context) error) error {
	rc := c.config.RetryConfig
	if rc == nil {
		rc = DefaultRetryConfig
	}

	delay := rc.BaseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == rc.MaxRetries || !isTransient(classify(err)) {
			return mapZeebeError(err, operation, attempt+1)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NewTimeoutError("zeebe", fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err()))
		}
		if delay *= 2; delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
	}
}

// classify reads the gRPC status of a gateway error. Errors that carry no status (wrapped dial
// errors, plain context errors) are classified from their message.
func classify(err error) codes.Code {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return st.Code()
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return codes.DeadlineExceeded
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "unavailable"), strings.Contains(msg, "broken pipe"):
		return codes.Unavailable
	case strings.Contains(msg, "not found"):
		return codes.NotFound
	case strings.Contains(msg, "already exists"):
		return codes.AlreadyExists
	}
	return codes.Unknown
}

func isTransient(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	}
	return false
}

func mapZeebeError(err error, operation string, attempts int) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", operation, attempts, err)

	switch classify(err) {
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		// A completed or cancelled job no longer exists on the broker.
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case codes.AlreadyExists, codes.FailedPrecondition:
		return errors.NewBusinessRuleError(wrapped.Error(), "job state does not allow "+operation)
	}
	return errors.NewExternalServiceError("zeebe", wrapped)
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
