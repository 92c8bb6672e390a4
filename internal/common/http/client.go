// internal/common/http/client.go
package http

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures an outbound JSON client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Headers    map[string]string
}

// NewClient builds a resty client for JSON APIs. Transport errors, 429 and 5xx responses are
// retried with backoff up to RetryCount times.
func NewClient(opts Options) *resty.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}
	return client
}
