package client

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy bounds how often a call is attempted. The wait before attempt
// n+1 is n times Backoff.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy makes three attempts one and two seconds apart
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: time.Second}

// httpClient wraps base with p's retries. The last response is always handed
// back so the caller can turn it into an APIError.
func (p RetryPolicy) httpClient(base *http.Client, onRetry func(req *http.Request, attempt int)) *retryablehttp.Client {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	return &retryablehttp.Client{
		HTTPClient:   base,
		RetryMax:     attempts - 1,
		RetryWaitMin: p.Backoff,
		RetryWaitMax: time.Duration(attempts) * p.Backoff,
		CheckRetry:   checkRetry,
		Backoff:      linearBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, retry int) {
			if retry > 0 && onRetry != nil {
				onRetry(req, retry+1)
			}
		},
	}
}

func linearBackoff(base, _ time.Duration, retry int, _ *http.Response) time.Duration {
	return time.Duration(retry+1) * base
}

// checkRetry retries transport failures and 5xx responses. Queued responses
// are final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err != nil || ctx.Err() != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.Header.Get(HeaderOfflineQueued) != "" {
		return false, nil
	}
	return retryableStatus(resp.StatusCode), nil
}

func retryableStatus(status int) bool {
	return status >= 500
}
