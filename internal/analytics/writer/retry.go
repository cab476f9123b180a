package writer

import (
	"context"
	"errors"
	"net/http"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy bounds the exponential backoff around one streaming insert.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// do runs fn until it succeeds, fails permanently or runs out of attempts.
// The last error is returned unwrapped.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	wait := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= p.MaxAttempts || !isRetryableBigQueryError(err) {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, p.MaximumBackoff)
	}
}

var retryableHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// isRetryableBigQueryError treats per-row insert failures as retryable only
// when every row failed for a transient reason; one bad row means a schema
// or payload problem that a retry cannot fix.
func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var putErr cbigquery.PutMultiError
	if errors.As(err, &putErr) {
		if len(putErr) == 0 {
			return false
		}
		for i := range putErr {
			if !allRetryable(putErr[i].Errors) {
				return false
			}
		}
		return true
	}
	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		return allRetryable(rowErr.Errors)
	}
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(multi)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return retryableGRPC[st.Code()]
	}
	return false
}

func allRetryable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !isRetryableBigQueryError(err) {
			return false
		}
	}
	return true
}
