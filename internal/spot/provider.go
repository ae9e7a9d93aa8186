package spot

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// Provider fetches the official opening price of a symbol on a date. A
// provider never returns a Go error; every possible result is expressed as an
// Outcome so the resolver can cache it uniformly.
type Provider interface {
	Name() string
	FetchOpen(ctx context.Context, symbol string, date time.Time) Outcome
}

// classifyTransportError maps a request/transport error to a failure kind.
func classifyTransportError(err error) Outcome {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TemporaryFailure(FailureTimeout, err.Error())
	case errors.As(err, &netErr) && netErr.Timeout():
		return TemporaryFailure(FailureTimeout, err.Error())
	default:
		return TemporaryFailure(FailureNetworkError, err.Error())
	}
}

// classifyHTTPStatus maps a non-2xx status with no parseable error payload.
func classifyHTTPStatus(status int, body string) Outcome {
	detail := strings.TrimSpace(body)
	switch {
	case status == 429:
		return TemporaryFailure(FailureRateLimit, detail)
	case status == 401 || status == 403:
		return TemporaryFailure(FailureUnauthorized, detail)
	case status >= 500:
		return TemporaryFailure(FailureServerError, detail)
	default:
		return TemporaryFailure(FailureServerError, detail)
	}
}
