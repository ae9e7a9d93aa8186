// Package spot resolves historical opening prices for the underlying from
// external daily-bar data providers, with failover and outcome caching.
package spot

import "fmt"

// Status classifies one provider lookup.
type Status string

const (
	// StatusSuccess means the provider returned a usable opening price.
	StatusSuccess Status = "success"
	// StatusMarketClosed means the provider answered authoritatively that no
	// trading happened on the date. This is a definitive answer, not an error.
	StatusMarketClosed Status = "market_closed"
	// StatusTemporaryFailure means the lookup failed for a reason that may
	// clear up later; retry after the failure TTL.
	StatusTemporaryFailure Status = "temporary_failure"
)

// FailureKind narrows a temporary failure for logging and backoff decisions.
type FailureKind string

const (
	FailureRateLimit          FailureKind = "rate_limit"
	FailureTimeout            FailureKind = "timeout"
	FailureUnauthorized       FailureKind = "unauthorized"
	FailureServerError        FailureKind = "server_error"
	FailureNetworkError       FailureKind = "network_error"
	FailureMissingCredentials FailureKind = "missing_credentials"
)

// Outcome is the cached result of one provider lookup. Success and
// MarketClosed are permanent facts about history; temporary failures expire.
type Outcome struct {
	Status Status      `json:"status"`
	Price  float64     `json:"price,omitempty"`
	Kind   FailureKind `json:"kind,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Success builds a successful outcome carrying the opening price.
func Success(price float64) Outcome {
	return Outcome{Status: StatusSuccess, Price: price}
}

// MarketClosed builds the definitive no-trading outcome.
func MarketClosed() Outcome {
	return Outcome{Status: StatusMarketClosed}
}

// TemporaryFailure builds a retryable failure outcome.
func TemporaryFailure(kind FailureKind, detail string) Outcome {
	return Outcome{Status: StatusTemporaryFailure, Kind: kind, Detail: detail}
}

func (o Outcome) String() string {
	switch o.Status {
	case StatusSuccess:
		return fmt.Sprintf("success (%.4f)", o.Price)
	case StatusMarketClosed:
		return "market closed"
	default:
		return fmt.Sprintf("temporary failure (%s: %s)", o.Kind, o.Detail)
	}
}
