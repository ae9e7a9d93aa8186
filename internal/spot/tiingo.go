package spot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const tiingoBaseURL = "https://api.tiingo.com"

// TiingoProvider fetches EOD prices from the Tiingo daily prices API.
type TiingoProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Provider = (*TiingoProvider)(nil)

// NewTiingoProvider creates a Tiingo provider. An empty API key is tolerated
// at construction and reported as a missing-credentials outcome per lookup.
func NewTiingoProvider(apiKey string, timeout time.Duration) *TiingoProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TiingoProvider{
		baseURL: tiingoBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the API host, for tests.
func (p *TiingoProvider) WithBaseURL(u string) *TiingoProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *TiingoProvider) Name() string { return "tiingo" }

type tiingoRow struct {
	Date string  `json:"date"`
	Open float64 `json:"open"`
}

type tiingoError struct {
	Detail string `json:"detail"`
}

// FetchOpen queries the daily price endpoint for exactly one date. An empty
// array response is Tiingo's way of saying the market did not trade that day.
func (p *TiingoProvider) FetchOpen(ctx context.Context, symbol string, date time.Time) Outcome {
	if p.apiKey == "" {
		return TemporaryFailure(FailureMissingCredentials, "tiingo API key not configured")
	}

	day := date.Format("2006-01-02")
	endpoint := fmt.Sprintf("%s/tiingo/daily/%s/prices?startDate=%s&endDate=%s&token=%s",
		p.baseURL, strings.ToLower(symbol), day, day, p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return TemporaryFailure(FailureNetworkError, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return TemporaryFailure(FailureNetworkError, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr tiingoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return classifyTiingoMessage(resp.StatusCode, apiErr.Detail)
		}
		return classifyHTTPStatus(resp.StatusCode, string(body))
	}

	var rows []tiingoRow
	if err := json.Unmarshal(body, &rows); err != nil {
		// A 200 with an object body is an in-band error message.
		var apiErr tiingoError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return classifyTiingoMessage(resp.StatusCode, apiErr.Detail)
		}
		return TemporaryFailure(FailureServerError, "unparseable tiingo response")
	}

	if len(rows) == 0 {
		return MarketClosed()
	}
	return Success(rows[0].Open)
}

func classifyTiingoMessage(status int, detail string) Outcome {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "rate limit"):
		return TemporaryFailure(FailureRateLimit, detail)
	case strings.Contains(lower, "unauthorized") || strings.Contains(lower, "token"):
		return TemporaryFailure(FailureUnauthorized, detail)
	default:
		return classifyHTTPStatus(status, detail)
	}
}
