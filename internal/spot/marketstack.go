package spot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const marketstackBaseURL = "https://api.marketstack.com"

// MarketStackProvider fetches EOD prices from the MarketStack API. It serves
// as the fallback when the primary provider is rate limited or down.
type MarketStackProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Provider = (*MarketStackProvider)(nil)

// NewMarketStackProvider creates a MarketStack provider.
func NewMarketStackProvider(apiKey string, timeout time.Duration) *MarketStackProvider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &MarketStackProvider{
		baseURL: marketstackBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the API host, for tests.
func (p *MarketStackProvider) WithBaseURL(u string) *MarketStackProvider {
	p.baseURL = strings.TrimRight(u, "/")
	return p
}

func (p *MarketStackProvider) Name() string { return "marketstack" }

type marketstackResponse struct {
	Data []struct {
		Open float64 `json:"open"`
		Date string  `json:"date"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchOpen queries the EOD endpoint for exactly one date. An empty data
// array means the market did not trade that day.
func (p *MarketStackProvider) FetchOpen(ctx context.Context, symbol string, date time.Time) Outcome {
	if p.apiKey == "" {
		return TemporaryFailure(FailureMissingCredentials, "marketstack API key not configured")
	}

	day := date.Format("2006-01-02")
	params := url.Values{}
	params.Set("access_key", p.apiKey)
	params.Set("symbols", symbol)
	params.Set("date_from", day)
	params.Set("date_to", day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"/v1/eod?"+params.Encode(), http.NoBody)
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

	var parsed marketstackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return classifyHTTPStatus(resp.StatusCode, string(body))
		}
		return TemporaryFailure(FailureServerError, "unparseable marketstack response")
	}

	// MarketStack reports errors in-band with a code, regardless of status.
	if parsed.Error != nil {
		return classifyMarketstackCode(resp.StatusCode, parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyHTTPStatus(resp.StatusCode, string(body))
	}

	if len(parsed.Data) == 0 {
		return MarketClosed()
	}
	return Success(parsed.Data[0].Open)
}

func classifyMarketstackCode(status int, code, message string) Outcome {
	lower := strings.ToLower(code)
	detail := code
	if message != "" {
		detail = code + ": " + message
	}
	switch {
	case strings.Contains(lower, "rate") || strings.Contains(lower, "limit"):
		return TemporaryFailure(FailureRateLimit, detail)
	case strings.Contains(lower, "access") || strings.Contains(lower, "auth"):
		return TemporaryFailure(FailureUnauthorized, detail)
	default:
		return classifyHTTPStatus(status, detail)
	}
}
