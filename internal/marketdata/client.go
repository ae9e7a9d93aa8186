// Package marketdata implements the HTTP client for the local market-data
// terminal, which serves historical trading calendars, option chains, bulk
// end-of-day records, Greeks, and intraday quote snapshots.
package marketdata

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// DefaultBaseURL is where the local terminal process listens.
const DefaultBaseURL = "http://127.0.0.1:25510"

// statusConnected is the terminal's liveness response body.
const statusConnected = "CONNECTED"

// RetryConfig bounds the transient-error retry loop around each request.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries twice with jittered backoff; historical data
// queries are idempotent so retrying is always safe.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// Client talks to the terminal's v2 REST endpoints.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
	retry   RetryConfig
}

// NewClient creates a terminal client. An empty baseURL falls back to
// DefaultBaseURL; a nil logger discards output.
func NewClient(baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		retry:   DefaultRetryConfig,
	}
}

// WithHTTPClient overrides the HTTP client (tests, custom transport).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(cfg RetryConfig) *Client {
	c.retry = cfg
	return c
}

// Status verifies the terminal is running and connected to its data feed.
func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/system/mdds/status", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("terminal not reachable: %w", err)
	}
	defer closeBody(resp, c.logger)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("reading terminal status: %w", err)
	}
	if strings.TrimSpace(string(body)) != statusConnected {
		return fmt.Errorf("terminal status %q, want %q", strings.TrimSpace(string(body)), statusConnected)
	}
	return nil
}

// ListTradeDates returns every historical trading date known for symbol,
// ascending and de-duplicated.
func (c *Client) ListTradeDates(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{}
	params.Set("root", symbol)

	var resp intListResponse
	if err := c.getJSON(ctx, "/v2/list/dates/stock/trade", params, &resp); err != nil {
		return nil, err
	}
	return parseDateList(resp.Response)
}

// ListExpirations returns every option expiration ever listed for symbol.
func (c *Client) ListExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{}
	params.Set("root", symbol)

	var resp intListResponse
	if err := c.getJSON(ctx, "/v2/list/expirations", params, &resp); err != nil {
		return nil, err
	}
	return parseDateList(resp.Response)
}

// TradableExpirations returns the unique expirations quoted for symbol on the
// given date, ascending. Rows the terminal cannot express as [root, exp, ...]
// are skipped rather than failing the call; historical chains are ragged.
func (c *Client) TradableExpirations(ctx context.Context, symbol string, date time.Time) ([]time.Time, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("start_date", FormatDate(date))

	var resp rowListResponse
	if err := c.getJSON(ctx, "/v2/list/contracts/option/quote", params, &resp); err != nil {
		return nil, err
	}

	seen := make(map[int]struct{})
	var out []time.Time
	for _, row := range resp.Response {
		if len(row) < 2 {
			continue
		}
		num, ok := row[1].(float64)
		if !ok {
			continue
		}
		exp := int(num)
		if _, dup := seen[exp]; dup {
			continue
		}
		parsed, err := ParseDate(exp)
		if err != nil {
			continue
		}
		seen[exp] = struct{}{}
		out = append(out, parsed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// BulkEOD fetches end-of-day records for every strike of one expiration over
// a date range.
func (c *Client) BulkEOD(ctx context.Context, symbol string, expiration, start, end time.Time) ([]BulkRecord, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("exp", FormatDate(expiration))
	params.Set("start_date", FormatDate(start))
	params.Set("end_date", FormatDate(end))
	params.Set("rth", "true")

	var resp bulkResponse
	if err := c.getJSON(ctx, "/v2/bulk_hist/option/eod", params, &resp); err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// BulkEODGreeks fetches end-of-day Greeks for every strike of one expiration
// on a single date.
func (c *Client) BulkEODGreeks(ctx context.Context, symbol string, expiration, date time.Time) ([]BulkRecord, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("exp", FormatDate(expiration))
	params.Set("start_date", FormatDate(date))
	params.Set("end_date", FormatDate(date))

	var resp bulkResponse
	if err := c.getJSON(ctx, "/v2/bulk_hist/option/eod_greeks", params, &resp); err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// BulkAtTimeQuotes fetches the quote snapshot for every strike of one
// expiration at a millisecond offset into the trading day.
func (c *Client) BulkAtTimeQuotes(ctx context.Context, symbol string, expiration, date time.Time, intervalMS int) ([]BulkRecord, error) {
	params := url.Values{}
	params.Set("root", symbol)
	params.Set("exp", FormatDate(expiration))
	params.Set("start_date", FormatDate(date))
	params.Set("end_date", FormatDate(date))
	params.Set("ivl", fmt.Sprintf("%d", intervalMS))
	params.Set("rth", "true")

	var resp bulkResponse
	if err := c.getJSON(ctx, "/v2/bulk_at_time/option/quote", params, &resp); err != nil {
		return nil, err
	}
	return resp.Response, nil
}

// OptionEOD fetches the end-of-day record for a single contract on one date.
// found is false when the terminal has no record at all, which is distinct
// from a record whose prices are zero (a worthless contract).
func (c *Client) OptionEOD(ctx context.Context, contract models.OptionContract, date time.Time) (*EODQuote, bool, error) {
	params := url.Values{}
	params.Set("root", contract.Symbol)
	params.Set("exp", FormatDate(contract.Expiration))
	params.Set("strike", fmt.Sprintf("%d", contract.Strike))
	params.Set("right", string(contract.Right))
	params.Set("start_date", FormatDate(date))
	params.Set("end_date", FormatDate(date))

	var resp eodRowsResponse
	if err := c.getJSON(ctx, "/v2/hist/option/eod", params, &resp); err != nil {
		return nil, false, err
	}
	if len(resp.Response) == 0 || len(resp.Response[0]) < eodTickLen {
		return nil, false, nil
	}
	row := resp.Response[0]
	return &EODQuote{
		Close: row[eodTickClose],
		Bid:   row[eodTickBid],
		Ask:   row[eodTickAsk],
	}, true, nil
}

// getJSON issues a GET with the retry policy and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	backoff := c.retry.InitialBackoff
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		lastErr = c.doJSON(ctx, endpoint, out)
		if lastErr == nil {
			return nil
		}
		if !isTransientError(lastErr) || attempt == c.retry.MaxRetries {
			return lastErr
		}

		c.logger.Printf("transient terminal error on %s (attempt %d/%d): %v",
			path, attempt+1, c.retry.MaxRetries+1, lastErr)
		select {
		case <-time.After(backoff):
			backoff = c.nextBackoff(backoff)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) doJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp, c.logger)

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > c.retry.MaxBackoff {
		next = c.retry.MaxBackoff
	}
	if maxJitter := int64(next / 4); maxJitter > 0 {
		if j, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			next += time.Duration(j.Int64())
		}
	}
	return next
}

// isTransientError reports whether a request is worth retrying: network-level
// failures, timeouts, and 5xx/429 responses.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "network", "dns", "tcp"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func parseDateList(raw []int) ([]time.Time, error) {
	seen := make(map[int]struct{}, len(raw))
	out := make([]time.Time, 0, len(raw))
	for _, d := range raw {
		if _, dup := seen[d]; dup {
			continue
		}
		parsed, err := ParseDate(d)
		if err != nil {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, parsed)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func closeBody(resp *http.Response, logger *log.Logger) {
	if err := resp.Body.Close(); err != nil {
		logger.Printf("failed to close response body: %v", err)
	}
}
