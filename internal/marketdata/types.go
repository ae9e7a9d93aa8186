package marketdata

import (
	"fmt"
	"time"

	"github.com/quantfold/leapsback/internal/models"
)

// Tick layout offsets inside the terminal's bulk responses. Each response row
// carries a positional array per trading interval; these are the documented
// column positions for the v2 endpoints we consume.
const (
	eodTickClose = 5
	eodTickBid   = 10
	eodTickAsk   = 14
	eodTickLen   = 17

	quoteTickBid = 3
	quoteTickAsk = 7
	quoteTickLen = 8

	greeksTickDelta = 15
	greeksTickTheta = 16
	greeksTickVega  = 17
	greeksTickGamma = 21
	greeksTickIV    = 33
	greeksTickLen   = 34
)

// APIError represents a non-2xx terminal response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("terminal API error %d: %s", e.Status, e.Body)
}

// ContractInfo identifies the contract a bulk row belongs to. Strikes arrive
// in thousandths of a dollar and stay in that unit.
type ContractInfo struct {
	Root       string        `json:"root"`
	Expiration int           `json:"expiration"` // YYYYMMDD
	Strike     models.Strike `json:"strike"`
	Right      string        `json:"right"`
}

// BulkRecord is one contract's row in a bulk EOD / Greeks / at-time response.
type BulkRecord struct {
	Contract ContractInfo `json:"contract"`
	Ticks    [][]float64  `json:"ticks"`
}

// IsCall reports whether the row describes a call contract.
func (r *BulkRecord) IsCall() bool {
	return r.Contract.Right == string(models.RightCall)
}

// EOD returns the close/bid/ask columns of the first tick of an EOD row.
// ok is false when the row carries no usable tick.
func (r *BulkRecord) EOD() (close, bid, ask float64, ok bool) {
	if len(r.Ticks) == 0 || len(r.Ticks[0]) < eodTickLen {
		return 0, 0, 0, false
	}
	tick := r.Ticks[0]
	return tick[eodTickClose], tick[eodTickBid], tick[eodTickAsk], true
}

// Quote returns the bid/ask of the first tick of an at-time quote row.
func (r *BulkRecord) Quote() (bid, ask float64, ok bool) {
	if len(r.Ticks) == 0 || len(r.Ticks[0]) < quoteTickLen {
		return 0, 0, false
	}
	tick := r.Ticks[0]
	return tick[quoteTickBid], tick[quoteTickAsk], true
}

// Greeks extracts the Greeks columns of an EOD-Greeks row.
func (r *BulkRecord) Greeks() (*models.Greeks, bool) {
	if len(r.Ticks) == 0 || len(r.Ticks[0]) < greeksTickLen {
		return nil, false
	}
	tick := r.Ticks[0]
	return &models.Greeks{
		Delta: tick[greeksTickDelta],
		Theta: tick[greeksTickTheta],
		Vega:  tick[greeksTickVega],
		Gamma: tick[greeksTickGamma],
		IV:    tick[greeksTickIV],
	}, true
}

// EODQuote is the exit-side end-of-day record for a single contract.
type EODQuote struct {
	Close float64
	Bid   float64
	Ask   float64
}

// bulkResponse wraps the terminal's standard {"response": [...]} envelope.
type bulkResponse struct {
	Response []BulkRecord `json:"response"`
}

type intListResponse struct {
	Response []int `json:"response"`
}

type rowListResponse struct {
	Response [][]any `json:"response"`
}

type eodRowsResponse struct {
	Response [][]float64 `json:"response"`
}

// DateFormat is the compact YYYYMMDD date format the terminal speaks.
const DateFormat = "20060102"

// FormatDate renders t in terminal wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseDate parses a YYYYMMDD integer as produced by the terminal.
func ParseDate(yyyymmdd int) (time.Time, error) {
	return time.Parse(DateFormat, fmt.Sprintf("%08d", yyyymmdd))
}
