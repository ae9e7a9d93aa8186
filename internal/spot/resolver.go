package spot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/quantfold/leapsback/internal/cache"
)

// DefaultFailureTTL is how long a temporary failure stays cached before the
// provider is asked again.
const DefaultFailureTTL = time.Hour

// Resolver answers "what did symbol open at on this date" using an ordered
// provider chain. Definitive outcomes (a price, or market closed) are cached
// forever; temporary failures are cached briefly so a burst of lookups does
// not hammer a rate-limited provider.
type Resolver struct {
	providers  []Provider
	breakers   map[string]*gobreaker.CircuitBreaker
	store      cache.Store
	failureTTL time.Duration
	logger     *log.Logger
}

// NewResolver builds a resolver over providers, tried in order.
func NewResolver(store cache.Store, logger *log.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	breakers := make(map[string]*gobreaker.CircuitBreaker, len(providers))
	for _, p := range providers {
		name := p.Name()
		breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "spot-" + name,
			MaxRequests: 1,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(cbName string, from, to gobreaker.State) {
				logger.Printf("circuit breaker %s: %s -> %s", cbName, from, to)
			},
		})
	}
	return &Resolver{
		providers:  providers,
		breakers:   breakers,
		store:      store,
		failureTTL: DefaultFailureTTL,
		logger:     logger,
	}
}

// WithFailureTTL overrides how long temporary failures are cached.
func (r *Resolver) WithFailureTTL(ttl time.Duration) *Resolver {
	if ttl > 0 {
		r.failureTTL = ttl
	}
	return r
}

// errProviderFailed marks a temporary-failure outcome inside the breaker so
// consecutive failures trip it open.
var errProviderFailed = errors.New("provider lookup failed")

// Resolve walks the provider chain and returns the first definitive outcome.
// When every provider fails temporarily, the last failure is returned. err is
// non-nil only for infrastructure problems such as an unwritable cache.
func (r *Resolver) Resolve(ctx context.Context, symbol string, date time.Time) (Outcome, error) {
	if len(r.providers) == 0 {
		return Outcome{}, errors.New("no spot providers configured")
	}

	var last Outcome
	for _, p := range r.providers {
		key := outcomeKey(p.Name(), symbol, date)

		var cached Outcome
		ok, err := r.store.Get(key, &cached)
		if err != nil {
			return Outcome{}, fmt.Errorf("reading spot cache %q: %w", key, err)
		}
		if ok {
			if cached.Status != StatusTemporaryFailure {
				return cached, nil
			}
			// A recent failure for this provider; let the next one try.
			last = cached
			continue
		}

		outcome := r.fetch(ctx, p, symbol, date)
		if err := r.cacheOutcome(key, outcome); err != nil {
			return Outcome{}, err
		}
		if outcome.Status != StatusTemporaryFailure {
			return outcome, nil
		}
		r.logger.Printf("spot lookup %s %s via %s failed: %s",
			symbol, date.Format("2006-01-02"), p.Name(), outcome)
		last = outcome
	}
	return last, nil
}

func (r *Resolver) fetch(ctx context.Context, p Provider, symbol string, date time.Time) Outcome {
	result, err := r.breakers[p.Name()].Execute(func() (interface{}, error) {
		outcome := p.FetchOpen(ctx, symbol, date)
		if outcome.Status == StatusTemporaryFailure {
			return outcome, errProviderFailed
		}
		return outcome, nil
	})
	if err != nil {
		if outcome, ok := result.(Outcome); ok {
			return outcome
		}
		// Breaker open: the provider was not called at all.
		return TemporaryFailure(FailureServerError, err.Error())
	}
	return result.(Outcome)
}

func (r *Resolver) cacheOutcome(key string, outcome Outcome) error {
	ttl := cache.NoExpiry
	if outcome.Status == StatusTemporaryFailure {
		ttl = r.failureTTL
	}
	if err := r.store.Put(key, outcome, ttl); err != nil {
		return fmt.Errorf("writing spot cache %q: %w", key, err)
	}
	return nil
}

func outcomeKey(provider, symbol string, date time.Time) string {
	return "spot/" + provider + "/" + symbol + "/" + date.Format("20060102")
}
