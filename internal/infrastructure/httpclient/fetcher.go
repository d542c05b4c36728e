package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/kimchiscan/kimchiscan/internal/models"
)

// Fetcher is a thin JSON GET client shared by the venue adapters and
// the FX providers. Each registered upstream gets a token-bucket
// limiter and a circuit breaker; retries stay with the callers.
type Fetcher struct {
	client   *http.Client
	limiters map[string]*rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.RWMutex
}

// New creates a Fetcher with the given request timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Register installs a limiter and breaker for an upstream name. Calls
// for unregistered names pass through unguarded.
func (f *Fetcher) Register(name string, rps float64, burst int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.limiters[name] = rate.NewLimiter(rate.Limit(rps), burst)
	f.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("upstream", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// GetJSON performs a GET with optional per-request headers and decodes
// the response body into out.
func (f *Fetcher) GetJSON(ctx context.Context, upstream, url string, headers map[string]string, out interface{}) error {
	body, err := f.get(ctx, upstream, url, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &models.DecodeError{What: url, Err: err}
	}

	return nil
}

// GetBody performs a GET and returns the raw body. Used by providers
// whose responses are not JSON.
func (f *Fetcher) GetBody(ctx context.Context, upstream, url string, headers map[string]string) ([]byte, error) {
	return f.get(ctx, upstream, url, headers)
}

func (f *Fetcher) get(ctx context.Context, upstream, url string, headers map[string]string) ([]byte, error) {
	f.mu.RLock()
	limiter := f.limiters[upstream]
	breaker := f.breakers[upstream]
	f.mu.RUnlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &models.TransportError{URL: url, Err: err}
		}
	}

	do := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &models.TransportError{URL: url, Err: err}
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, &models.TransportError{URL: url, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &models.TransportError{URL: url, Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &models.TransportError{URL: url, Err: err}
		}
		return body, nil
	}

	if breaker == nil {
		return do()
	}

	res, err := breaker.Execute(func() (interface{}, error) {
		return do()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &models.TransportError{URL: url, Err: err}
		}
		return nil, err
	}

	return res.([]byte), nil
}
