package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var errNoKeys = errors.New("no usable API keys")

// sendFunc performs one HTTP exchange with key and returns the status and body.
type sendFunc func(ctx context.Context, key string) (int, []byte, error)

// transport is the shared call path of the providers: a rate limiter in
// front of a circuit breaker, with API key rotation inside it.
type transport struct {
	provider string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	keys     *keyRing
	fault    keyFault
	logger   zerolog.Logger
}

func newTransport(provider string, timeout time.Duration, rpm int, keys *keyRing, fault keyFault, logger zerolog.Logger) *transport {
	limit := rate.Inf
	if rpm > 0 {
		limit = rate.Every(time.Minute / time.Duration(rpm))
	}
	return &transport{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        provider + "API",
			MaxRequests: 3,
			Interval:    10 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
		limiter: rate.NewLimiter(limit, 1),
		keys:    keys,
		fault:   fault,
		logger:  logger,
	}
}

// call runs send under the limiter and breaker, benching keys the provider
// refuses, and hands a 200 body to extract.
func (t *transport) call(ctx context.Context, send sendFunc, extract func([]byte) (string, error)) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for %s rate limit: %w", t.provider, err)
	}

	tries := t.keys.size()
	if tries > maxKeysPerCall {
		tries = maxKeysPerCall
	}

	start := time.Now()
	result, err := t.cb.Execute(func() (interface{}, error) {
		lastErr := errNoKeys
		for i := 0; i < tries; i++ {
			idx, key := t.keys.next()
			if idx < 0 {
				break
			}

			status, body, err := send(ctx, key)
			if err != nil {
				return "", fmt.Errorf("calling %s API: %w", t.provider, stripQuery(err))
			}
			if status == http.StatusOK {
				return extract(body)
			}
			rest, why := t.fault(status, body)
			if rest == 0 {
				return "", fmt.Errorf("%s API error (status %d): %s", t.provider, status, truncateStr(string(body), errorBodyLogSize))
			}
			t.keys.bench(idx, rest, why)
			lastErr = fmt.Errorf("%s API refused key %d (status %d, %s)", t.provider, idx+1, status, why)
		}
		return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
	})
	if err != nil {
		t.logger.Debug().Err(err).Dur("elapsed", time.Since(start)).Msg("oracle call failed")
		return "", err
	}
	t.logger.Debug().Dur("elapsed", time.Since(start)).Msg("oracle call complete")
	return result.(string), nil
}

// stripQuery drops the query string from a *url.Error so request URLs
// never carry credentials into logs or the journal.
func stripQuery(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	u, perr := url.Parse(ue.URL)
	if perr != nil {
		return &url.Error{Op: ue.Op, URL: "(unparseable URL)", Err: ue.Err}
	}
	u.RawQuery = ""
	return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
}
