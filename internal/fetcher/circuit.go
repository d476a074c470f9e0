package fetcher

import (
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrHostSuspended is returned when a provider host has failed repeatedly and
// its breaker is rejecting requests until the cooldown elapses.
var ErrHostSuspended = eris.New("provider host suspended after repeated failures")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerProbing
)

// hostBreaker suspends a provider host after consecutive request failures.
// A scheduled sync hitting a dead provider should fail fast instead of
// retrying every indicator against it.
type hostBreaker struct {
	mu sync.Mutex

	state       breakerState
	failures    int
	lastFailure time.Time
	threshold   int
	cooldown    time.Duration
	now         func() time.Time
}

func newHostBreaker(threshold int, cooldown time.Duration) *hostBreaker {
	return &hostBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// allow reports whether a request may proceed. An open breaker admits a
// single probe once the cooldown has elapsed.
func (b *hostBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.lastFailure) >= b.cooldown {
			b.state = breakerProbing
			return nil
		}
		return ErrHostSuspended
	default:
		return nil
	}
}

// record feeds the outcome of a completed request (after retries) back into
// the breaker.
func (b *hostBreaker) record(host string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != breakerClosed {
			zap.L().Info("provider host recovered", zap.String("host", host))
		}
		b.state = breakerClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == breakerProbing || b.failures >= b.threshold {
		if b.state != breakerOpen {
			zap.L().Warn("suspending provider host",
				zap.String("host", host),
				zap.Int("consecutive_failures", b.failures),
				zap.Duration("cooldown", b.cooldown),
			)
		}
		b.state = breakerOpen
	}
}

// hostBreakers lazily creates one breaker per provider host.
type hostBreakers struct {
	mu       sync.Mutex
	breakers map[string]*hostBreaker

	threshold int
	cooldown  time.Duration
}

func newHostBreakers(threshold int, cooldown time.Duration) *hostBreakers {
	return &hostBreakers{
		breakers:  make(map[string]*hostBreaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (hb *hostBreakers) forURL(rawURL string) (*hostBreaker, string) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, ""
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	b, ok := hb.breakers[u.Host]
	if !ok {
		b = newHostBreaker(hb.threshold, hb.cooldown)
		hb.breakers[u.Host] = b
	}
	return b, u.Host
}
