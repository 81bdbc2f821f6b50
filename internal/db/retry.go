package db

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls how Connect retries a pool that is not reachable yet.
type RetryConfig struct {
	// Attempts is the total number of tries including the first. Values
	// below 1 mean a single try.
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// retry runs fn until it succeeds, returns a permanent error, the context is
// done, or the attempts run out. The last error is returned.
func retry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	attempts := max(cfg.Attempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) || attempt == attempts-1 {
			return err
		}

		zap.L().Warn("retrying database operation",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

// backoff doubles from cfg.Backoff with +-25% jitter, capped at MaxBackoff.
func backoff(attempt int, cfg RetryConfig) time.Duration {
	base := cfg.Backoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if cfg.MaxBackoff > 0 && delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	delay += (rand.Float64()*2 - 1) * delay * 0.25
	return time.Duration(max(delay, 0))
}

var transientPatterns = []string{
	"connection refused",
	"connection reset by peer",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"the database system is starting up",
	"too many connections",
}

// isTransient reports whether err looks like a network or startup failure
// that a later attempt may not hit.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
