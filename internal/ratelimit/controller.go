// Package ratelimit implements the Rate-Limit Controller: centralized
// per-venue backoff bookkeeping that gates every control cycle. It is
// deliberately ignorant of the exchange and the strategy — it only
// tracks consecutive 429s and a pause deadline.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

// Decision is the verdict beforeCycle hands back to the engine.
type Decision int

const (
	Run Decision = iota
	Skip
	Paused
)

func (d Decision) String() string {
	switch d {
	case Run:
		return "run"
	case Skip:
		return "skip"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

const maxBackoff = 60 * time.Second

// Controller tracks rate-limit state for one venue connection.
// Safe for concurrent use, though the engine only ever calls it from
// its own single task.
type Controller struct {
	mu sync.Mutex

	refreshInterval time.Duration
	log             *slog.Logger

	paused         bool
	pauseUntil     time.Time
	consecutive429 int

	lastCycleHadRateLimit bool
	lastCycleEndedAt      time.Time
}

// New builds a Controller. refreshInterval is the engine's tick
// period; it scales both the backoff base and the skip window.
func New(refreshInterval time.Duration, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{refreshInterval: refreshInterval, log: log}
}

// backoff returns base*2^n capped at 60s, where base = 2x the refresh
// interval, matching spec's exponential-backoff rule.
func (c *Controller) backoff(n int) time.Duration {
	base := 2 * c.refreshInterval
	if n < 0 {
		return base
	}
	if n > 30 {
		return maxBackoff
	}
	d := base * time.Duration(uint64(1)<<uint(n))
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// RegisterRateLimit records a 429 from sourceTag and extends the pause
// window. pauseUntil never moves earlier than it already was, per the
// resolved open question: pauseUntil = max(prev, now + backoff(n)).
func (c *Controller) RegisterRateLimit(sourceTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutive429++
	now := time.Now()
	candidate := now.Add(c.backoff(c.consecutive429))
	if candidate.After(c.pauseUntil) {
		c.pauseUntil = candidate
	}
	c.paused = true
	c.lastCycleHadRateLimit = true

	c.log.Warn("rate limit registered",
		slog.String("source", sourceTag),
		slog.Int("consecutive429", c.consecutive429),
		slog.Time("pause_until", c.pauseUntil))
}

// BeforeCycle returns the decision for the next control-loop
// iteration.
func (c *Controller) BeforeCycle() Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Before(c.pauseUntil) {
		return Paused
	}
	c.paused = false

	if c.lastCycleHadRateLimit && now.Sub(c.lastCycleEndedAt) < c.refreshInterval {
		return Skip
	}
	return Run
}

// OnCycleComplete records the outcome of a finished cycle. A clean
// cycle (hadRateLimit=false) decays consecutive429 by one, floored at
// zero.
func (c *Controller) OnCycleComplete(hadRateLimit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastCycleHadRateLimit = hadRateLimit
	c.lastCycleEndedAt = time.Now()

	if !hadRateLimit && c.consecutive429 > 0 {
		c.consecutive429--
	}
}

// ShouldBlockEntries reports whether new entry quotes must be
// suppressed (reduce-only closes remain allowed).
func (c *Controller) ShouldBlockEntries() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutive429 >= 1
}

// Consecutive429 exposes the counter for snapshot/metrics reporting.
func (c *Controller) Consecutive429() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consecutive429
}

// PauseUntil exposes the current pause deadline for snapshot reporting.
func (c *Controller) PauseUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseUntil
}
