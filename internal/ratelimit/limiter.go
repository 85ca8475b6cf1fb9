package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config holds the admission-control tunables. All windows are per calendar
// day; DelayWindow is the cooldown applied once an identity crosses the soft
// threshold.
type Config struct {
	SoftLimit   int
	HardLimit   int
	GlobalLimit int
	DelayWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SoftLimit:   30,
		HardLimit:   40,
		GlobalLimit: 400,
		DelayWindow: 60 * time.Second,
	}
}

// Verdict is the outcome of an admission check.
type Verdict int

const (
	// Allow admits the request.
	Allow Verdict = iota
	// Delay asks the caller to retry after Decision.RetryAfter seconds.
	Delay
	// Reject blocks the request until the next calendar day.
	Reject
)

// Decision is the result of Check. RetryAfter is populated for Delay only.
// GlobalExhausted distinguishes a reject caused by the shared daily ceiling
// from one caused by the identity's own hard limit.
type Decision struct {
	Verdict         Verdict
	RetryAfter      int
	GlobalExhausted bool
	RemainingClient int
	RemainingGlobal int
}

type record struct {
	count int
	first time.Time
	last  time.Time
}

// Limiter tracks per-identity and global request counts over the current
// calendar day. State lives in process memory only; running more than one
// instance needs an external atomically-updated store instead.
type Limiter struct {
	mu          sync.Mutex
	cfg         Config
	now         func() time.Time
	records     map[string]*record
	globalCount int
	windowStart time.Time
}

// New constructs a Limiter with the given config.
func New(cfg Config) *Limiter {
	now := time.Now
	return &Limiter{
		cfg:         cfg,
		now:         now,
		records:     make(map[string]*record),
		windowStart: now(),
	}
}

// Check decides whether a request from identity may proceed. It never
// consumes quota: repeated checks without an intervening Record return the
// same decision, modulo elapsed wall-clock time. The day rollover is the
// only state it may touch.
func (l *Limiter) Check(identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollover(now)

	if l.globalCount >= l.cfg.GlobalLimit {
		return Decision{Verdict: Reject, GlobalExhausted: true}
	}

	remGlobal := l.cfg.GlobalLimit - l.globalCount

	rec, ok := l.records[identity]
	if !ok {
		return Decision{
			Verdict:         Allow,
			RemainingClient: l.cfg.SoftLimit,
			RemainingGlobal: remGlobal,
		}
	}

	if rec.count >= l.cfg.HardLimit {
		return Decision{Verdict: Reject}
	}

	if rec.count >= l.cfg.SoftLimit {
		elapsed := now.Sub(rec.last)
		if elapsed < l.cfg.DelayWindow {
			wait := int(math.Ceil((l.cfg.DelayWindow - elapsed).Seconds()))
			return Decision{Verdict: Delay, RetryAfter: wait}
		}
	}

	remClient := l.cfg.SoftLimit - rec.count
	if remClient < 0 {
		remClient = 0
	}
	return Decision{
		Verdict:         Allow,
		RemainingClient: remClient,
		RemainingGlobal: remGlobal,
	}
}

// Record charges one request against identity and the global counter. It is
// the only quota mutation and must be called at most once per dispatched
// request, never for a rejected one.
func (l *Limiter) Record(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollover(now)

	rec, ok := l.records[identity]
	if !ok {
		rec = &record{first: now}
		l.records[identity] = rec
	}
	rec.count++
	rec.last = now
	l.globalCount++
}

// rollover lazily resets the window when the calendar day changes. Records
// whose first request falls on a prior day are dropped. Caller holds l.mu.
func (l *Limiter) rollover(now time.Time) {
	if sameDay(now, l.windowStart) {
		return
	}
	l.globalCount = 0
	l.windowStart = now
	for identity, rec := range l.records {
		if !sameDay(rec.first, now) {
			delete(l.records, identity)
		}
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
