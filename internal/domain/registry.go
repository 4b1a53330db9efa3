// internal/domain/registry.go

// Package domain owns all per-host network-access state: the pacing and
// backoff controller, the per-host in-flight lock, and the registry that
// stores them. Every component that touches the network for a host reads
// and mutates the same entry, so the registry is the single source of
// truth for "may we talk to this host right now, and how fast".
package domain

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/steltix/newsgrab/internal/utils"
)

// Default pacing and backoff parameters. Backoff for bot-block signals is
// materially longer than for ordinary rate/server errors: a CAPTCHA means
// the host has already flagged this identity, and probing again soon only
// confirms the fingerprint.
const (
	DefaultMinDelay = 1500 * time.Millisecond
	DefaultMaxDelay = 3500 * time.Millisecond

	DefaultBackoffBase = 60 * time.Second
	DefaultBackoffCap  = 3600 * time.Second

	DefaultBlockBackoffBase = 600 * time.Second
	DefaultBlockBackoffCap  = 5400 * time.Second

	// DefaultMaxHosts caps registry growth; least-recently-used hosts are
	// evicted past this point.
	DefaultMaxHosts = 10000

	backoffJitterMin = 0.8
	backoffJitterMax = 1.2
)

// Config tunes the controller. Zero values select the defaults above.
type Config struct {
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	BackoffBase time.Duration `yaml:"backoff_base" json:"backoff_base"`
	BackoffCap  time.Duration `yaml:"backoff_cap" json:"backoff_cap"`

	BlockBackoffBase time.Duration `yaml:"block_backoff_base" json:"block_backoff_base"`
	BlockBackoffCap  time.Duration `yaml:"block_backoff_cap" json:"block_backoff_cap"`

	MaxHosts int `yaml:"max_hosts" json:"max_hosts"`
}

func (c *Config) applyDefaults() {
	if c.MinDelay == 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.BlockBackoffBase == 0 {
		c.BlockBackoffBase = DefaultBlockBackoffBase
	}
	if c.BlockBackoffCap == 0 {
		c.BlockBackoffCap = DefaultBlockBackoffCap
	}
	if c.MaxHosts == 0 {
		c.MaxHosts = DefaultMaxHosts
	}
}

// BackoffDecision reports how a failure was translated into suppression.
type BackoffDecision struct {
	ResumeAt       time.Time
	Delay          time.Duration
	FromServerHint bool
}

// hostState is one registry entry. stateMu guards every field; netMu is a
// separate lock serializing the network call itself so that bookkeeping
// reads never queue behind a slow fetch.
type hostState struct {
	stateMu sync.Mutex
	netMu   sync.Mutex

	lastRequestAt     time.Time
	backoffUntil      time.Time
	consecutiveErrors int
}

type hostEntry struct {
	host  string
	state *hostState
	elem  *list.Element
}

// Registry is the process-wide map of per-host state. It is injectable so
// tests and embedders get isolated instances instead of hidden globals.
type Registry struct {
	mu    sync.Mutex
	hosts map[string]*hostEntry
	lru   *list.List // front = most recently used

	cfg Config
	rng utils.Rand

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRegistry creates a registry. A nil rng selects a clock-seeded source.
func NewRegistry(cfg Config, rng utils.Rand) *Registry {
	cfg.applyDefaults()
	if rng == nil {
		rng = utils.NewRand()
	}
	return &Registry{
		hosts: make(map[string]*hostEntry),
		lru:   list.New(),
		cfg:   cfg,
		rng:   rng,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// getOrCreate returns the entry for host, inserting (and possibly
// evicting) under the registry lock. Lock order is always registry.mu
// before hostState.stateMu.
func (r *Registry) getOrCreate(host string) *hostState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.hosts[host]; ok {
		r.lru.MoveToFront(e.elem)
		return e.state
	}

	e := &hostEntry{host: host, state: &hostState{}}
	e.elem = r.lru.PushFront(e)
	r.hosts[host] = e

	if len(r.hosts) > r.cfg.MaxHosts {
		r.evictLocked()
	}
	return e.state
}

// evictLocked removes the least-recently-used host that is not under an
// active backoff. A suppressed host must not lose its penalty by going
// idle. Called with r.mu held.
func (r *Registry) evictLocked() {
	now := r.now()
	for elem := r.lru.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*hostEntry)

		e.state.stateMu.Lock()
		suppressed := e.state.backoffUntil.After(now)
		e.state.stateMu.Unlock()
		if suppressed {
			continue
		}

		r.lru.Remove(elem)
		delete(r.hosts, e.host)
		return
	}
}

// lookup returns the entry without creating one.
func (r *Registry) lookup(host string) *hostState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.hosts[host]; ok {
		return e.state
	}
	return nil
}

// Len returns the number of tracked hosts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hosts)
}

// ShouldWait reports whether the host is inside an active backoff window.
// An expired window is cleared as a side effect. A host with no prior
// state never waits.
func (r *Registry) ShouldWait(host string) bool {
	st := r.lookup(host)
	if st == nil {
		return false
	}

	st.stateMu.Lock()
	defer st.stateMu.Unlock()

	if st.backoffUntil.IsZero() {
		return false
	}
	if r.now().After(st.backoffUntil) {
		st.backoffUntil = time.Time{}
		return false
	}
	return true
}

// BackoffRemaining returns how long the host's backoff window has left,
// zero when not suppressed.
func (r *Registry) BackoffRemaining(host string) time.Duration {
	st := r.lookup(host)
	if st == nil {
		return 0
	}

	st.stateMu.Lock()
	defer st.stateMu.Unlock()

	if st.backoffUntil.IsZero() {
		return 0
	}
	remaining := st.backoffUntil.Sub(r.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Pace suspends the caller until the host's inter-request gap has elapsed.
// The gap is drawn uniformly from [MinDelay, MaxDelay] per call, so the
// cadence never settles into a detectable period. The new lastRequestAt is
// recorded even when no wait was needed.
func (r *Registry) Pace(ctx context.Context, host string) error {
	st := r.getOrCreate(host)

	window := r.cfg.MaxDelay - r.cfg.MinDelay
	delay := r.cfg.MinDelay
	if window > 0 {
		delay += time.Duration(r.rng.Float64() * float64(window))
	}

	st.stateMu.Lock()
	var wait time.Duration
	if !st.lastRequestAt.IsZero() {
		wait = delay - r.now().Sub(st.lastRequestAt)
	}
	st.stateMu.Unlock()

	if wait > 0 {
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
	}

	st.stateMu.Lock()
	st.lastRequestAt = r.now()
	st.stateMu.Unlock()
	return nil
}

// RecordFailure escalates the host's backoff. blockTier selects the longer
// CAPTCHA/bot-block parameters. A valid server Retry-After hint wins over
// the formula when it asks for more.
func (r *Registry) RecordFailure(host string, blockTier bool, retryAfter time.Duration) BackoffDecision {
	st := r.getOrCreate(host)

	st.stateMu.Lock()
	defer st.stateMu.Unlock()

	st.consecutiveErrors++

	base, cap := r.cfg.BackoffBase, r.cfg.BackoffCap
	if blockTier {
		base, cap = r.cfg.BlockBackoffBase, r.cfg.BlockBackoffCap
	}

	backoff := expBackoff(base, cap, st.consecutiveErrors)
	jitter := backoffJitterMin + r.rng.Float64()*(backoffJitterMax-backoffJitterMin)
	backoff = time.Duration(float64(backoff) * jitter)

	decision := BackoffDecision{Delay: backoff}
	if retryAfter > backoff {
		decision.Delay = retryAfter
		decision.FromServerHint = true
	}

	decision.ResumeAt = r.now().Add(decision.Delay)
	st.backoffUntil = decision.ResumeAt
	return decision
}

// expBackoff computes base * 2^(count-1) bounded by cap, without overflow.
func expBackoff(base, cap time.Duration, count int) time.Duration {
	if count < 1 {
		count = 1
	}
	backoff := base
	for i := 1; i < count; i++ {
		backoff *= 2
		if backoff >= cap || backoff < 0 {
			return cap
		}
	}
	if backoff > cap {
		return cap
	}
	return backoff
}

// RecordSuccess resets the consecutive error count. It deliberately does
// not clear backoffUntil or any dead-URL entries: those are independent
// signals with their own expiry.
func (r *Registry) RecordSuccess(host string) {
	st := r.getOrCreate(host)

	st.stateMu.Lock()
	st.consecutiveErrors = 0
	st.stateMu.Unlock()
}

// ConsecutiveErrors returns the host's current error streak.
func (r *Registry) ConsecutiveErrors(host string) int {
	st := r.lookup(host)
	if st == nil {
		return 0
	}
	st.stateMu.Lock()
	defer st.stateMu.Unlock()
	return st.consecutiveErrors
}

// WithHostLock runs fn while holding the host's network lock, guaranteeing
// at most one in-flight request per host. The pacing and error bookkeeping
// assume serialized access; concurrent unsynchronized calls would corrupt
// lastRequestAt and look like parallel connections from one fingerprint.
// Different hosts proceed with no contention. No fairness order is
// promised among waiters for the same host.
func (r *Registry) WithHostLock(host string, fn func() error) error {
	st := r.getOrCreate(host)

	st.netMu.Lock()
	defer st.netMu.Unlock()
	return fn()
}

// forceBackoff pins a host's backoff window, for tests.
func (r *Registry) forceBackoff(host string, until time.Time) {
	st := r.getOrCreate(host)
	st.stateMu.Lock()
	st.backoffUntil = until
	st.stateMu.Unlock()
}
