// internal/browser/pool.go

// Package browser manages headless Chrome sessions for pages that refuse
// to yield content over plain HTTP. Sessions are expensive, so one live
// session is shared and rebuilt lazily; a session that misbehaves is
// poisoned and the next caller gets a fresh one.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/steltix/newsgrab/internal/utils"
)

// Driver is a single live browser session.
type Driver interface {
	// Render navigates to the URL and returns the post-JavaScript DOM.
	Render(ctx context.Context, url string) (string, error)
	Close() error
}

// Factory builds a new session. Injected so tests never launch Chrome.
type Factory func(cfg Config) (Driver, error)

// poolState tracks the session lifecycle explicitly. There is no "maybe
// stale" state: a session is either usable or it does not exist.
type poolState int

const (
	stateAbsent poolState = iota
	stateReady
)

// Pool owns at most one live driver and rebuilds it on demand.
type Pool struct {
	mu      sync.Mutex
	state   poolState
	driver  Driver
	cfg     Config
	factory Factory
	log     utils.Logger

	rebuilds  int
	onRebuild func()
}

// NewPool creates a pool. A nil factory selects the chromedp driver.
func NewPool(cfg Config, factory Factory, log utils.Logger) *Pool {
	cfg.applyDefaults()
	if factory == nil {
		factory = newChromeDriver
	}
	if log == nil {
		log = utils.NopLogger{}
	}
	return &Pool{
		cfg:     cfg,
		factory: factory,
		log:     log,
	}
}

// Acquire returns the live driver, launching one if none exists. The
// driver stays owned by the pool; callers report faults via Poison rather
// than closing it themselves.
func (p *Pool) Acquire() (Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateReady {
		return p.driver, nil
	}

	d, err := p.factory(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("launch browser session: %w", err)
	}
	p.driver = d
	p.state = stateReady
	p.rebuilds++
	if p.onRebuild != nil {
		p.onRebuild()
	}
	p.log.WithField("rebuilds", p.rebuilds).Debug("browser session launched")
	return d, nil
}

// SetRebuildHook registers a callback fired on every session launch.
func (p *Pool) SetRebuildHook(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onRebuild = fn
}

// Poison discards the current session after a session-level fault (lost
// websocket, dead renderer). The next Acquire launches fresh. Poisoning a
// pool with no session is a no-op.
func (p *Pool) Poison() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateReady {
		return
	}
	if err := p.driver.Close(); err != nil {
		p.log.WithField("error", err.Error()).Warn("closing poisoned browser session")
	}
	p.driver = nil
	p.state = stateAbsent
}

// Close shuts down any live session. The pool remains usable; a later
// Acquire relaunches.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateReady {
		return nil
	}
	err := p.driver.Close()
	p.driver = nil
	p.state = stateAbsent
	return err
}

// Rebuilds returns how many sessions have been launched over the pool's
// lifetime.
func (p *Pool) Rebuilds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebuilds
}
