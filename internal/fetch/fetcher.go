// internal/fetch/fetcher.go

// Package fetch performs guarded HTTP fetches. Every call goes through the
// same path: host lock -> identity session -> pacing -> request ->
// classification, with the domain registry updated on every outcome. A
// host inside an active backoff window gets an immediate typed refusal
// instead of a blocking wait, so callers can reschedule rather than occupy
// a worker.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/identity"
	"github.com/steltix/newsgrab/internal/utils"
)

// DefaultMaxBodyBytes bounds how much of a response is read.
const DefaultMaxBodyBytes = 10 << 20

// Config tunes the fetcher.
type Config struct {
	// GlobalRateLimit is an optional requests-per-second ceiling across
	// all hosts, applied before per-host pacing. Zero disables it.
	GlobalRateLimit float64 `yaml:"global_rate_limit" json:"global_rate_limit"`
	GlobalBurst     int     `yaml:"global_burst" json:"global_burst"`

	MaxBodyBytes int64 `yaml:"max_body_bytes" json:"max_body_bytes"`
}

// Metrics receives fetch-path events. Implementations must be safe for
// concurrent use; a nil Metrics disables reporting.
type Metrics interface {
	RecordRequest(host string, statusCode int, duration time.Duration)
	RecordBackoff(host string, blockTier bool)
	RecordRotation(host string)
}

// Response is a fully-read, charset-normalized HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
	RawSize    int64
	FinalURL   string
	Duration   time.Duration
	ProxyUsed  bool
	ProxyURL   string
}

// Fetcher executes guarded GETs.
type Fetcher struct {
	registry *domain.Registry
	rotator  *identity.Rotator
	dead     *deadcache.Cache
	limiter  *rate.Limiter
	maxBody  int64
	log      utils.Logger
	metrics  Metrics
}

// New creates a fetcher. registry, rotator, and dead are required.
func New(cfg Config, registry *domain.Registry, rotator *identity.Rotator, dead *deadcache.Cache, log utils.Logger, metrics Metrics) *Fetcher {
	if log == nil {
		log = utils.NopLogger{}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	var limiter *rate.Limiter
	if cfg.GlobalRateLimit > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRateLimit), burst)
	}

	return &Fetcher{
		registry: registry,
		rotator:  rotator,
		dead:     dead,
		limiter:  limiter,
		maxBody:  maxBody,
		log:      log,
		metrics:  metrics,
	}
}

// DeadCache exposes the negative cache shared with the orchestrator.
func (f *Fetcher) DeadCache() *deadcache.Cache { return f.dead }

// Fetch performs one guarded GET. Fatal classifications come back as
// *detect.BlockError after the registry's backoff state has been updated;
// transport-level failures come back as plain errors and do not escalate
// backoff (they are recoverable by the next strategy).
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	host := u.Hostname()

	// Refuse immediately during an active backoff window; blocking here
	// would pin a worker for minutes.
	if remaining := f.registry.BackoffRemaining(host); remaining > 0 {
		return nil, &detect.BlockError{
			URL:        rawURL,
			Host:       host,
			Class:      detect.RateLimited,
			RetryAfter: remaining,
		}
	}

	var resp *Response
	lockErr := f.registry.WithHostLock(host, func() error {
		// Re-check under the lock: a waiter may have been queued behind
		// the request that triggered the backoff.
		if remaining := f.registry.BackoffRemaining(host); remaining > 0 {
			return &detect.BlockError{
				URL:        rawURL,
				Host:       host,
				Class:      detect.RateLimited,
				RetryAfter: remaining,
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		id, rotated, err := f.rotator.SessionFor(host)
		if err != nil {
			return fmt.Errorf("identity session for %s: %w", host, err)
		}
		if rotated && f.metrics != nil {
			f.metrics.RecordRotation(host)
		}

		if err := f.registry.Pace(ctx, host); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		id.ApplyHeaders(req, f.rotator.RefererFor(rawURL))

		start := time.Now()
		httpResp, err := id.Client.Do(req)
		duration := time.Since(start)
		if err != nil {
			// Connection/timeout failures are strategy-local: the next
			// strategy may still succeed, so no backoff escalation.
			return fmt.Errorf("request to %s failed: %w", host, err)
		}
		defer httpResp.Body.Close()

		body, rawSize, err := readBody(httpResp, f.maxBody)
		if err != nil {
			return fmt.Errorf("read response from %s: %w", host, err)
		}

		if f.metrics != nil {
			f.metrics.RecordRequest(host, httpResp.StatusCode, duration)
		}

		class, variant := detect.Classify(httpResp.StatusCode, body)
		if class == detect.Success {
			f.registry.RecordSuccess(host)
			resp = &Response{
				StatusCode: httpResp.StatusCode,
				Header:     httpResp.Header,
				Body:       decodeCharset(body, httpResp.Header.Get("Content-Type")),
				RawSize:    rawSize,
				FinalURL:   httpResp.Request.URL.String(),
				Duration:   duration,
				ProxyUsed:  id.ProxyURL != nil,
			}
			if id.ProxyURL != nil {
				resp.ProxyURL = id.ProxyURL.String()
			}
			return nil
		}

		blockErr := &detect.BlockError{
			URL:        rawURL,
			Host:       host,
			StatusCode: httpResp.StatusCode,
			Class:      class,
			Variant:    variant,
		}

		var retryAfter time.Duration
		if httpResp.StatusCode == http.StatusTooManyRequests {
			if d, ok := detect.ParseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now()); ok {
				retryAfter = d
				blockErr.RetryAfter = d
			}
		}

		decision := f.registry.RecordFailure(host, class.BlockTier(), retryAfter)
		if f.metrics != nil {
			f.metrics.RecordBackoff(host, class.BlockTier())
		}
		f.log.WithFields(map[string]interface{}{
			"host":   host,
			"status": httpResp.StatusCode,
			"class":  class.String(),
			"resume": decision.ResumeAt.Format(time.RFC3339),
		}).Warn("request failed, host suppressed")

		if detect.CacheableDead(httpResp.StatusCode) {
			f.dead.MarkDead(rawURL)
		}
		return blockErr
	})

	if lockErr != nil {
		return nil, lockErr
	}
	return resp, nil
}
