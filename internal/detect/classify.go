// internal/detect/classify.go

// Package detect classifies HTTP responses into the error taxonomy used
// across the extraction pipeline. Classification happens exactly once, at
// the point the response is received; every later decision (backoff tier,
// dead-URL caching, cascade abort) reads the typed result instead of
// re-deriving it from error text.
package detect

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Classification identifies the outcome of an HTTP exchange.
type Classification int

const (
	Success Classification = iota
	RedirectAnomaly
	PermanentNotFound
	RateLimited
	BotBlocked
	ServerError
	UnexpectedStatus
	// ParseFailure is a strategy-internal, non-HTTP failure. It is never
	// produced by Classify; strategies use it to tag recoverable errors.
	ParseFailure
)

// String returns the wire name of the classification.
func (c Classification) String() string {
	switch c {
	case Success:
		return "success"
	case RedirectAnomaly:
		return "redirect_anomaly"
	case PermanentNotFound:
		return "permanent_not_found"
	case RateLimited:
		return "rate_limited"
	case BotBlocked:
		return "bot_blocked"
	case ServerError:
		return "server_error"
	case UnexpectedStatus:
		return "unexpected_status"
	case ParseFailure:
		return "parse_failure"
	default:
		return "unknown"
	}
}

// Fatal reports whether the classification aborts the cascade. ParseFailure
// is recovered locally by moving to the next strategy; everything else
// non-success stops the whole extraction.
func (c Classification) Fatal() bool {
	switch c {
	case Success, ParseFailure:
		return false
	default:
		return true
	}
}

// BlockTier reports whether the classification warrants the longer
// CAPTCHA/bot-block backoff tier rather than the ordinary one.
func (c Classification) BlockTier() bool {
	return c == BotBlocked
}

// BlockVariant distinguishes flavors of bot blocking detected in a 403 body.
type BlockVariant string

const (
	VariantNone            BlockVariant = ""
	VariantCloudflare      BlockVariant = "cloudflare"
	VariantGeneric         BlockVariant = "generic"
	VariantSuspiciousShort BlockVariant = "suspicious_short"
)

// suspiciousShortBody is the 403 body size below which a marker-free
// response is still treated as a block page rather than real content.
const suspiciousShortBody = 500

// challengeMarkers identify interstitial challenge pages served in place
// of content.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cf-challenge",
	"cf-browser-verification",
	"challenge-platform",
	"attention required",
	"ddos protection by",
}

// genericBlockMarkers identify plain denial pages.
var genericBlockMarkers = []string{
	"captcha",
	"access denied",
	"verify you are human",
	"are you a robot",
	"blocked",
	"unusual traffic",
}

// BlockError is the typed fatal error surfaced by the fetch path. It
// carries everything the caller and the backoff controller need; callers
// match it with errors.As, never by message text.
type BlockError struct {
	URL        string
	Host       string
	StatusCode int
	Class      Classification
	Variant    BlockVariant

	// RetryAfter is the parsed Retry-After hint, zero when absent or
	// unparseable.
	RetryAfter time.Duration
}

func (e *BlockError) Error() string {
	msg := fmt.Sprintf("%s (status %d)", e.Class, e.StatusCode)
	if e.Variant != VariantNone {
		msg += " variant=" + string(e.Variant)
	}
	if e.Host != "" {
		msg += " host=" + e.Host
	}
	return msg
}

// Classify maps an HTTP status code plus response body to a classification.
// The body is only consulted for ambiguous statuses (403).
func Classify(statusCode int, body []byte) (Classification, BlockVariant) {
	switch {
	case statusCode == http.StatusOK:
		return Success, VariantNone

	case statusCode >= 300 && statusCode < 400:
		// The client follows redirects; seeing one here means the chain
		// did not resolve.
		return RedirectAnomaly, VariantNone

	case statusCode == http.StatusForbidden:
		return BotBlocked, classifyForbiddenBody(body)

	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests:
		return RateLimited, VariantNone

	case isPermanentClientError(statusCode):
		return PermanentNotFound, VariantNone

	case statusCode >= 500 && statusCode <= 505:
		return ServerError, VariantNone

	default:
		return UnexpectedStatus, VariantNone
	}
}

// CacheableDead reports whether the status marks the URL as permanently
// gone and worth negative-caching. Other permanent client errors abort the
// cascade but are not cached.
func CacheableDead(statusCode int) bool {
	return statusCode == http.StatusNotFound || statusCode == http.StatusGone
}

func isPermanentClientError(statusCode int) bool {
	switch statusCode {
	case http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusNotAcceptable,
		http.StatusGone,
		http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

func classifyForbiddenBody(body []byte) BlockVariant {
	text := strings.ToLower(string(body))

	for _, marker := range challengeMarkers {
		if strings.Contains(text, marker) {
			return VariantCloudflare
		}
	}
	for _, marker := range genericBlockMarkers {
		if strings.Contains(text, marker) {
			return VariantGeneric
		}
	}
	if len(body) < suspiciousShortBody {
		return VariantSuspiciousShort
	}
	return VariantGeneric
}

// LooksLikeChallenge reports whether rendered page content is an
// anti-automation challenge rather than an article. Used by the browser
// strategy after navigation, where no status code is available.
func LooksLikeChallenge(html string) bool {
	text := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	for _, marker := range genericBlockMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// ParseRetryAfter parses a Retry-After header value. It accepts a
// non-negative integer seconds count or an HTTP date; garbage values are
// reported as absent so the caller falls back to its own formula.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if when, err := http.ParseTime(value); err == nil {
		d := when.Sub(now)
		if d < 0 {
			return 0, false
		}
		return d, true
	}

	return 0, false
}
