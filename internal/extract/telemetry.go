// internal/extract/telemetry.go
package extract

import (
	"strings"
	"time"

	"github.com/steltix/newsgrab/pkg/types"
)

// Telemetry observes cascade progress. The orchestrator calls it on every
// strategy boundary, once per network attempt that produced a response,
// and once per finished result; implementations must be safe for
// concurrent use. NopTelemetry is the default.
type Telemetry interface {
	StartMethod(url, method string)
	EndMethod(url, method string, err error)
	SetHTTPMetrics(url string, statusCode int, responseSize int64, duration time.Duration)
	DeadCacheHit(url string)
	Finalize(result *types.ArticleResult)
}

// NopTelemetry discards all events.
type NopTelemetry struct{}

func (NopTelemetry) StartMethod(url, method string)          {}
func (NopTelemetry) EndMethod(url, method string, err error) {}
func (NopTelemetry) SetHTTPMetrics(url string, statusCode int, responseSize int64, duration time.Duration) {
}
func (NopTelemetry) DeadCacheHit(url string)              {}
func (NopTelemetry) Finalize(result *types.ArticleResult) {}

// BylineCleaner normalizes a raw byline into a display author. Sites embed
// publisher-specific noise in bylines; embedders can plug in their own
// rules while the raw value is always preserved alongside.
type BylineCleaner interface {
	Clean(raw string) string
}

// basicBylineCleaner trims whitespace and the universal "By " prefix.
type basicBylineCleaner struct{}

func (basicBylineCleaner) Clean(raw string) string {
	s := strings.TrimSpace(raw)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"by ", "by: ", "written by "} {
		if strings.HasPrefix(lower, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
