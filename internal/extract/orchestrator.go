// internal/extract/orchestrator.go
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/utils"
	"github.com/steltix/newsgrab/pkg/types"
)

// Request is one extraction job. When HTML is set the cascade runs
// entirely offline on the supplied document.
type Request struct {
	URL  string
	HTML string
}

// Config tunes the orchestrator.
type Config struct {
	// URLDateHosts is the allow-list for the URL-path date fallback. Only
	// hosts known to embed dates in their paths belong here; an empty
	// list disables the fallback entirely.
	URLDateHosts []string `yaml:"url_date_hosts" json:"url_date_hosts"`
}

// Orchestrator runs the cascade and assembles the final record. The
// result is always well-formed: every field carries provenance, absent
// ones explicitly so.
type Orchestrator struct {
	strategies []Strategy
	supplied   Strategy
	dead       *deadcache.Cache
	cfg        Config

	cleaner   BylineCleaner
	telemetry Telemetry
	log       utils.Logger
	now       func() time.Time

	urlDateHosts map[string]struct{}
}

// NewOrchestrator wires a cascade over the given strategies, cheapest
// first. dead may be nil when negative caching is handled elsewhere.
func NewOrchestrator(cfg Config, strategies []Strategy, dead *deadcache.Cache, log utils.Logger) *Orchestrator {
	if log == nil {
		log = utils.NopLogger{}
	}
	o := &Orchestrator{
		strategies: strategies,
		supplied:   NewSuppliedStrategy(),
		dead:       dead,
		cfg:        cfg,
		cleaner:    basicBylineCleaner{},
		telemetry:  NopTelemetry{},
		log:        log,
		now:        time.Now,
	}
	if len(cfg.URLDateHosts) > 0 {
		o.urlDateHosts = make(map[string]struct{}, len(cfg.URLDateHosts))
		for _, h := range cfg.URLDateHosts {
			o.urlDateHosts[h] = struct{}{}
		}
	}
	return o
}

// DefaultStrategies is the standard cascade: structured metadata, then
// selector heuristics, then a headless render. registry is the per-host
// state shared with the fetcher; the render tier consults and updates it
// through the same guard path.
func DefaultStrategies(fetcher Fetcher, pool Renderer, registry *domain.Registry) []Strategy {
	s := []Strategy{
		NewMetaStrategy(fetcher),
		NewDOMStrategy(fetcher),
	}
	if pool != nil {
		s = append(s, NewBrowserStrategy(pool, registry))
	}
	return s
}

// SetTelemetry replaces the no-op telemetry sink.
func (o *Orchestrator) SetTelemetry(t Telemetry) {
	if t != nil {
		o.telemetry = t
	}
}

// SetBylineCleaner replaces the default byline normalization.
func (o *Orchestrator) SetBylineCleaner(c BylineCleaner) {
	if c != nil {
		o.cleaner = c
	}
}

// Extract runs the cascade for one request. The returned result is always
// non-nil and well-formed; a non-nil error means the cascade was aborted
// by a fatal classification (surfaced as *detect.BlockError) or by the
// context, and the result holds whatever was gathered before the abort.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (*types.ArticleResult, error) {
	result := &types.ArticleResult{
		URL:         req.URL,
		ExtractedAt: o.now(),
		Metadata: types.ResultMetadata{
			ExtractionMethod:  types.MethodNone,
			ExtractionMethods: make(map[string]string, len(allFields)),
		},
	}
	for _, f := range allFields {
		result.Metadata.ExtractionMethods[f] = types.MethodNone
	}

	// Known-dead URLs never reach the network again within the TTL.
	if req.HTML == "" && o.dead != nil && o.dead.IsDead(req.URL) {
		o.telemetry.DeadCacheHit(req.URL)
		return result, &detect.BlockError{
			URL:   req.URL,
			Class: detect.PermanentNotFound,
		}
	}

	strategies := o.strategies
	if req.HTML != "" {
		strategies = []Strategy{o.supplied}
	}

	target := &Target{URL: req.URL, HTML: req.HTML}
	var merged Fields
	provenance := result.Metadata.ExtractionMethods

	var fatal error
	for _, strategy := range strategies {
		missing := missingFields(&merged)
		if len(missing) == 0 {
			break
		}

		o.telemetry.StartMethod(req.URL, strategy.Name())
		attempt, err := strategy.Extract(ctx, target)
		o.telemetry.EndMethod(req.URL, strategy.Name(), err)

		if err != nil {
			var blockErr *detect.BlockError
			if errors.As(err, &blockErr) {
				fatal = err
				break
			}
			if ctx.Err() != nil {
				fatal = ctx.Err()
				break
			}
			// Strategy-local failure: the next tier may still deliver.
			o.log.WithFields(map[string]interface{}{
				"url":      req.URL,
				"strategy": strategy.Name(),
				"error":    err.Error(),
			}).Warn("extraction strategy failed")
			continue
		}
		if attempt == nil {
			continue
		}

		if attempt.HTTPStatus != 0 {
			result.Metadata.HTTPStatus = attempt.HTTPStatus
			result.Metadata.ProxyUsed = attempt.ProxyUsed
			result.Metadata.ProxyURL = attempt.ProxyURL
			o.telemetry.SetHTTPMetrics(req.URL, attempt.HTTPStatus, attempt.ResponseSize, attempt.Duration)
		}
		if target.HTML == "" && attempt.HTML != "" {
			target.HTML = attempt.HTML
		}

		mergeAttempt(&merged, provenance, &attempt.Fields, strategy.Name())
	}

	o.finalize(result, &merged, provenance, req.URL)
	return result, fatal
}

// missingFields lists fields not yet meaningfully filled.
func missingFields(merged *Fields) []string {
	var missing []string
	for _, f := range allFields {
		if !merged.meaningful(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// mergeAttempt folds a strategy's harvest into the accumulated fields.
// First meaningful value wins; a later strategy never overwrites an
// earlier one.
func mergeAttempt(merged *Fields, provenance map[string]string, got *Fields, method string) {
	if !merged.meaningful(types.FieldTitle) && got.meaningful(types.FieldTitle) {
		merged.Title = got.Title
		provenance[types.FieldTitle] = method
	}
	if !merged.meaningful(types.FieldAuthor) && got.meaningful(types.FieldAuthor) {
		merged.AuthorRaw = got.AuthorRaw
		provenance[types.FieldAuthor] = method
	}
	if !merged.meaningful(types.FieldContent) && got.meaningful(types.FieldContent) {
		merged.Content = got.Content
		provenance[types.FieldContent] = method
	}
	if !merged.meaningful(types.FieldPublishDate) && got.meaningful(types.FieldPublishDate) {
		merged.PublishDate = got.PublishDate
		provenance[types.FieldPublishDate] = method
	}
	if !merged.meaningful(types.FieldMetadata) && got.meaningful(types.FieldMetadata) {
		merged.Metadata = got.Metadata
		provenance[types.FieldMetadata] = method
	}
}

// finalize copies the merged fields into the result, applies the URL date
// fallback and byline cleaning, and computes the primary method.
func (o *Orchestrator) finalize(result *types.ArticleResult, merged *Fields, provenance map[string]string, rawURL string) {
	result.Title = merged.Title
	result.Content = merged.Content
	result.PublishDate = merged.PublishDate
	result.Metadata.Page = merged.Metadata

	result.AuthorRaw = merged.AuthorRaw
	result.Author = o.cleaner.Clean(merged.AuthorRaw)

	if !merged.meaningful(types.FieldPublishDate) && o.urlDateAllowed(rawURL) {
		if t, info := dateFromURL(rawURL, o.now()); t != nil {
			result.PublishDate = t
			provenance[types.FieldPublishDate] = types.MethodURLFallback
			if result.Metadata.Fallbacks == nil {
				result.Metadata.Fallbacks = make(map[string]types.FallbackInfo, 1)
			}
			result.Metadata.Fallbacks[types.FieldPublishDate] = *info
		}
	}

	result.Metadata.ExtractionMethod = types.MethodNone
	for _, f := range fieldPriority {
		if provenance[f] != types.MethodNone {
			result.Metadata.ExtractionMethod = provenance[f]
			break
		}
	}

	o.telemetry.Finalize(result)
}

// urlDateAllowed checks the fallback host allow-list. No list, no
// fallback: path numbers on arbitrary hosts are IDs more often than
// dates.
func (o *Orchestrator) urlDateAllowed(rawURL string) bool {
	if o.urlDateHosts == nil {
		return false
	}
	_, ok := o.urlDateHosts[utils.HostOf(rawURL)]
	return ok
}
