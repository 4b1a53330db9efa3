// internal/extract/browser.go
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/steltix/newsgrab/internal/browser"
	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/internal/domain"
	"github.com/steltix/newsgrab/internal/utils"
	"github.com/steltix/newsgrab/pkg/types"
)

// Renderer is the browser session source. Satisfied by *browser.Pool.
type Renderer interface {
	Acquire() (browser.Driver, error)
	Poison()
}

// browserStrategy is the expensive last resort: render the page in
// headless Chrome and run both the structured and heuristic parsers over
// the result. A render is a network attempt like any other, so it goes
// through the same per-host guard path as the plain fetcher: backoff
// refusal, host lock, pacing, and registry updates on the outcome.
type browserStrategy struct {
	pool     Renderer
	registry *domain.Registry
}

// NewBrowserStrategy builds the headless-render strategy. registry is
// required; it holds the same per-host state the fetch path consults, so
// a host suppressed by one tier stays suppressed for the other.
func NewBrowserStrategy(pool Renderer, registry *domain.Registry) Strategy {
	return &browserStrategy{pool: pool, registry: registry}
}

func (s *browserStrategy) Name() string { return types.MethodBrowser }

func (s *browserStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
	host := utils.HostOf(target.URL)

	// Refuse immediately during an active backoff window, same as the
	// fetch path: a render pinned behind a suppression window would hold
	// a worker for minutes.
	if remaining := s.registry.BackoffRemaining(host); remaining > 0 {
		return nil, &detect.BlockError{
			URL:        target.URL,
			Host:       host,
			Class:      detect.RateLimited,
			RetryAfter: remaining,
		}
	}

	var html string
	err := s.registry.WithHostLock(host, func() error {
		// Re-check under the lock: a waiter may have been queued behind
		// the attempt that triggered the backoff.
		if remaining := s.registry.BackoffRemaining(host); remaining > 0 {
			return &detect.BlockError{
				URL:        target.URL,
				Host:       host,
				Class:      detect.RateLimited,
				RetryAfter: remaining,
			}
		}

		driver, err := s.pool.Acquire()
		if err != nil {
			return fmt.Errorf("acquire browser: %w", err)
		}

		if err := s.registry.Pace(ctx, host); err != nil {
			return err
		}

		rendered, err := driver.Render(ctx, target.URL)
		if err != nil {
			// A caller-cancelled context surfaces the same way a dead
			// session does; only poison when the session itself failed.
			if browser.SessionFault(err) && ctx.Err() == nil {
				s.pool.Poison()
			}
			var blockErr *detect.BlockError
			if errors.As(err, &blockErr) {
				if blockErr.Host == "" {
					blockErr.Host = host
				}
				s.registry.RecordFailure(host, blockErr.Class.BlockTier(), 0)
			}
			return err
		}

		s.registry.RecordSuccess(host)
		html = rendered
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered document: %w", err)
	}

	attempt := &Attempt{HTML: html}
	attempt.Fields = mergeParsed(doc, html, target.URL)
	return attempt, nil
}

// mergeParsed combines structured head data with selector heuristics and
// readability content, head data winning per field.
func mergeParsed(doc *goquery.Document, html, pageURL string) Fields {
	head := parseHead(doc)
	scraped := scrapeFields(doc)

	f := Fields{
		Title:       head.title,
		AuthorRaw:   head.author,
		PublishDate: head.published,
		Metadata:    head.page,
		Content:     readableContent(html, pageURL),
	}
	if !MeaningfulContent(f.Content) {
		f.Content = head.body
	}
	if f.Title == "" {
		f.Title = scraped.Title
	}
	if f.AuthorRaw == "" {
		f.AuthorRaw = scraped.AuthorRaw
	}
	if f.PublishDate == nil {
		f.PublishDate = scraped.PublishDate
	}
	if !MeaningfulContent(f.Content) {
		f.Content = scraped.Content
	}
	return f
}
