// internal/extract/dom.go
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/steltix/newsgrab/pkg/types"
)

// Heuristic selectors in precedence order. These cover the markup
// conventions the bulk of news CMSes emit; the meta tier already handled
// the sites that publish clean structured data.
var (
	domTitleSelectors = []string{
		"h1.article-title", "h1.entry-title", "h1.headline",
		"header h1", "article h1", "h1",
	}
	domAuthorSelectors = []string{
		`[rel="author"]`, `[itemprop="author"] [itemprop="name"]`, `[itemprop="author"]`,
		".byline a", ".byline", ".author-name", ".article-author", ".author",
	}
	domContentSelectors = []string{
		`[itemprop="articleBody"]`, ".article-body", ".article-content",
		".story-body", ".post-content", ".entry-content", "article", "main",
	}
)

// domStrategy scrapes with CSS heuristics once structured metadata has
// come up short.
type domStrategy struct {
	fetcher Fetcher
}

// NewDOMStrategy builds the selector-heuristic strategy.
func NewDOMStrategy(fetcher Fetcher) Strategy {
	return &domStrategy{fetcher: fetcher}
}

func (s *domStrategy) Name() string { return types.MethodDOM }

func (s *domStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
	attempt := &Attempt{}
	html := target.HTML
	if html == "" {
		resp, err := s.fetcher.Fetch(ctx, target.URL)
		if err != nil {
			return nil, err
		}
		html = resp.Body
		attempt.HTTPStatus = resp.StatusCode
		attempt.ProxyUsed = resp.ProxyUsed
		attempt.ProxyURL = resp.ProxyURL
		attempt.ResponseSize = resp.RawSize
		attempt.Duration = resp.Duration
	}
	attempt.HTML = html

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	attempt.Fields = scrapeFields(doc)
	return attempt, nil
}

// scrapeFields applies the selector heuristics to a parsed document. Also
// used by the browser strategy on rendered HTML.
func scrapeFields(doc *goquery.Document) Fields {
	var f Fields

	for _, sel := range domTitleSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			f.Title = text
			break
		}
	}

	for _, sel := range domAuthorSelectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			f.AuthorRaw = text
			break
		}
	}

	if datetime, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		f.PublishDate = parseDate(datetime)
	}
	if f.PublishDate == nil {
		if text := strings.TrimSpace(doc.Find("time").First().Text()); text != "" {
			f.PublishDate = parseDate(text)
		}
	}

	for _, sel := range domContentSelectors {
		if text := paragraphText(doc.Find(sel).First()); MeaningfulContent(text) {
			f.Content = text
			break
		}
	}
	return f
}

// paragraphText joins a container's paragraphs, falling back to its raw
// text when the markup has no <p> structure.
func paragraphText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return strings.TrimSpace(sel.Text())
}
