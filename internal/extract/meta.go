// internal/extract/meta.go
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/steltix/newsgrab/pkg/types"
)

// metaStrategy is the cheap first pass: structured head metadata plus a
// readability sweep over the body. No DOM heuristics; those belong to the
// next tier.
type metaStrategy struct {
	fetcher Fetcher
}

// NewMetaStrategy builds the structured-metadata strategy.
func NewMetaStrategy(fetcher Fetcher) Strategy {
	return &metaStrategy{fetcher: fetcher}
}

func (s *metaStrategy) Name() string { return types.MethodMeta }

func (s *metaStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
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

	head := parseHead(doc)
	content := readableContent(html, target.URL)
	if !MeaningfulContent(content) && MeaningfulContent(head.body) {
		content = head.body
	}
	attempt.Fields = Fields{
		Title:       head.title,
		AuthorRaw:   head.author,
		PublishDate: head.published,
		Metadata:    head.page,
		Content:     content,
	}
	return attempt, nil
}
