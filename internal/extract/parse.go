// internal/extract/parse.go
package extract

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
)

// headData is what structured page metadata yields before any body
// heuristics run.
type headData struct {
	title     string
	author    string
	published *time.Time
	body      string
	page      map[string]string
}

// metaSelectors lists where each head field hides, in precedence order.
var (
	titleMetaProps  = []string{"og:title", "twitter:title"}
	authorMetaNames = []string{"author", "article:author", "parsely-author", "sailthru.author"}
	dateMetaProps   = []string{"article:published_time", "og:article:published_time", "datePublished", "date", "parsely-pub-date", "sailthru.date"}
	pageMetaProps   = []string{"og:site_name", "og:description", "og:type", "og:image", "og:locale"}
)

// parseHead harvests structured metadata: OpenGraph/standard meta tags
// first, JSON-LD second (it fills gaps but never overrides a tag), the
// document <title> as the last resort for the title.
func parseHead(doc *goquery.Document) headData {
	h := headData{page: map[string]string{}}

	for _, prop := range titleMetaProps {
		if v := metaContent(doc, prop); v != "" {
			h.title = v
			break
		}
	}

	for _, name := range authorMetaNames {
		if v := metaContent(doc, name); v != "" {
			h.author = v
			break
		}
	}

	for _, prop := range dateMetaProps {
		if v := metaContent(doc, prop); v != "" {
			if t := parseDate(v); t != nil {
				h.published = t
				break
			}
		}
	}

	for _, prop := range pageMetaProps {
		if v := metaContent(doc, prop); v != "" {
			key := strings.TrimPrefix(prop, "og:")
			h.page[key] = v
		}
	}
	if v := metaContent(doc, "description"); v != "" && h.page["description"] == "" {
		h.page["description"] = v
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && href != "" {
		h.page["canonical"] = href
	}

	mergeJSONLD(doc, &h)

	if h.title == "" {
		h.title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return h
}

// metaContent reads a meta tag's content by property or name attribute.
func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"], meta[itemprop="` + key + `"]`)
	if content, ok := sel.First().Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

// jsonLDDoc covers the NewsArticle/Article shapes that matter here. Author
// is left raw because publishers emit a string, an object, or an array of
// either.
type jsonLDDoc struct {
	Type          json.RawMessage `json:"@type"`
	Graph         []jsonLDDoc     `json:"@graph"`
	Headline      string          `json:"headline"`
	Author        json.RawMessage `json:"author"`
	DatePublished string          `json:"datePublished"`
	ArticleBody   string          `json:"articleBody"`
}

var articleLDTypes = map[string]struct{}{
	"Article": {}, "NewsArticle": {}, "BlogPosting": {}, "ReportageNewsArticle": {},
}

// mergeJSONLD fills empty head fields from ld+json blocks.
func mergeJSONLD(doc *goquery.Document, h *headData) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var ld jsonLDDoc
		if err := json.Unmarshal([]byte(s.Text()), &ld); err != nil {
			// Some publishers wrap everything in a top-level array.
			var many []jsonLDDoc
			if err := json.Unmarshal([]byte(s.Text()), &many); err != nil {
				return true
			}
			ld.Graph = many
		}

		docs := append([]jsonLDDoc{ld}, ld.Graph...)
		for _, d := range docs {
			if !isArticleLD(d.Type) {
				continue
			}
			if h.title == "" && d.Headline != "" {
				h.title = strings.TrimSpace(d.Headline)
			}
			if h.author == "" {
				h.author = ldAuthorName(d.Author)
			}
			if h.published == nil && d.DatePublished != "" {
				h.published = parseDate(d.DatePublished)
			}
			if h.body == "" && d.ArticleBody != "" {
				h.body = strings.TrimSpace(d.ArticleBody)
			}
		}
		return h.title == "" || h.author == "" || h.published == nil || h.body == ""
	})
}

func isArticleLD(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var single string
	if json.Unmarshal(raw, &single) == nil {
		_, ok := articleLDTypes[single]
		return ok
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		for _, t := range many {
			if _, ok := articleLDTypes[t]; ok {
				return true
			}
		}
	}
	return false
}

// ldAuthorName pulls a name out of whichever author shape the page used.
func ldAuthorName(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var name string
	if json.Unmarshal(raw, &name) == nil {
		return strings.TrimSpace(name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &obj) == nil && obj.Name != "" {
		return strings.TrimSpace(obj.Name)
	}
	var objs []struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(raw, &objs) == nil {
		names := make([]string, 0, len(objs))
		for _, o := range objs {
			if o.Name != "" {
				names = append(names, strings.TrimSpace(o.Name))
			}
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// parseDate runs the lenient parser over a candidate value, rejecting
// whatever it cannot make sense of.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := dateparse.ParseAny(value)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

// readableContent runs the readability extraction over a document and
// returns its plain text, empty when nothing article-shaped was found.
func readableContent(html, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}
