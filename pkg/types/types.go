// pkg/types/types.go

// Package types defines the public result records produced by newsgrab.
package types

import (
	"time"
)

// Method names recorded as per-field provenance. A field that no strategy
// supplied is explicitly marked MethodNone, never left absent.
const (
	MethodMeta        = "meta"
	MethodDOM         = "dom"
	MethodBrowser     = "browser"
	MethodURLFallback = "url_fallback"
	MethodSupplied    = "supplied"
	MethodNone        = "none"
)

// Field names used as keys in the provenance map.
const (
	FieldTitle       = "title"
	FieldAuthor      = "author"
	FieldContent     = "content"
	FieldPublishDate = "publish_date"
	FieldMetadata    = "metadata"
)

// ArticleResult is the final record for one extraction cascade. It is
// always well-formed: absent fields are zero values and carry MethodNone
// provenance in Metadata.ExtractionMethods.
type ArticleResult struct {
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	AuthorRaw   string         `json:"author_raw"`
	PublishDate *time.Time     `json:"publish_date"`
	Content     string         `json:"content"`
	Metadata    ResultMetadata `json:"metadata"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

// ResultMetadata carries provenance and transport details for one result.
type ResultMetadata struct {
	// ExtractionMethod is the provenance of the highest-priority populated
	// field (content > title > author > publish_date > metadata).
	ExtractionMethod string `json:"extraction_method"`

	// ExtractionMethods maps each field name to the strategy that supplied
	// it, or MethodNone.
	ExtractionMethods map[string]string `json:"extraction_methods"`

	// HTTPStatus is the status of the last network response observed
	// during the cascade, 0 if no network call was made.
	HTTPStatus int `json:"http_status,omitempty"`

	// Fallbacks records non-strategy sources, e.g. a publish date parsed
	// out of the URL path.
	Fallbacks map[string]FallbackInfo `json:"fallbacks,omitempty"`

	// Page metadata harvested from the document (og: properties,
	// description, site name) beyond the structured fields above.
	Page map[string]string `json:"page,omitempty"`

	ProxyUsed bool   `json:"proxy_used"`
	ProxyURL  string `json:"proxy_url,omitempty"`
}

// FallbackInfo describes how a fallback value was derived.
type FallbackInfo struct {
	Source  string `json:"source"`
	Pattern string `json:"pattern,omitempty"`
	Raw     string `json:"raw,omitempty"`
}
