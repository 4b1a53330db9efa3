// internal/extract/types.go

// Package extract runs the strategy cascade that turns a URL (or supplied
// HTML) into an article record. Strategies are ordered cheapest first;
// each one only runs while meaningful fields are still missing, and a
// fatal fetch classification stops the whole cascade.
package extract

import (
	"context"
	"time"

	"github.com/steltix/newsgrab/internal/fetch"
)

// Target is the shared working state of one cascade. HTML is filled in by
// the first strategy that obtains a document so later strategies reuse it
// instead of refetching.
type Target struct {
	URL  string
	HTML string
}

// Fields is one strategy's harvest. Zero values mean "not found"; the
// orchestrator applies the per-field meaningfulness predicates before
// merging.
type Fields struct {
	Title       string
	AuthorRaw   string
	Content     string
	PublishDate *time.Time
	Metadata    map[string]string
}

// Attempt is the full outcome of one strategy invocation, including
// transport details when the strategy touched the network.
type Attempt struct {
	Fields Fields
	HTML   string

	HTTPStatus   int
	ProxyUsed    bool
	ProxyURL     string
	ResponseSize int64
	Duration     time.Duration
}

// Strategy is one extraction method in the cascade.
type Strategy interface {
	// Name is the provenance tag recorded for fields this strategy wins.
	Name() string
	Extract(ctx context.Context, target *Target) (*Attempt, error)
}

// Fetcher is the guarded HTTP path strategies fetch through. Satisfied by
// *fetch.Fetcher; narrowed to an interface so tests can substitute canned
// responses.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}
