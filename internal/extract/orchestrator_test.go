// internal/extract/orchestrator_test.go
package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steltix/newsgrab/internal/deadcache"
	"github.com/steltix/newsgrab/internal/detect"
	"github.com/steltix/newsgrab/pkg/types"
)

// stubStrategy returns canned fields and counts invocations.
type stubStrategy struct {
	name  string
	field Fields
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Attempt{Fields: s.field}, nil
}

func dateOf(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newTestOrchestrator(strategies ...Strategy) *Orchestrator {
	return NewOrchestrator(Config{}, strategies, nil, nil)
}

func TestCascadeStopsWhenComplete(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{
		Title:       "Complete Headline",
		AuthorRaw:   "Jane Reporter",
		Content:     "A body easily long enough to pass the minimum content length check, twice over.",
		PublishDate: dateOf("2024-03-01"),
		Metadata:    map[string]string{"site_name": "Example News"},
	}}
	second := &stubStrategy{name: "dom"}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "a complete harvest must not run later strategies")
	assert.Equal(t, "Complete Headline", result.Title)
	assert.Equal(t, "meta", result.Metadata.ExtractionMethod)
}

func TestMergeNeverOverwrites(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{Title: "First Title"}}
	second := &stubStrategy{name: "dom", field: Fields{
		Title:   "Second Title",
		Content: "Long enough article body for the predicate, padded out with extra words to be sure.",
	}}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, "First Title", result.Title)
	assert.Equal(t, "meta", result.Metadata.ExtractionMethods[types.FieldTitle])
	assert.Equal(t, "dom", result.Metadata.ExtractionMethods[types.FieldContent])
}

func TestMergeOrderIndependentForDisjointFields(t *testing.T) {
	titleOnly := Fields{Title: "Disjoint Headline"}
	rest := Fields{
		AuthorRaw: "Staff Writer",
		Content:   "A body easily long enough to pass the minimum content length check, twice over.",
	}

	run := func(a, b Fields) *types.ArticleResult {
		o := newTestOrchestrator(
			&stubStrategy{name: "meta", field: a},
			&stubStrategy{name: "dom", field: b},
		)
		result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
		require.NoError(t, err)
		return result
	}

	forward := run(titleOnly, rest)
	reverse := run(rest, titleOnly)

	assert.Equal(t, forward.Title, reverse.Title)
	assert.Equal(t, forward.Author, reverse.Author)
	assert.Equal(t, forward.Content, reverse.Content)
}

func TestPrimaryMethodFollowsFieldPriority(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{Title: "Only A Title"}}
	second := &stubStrategy{name: "browser", field: Fields{
		Content: "The browser found the body, a perfectly serviceable stretch of article text here.",
	}}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	// Content outranks title for the primary method.
	assert.Equal(t, "browser", result.Metadata.ExtractionMethod)
}

func TestMeaninglessValueDoesNotClaimProvenance(t *testing.T) {
	// "the" is a fragment token; it must neither be kept nor block the
	// next strategy's real title.
	first := &stubStrategy{name: "meta", field: Fields{Title: "the"}}
	second := &stubStrategy{name: "dom", field: Fields{Title: "Real Headline"}}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, "Real Headline", result.Title)
	assert.Equal(t, "dom", result.Metadata.ExtractionMethods[types.FieldTitle])
}

func TestFatalErrorAbortsCascade(t *testing.T) {
	first := &stubStrategy{name: "meta", err: &detect.BlockError{
		URL:   "https://news.example.com/a",
		Class: detect.BotBlocked,
	}}
	second := &stubStrategy{name: "dom", field: Fields{Title: "Never Seen"}}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})

	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.BotBlocked, blockErr.Class)
	assert.Equal(t, 0, second.calls, "fatal classification must stop the cascade")

	// The result is still well-formed with explicit absent provenance.
	require.NotNil(t, result)
	assert.Equal(t, types.MethodNone, result.Metadata.ExtractionMethod)
	assert.Equal(t, types.MethodNone, result.Metadata.ExtractionMethods[types.FieldTitle])
}

func TestRecoverableErrorContinuesCascade(t *testing.T) {
	first := &stubStrategy{name: "meta", err: errors.New("malformed document")}
	second := &stubStrategy{name: "dom", field: Fields{Title: "Recovered Headline"}}

	o := newTestOrchestrator(first, second)
	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, 1, second.calls)
	assert.Equal(t, "Recovered Headline", result.Title)
}

func TestDeadURLShortCircuits(t *testing.T) {
	dead := deadcache.New(time.Hour)
	target := "https://news.example.com/gone"
	dead.MarkDead(target)

	first := &stubStrategy{name: "meta", field: Fields{Title: "Should Not Run"}}
	o := NewOrchestrator(Config{}, []Strategy{first}, dead, nil)

	result, err := o.Extract(context.Background(), Request{URL: target})

	var blockErr *detect.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, detect.PermanentNotFound, blockErr.Class)
	assert.Equal(t, 0, first.calls, "a cached-dead URL must cost zero strategy runs")
	require.NotNil(t, result)
	assert.Equal(t, types.MethodNone, result.Metadata.ExtractionMethod)
}

func TestDeadURLRetriedAfterExpiry(t *testing.T) {
	dead := deadcache.New(time.Hour)
	target := "https://news.example.com/maybe-back"
	dead.MarkDeadFor(target, -time.Second)

	first := &stubStrategy{name: "meta", field: Fields{Title: "Back Online"}}
	o := NewOrchestrator(Config{}, []Strategy{first}, dead, nil)

	result, err := o.Extract(context.Background(), Request{URL: target})
	require.NoError(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, "Back Online", result.Title)
}

func TestSuppliedHTMLSkipsNetworkStrategies(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{Title: "Network Title"}}
	o := newTestOrchestrator(first)

	html := `<html><head><meta property="og:title" content="Supplied Headline"/></head>
	<body><article><p>` + longParagraph() + `</p></article></body></html>`

	result, err := o.Extract(context.Background(), Request{
		URL:  "https://news.example.com/a",
		HTML: html,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, first.calls, "supplied HTML must not hit the network cascade")
	assert.Equal(t, "Supplied Headline", result.Title)
	assert.Equal(t, types.MethodSupplied, result.Metadata.ExtractionMethods[types.FieldTitle])
	assert.Equal(t, types.MethodSupplied, result.Metadata.ExtractionMethod)
}

func TestURLDateFallback(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{Title: "No Date Here"}}
	o := NewOrchestrator(Config{URLDateHosts: []string{"news.example.com"}}, []Strategy{first}, nil, nil)

	result, err := o.Extract(context.Background(), Request{
		URL: "https://news.example.com/politics/2023/11/05/some-story",
	})
	require.NoError(t, err)

	require.NotNil(t, result.PublishDate)
	assert.Equal(t, 2023, result.PublishDate.Year())
	assert.Equal(t, time.November, result.PublishDate.Month())
	assert.Equal(t, 5, result.PublishDate.Day())
	assert.Equal(t, types.MethodURLFallback, result.Metadata.ExtractionMethods[types.FieldPublishDate])

	info, ok := result.Metadata.Fallbacks[types.FieldPublishDate]
	require.True(t, ok)
	assert.Equal(t, "url_path", info.Source)
	assert.Equal(t, "/2023/11/05/", info.Raw)
}

func TestURLDateFallbackDoesNotOverrideExtractedDate(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{PublishDate: dateOf("2022-01-15")}}
	o := NewOrchestrator(Config{URLDateHosts: []string{"news.example.com"}}, []Strategy{first}, nil, nil)

	result, err := o.Extract(context.Background(), Request{
		URL: "https://news.example.com/2023/11/05/some-story",
	})
	require.NoError(t, err)

	assert.Equal(t, 2022, result.PublishDate.Year())
	assert.Equal(t, "meta", result.Metadata.ExtractionMethods[types.FieldPublishDate])
	assert.Empty(t, result.Metadata.Fallbacks)
}

func TestURLDateFallbackHostAllowlist(t *testing.T) {
	first := &stubStrategy{name: "meta"}
	o := NewOrchestrator(Config{URLDateHosts: []string{"allowed.example.com"}}, []Strategy{first}, nil, nil)

	result, err := o.Extract(context.Background(), Request{
		URL: "https://other.example.com/2023/11/05/story",
	})
	require.NoError(t, err)
	assert.Nil(t, result.PublishDate)

	result, err = o.Extract(context.Background(), Request{
		URL: "https://allowed.example.com/2023/11/05/story",
	})
	require.NoError(t, err)
	assert.NotNil(t, result.PublishDate)
}

func TestURLDateFallbackDisabledWithoutAllowlist(t *testing.T) {
	first := &stubStrategy{name: "meta"}
	o := newTestOrchestrator(first)

	result, err := o.Extract(context.Background(), Request{
		URL: "https://news.example.com/2023/11/05/story",
	})
	require.NoError(t, err)
	assert.Nil(t, result.PublishDate)
}

func TestBylineCleaning(t *testing.T) {
	first := &stubStrategy{name: "meta", field: Fields{AuthorRaw: "  By  Jane  Q.  Reporter "}}
	o := newTestOrchestrator(first)

	result, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, "Jane Q. Reporter", result.Author)
	assert.Equal(t, "  By  Jane  Q.  Reporter ", result.AuthorRaw, "raw byline is preserved untouched")
}

func TestTelemetryHooks(t *testing.T) {
	tel := &recordingTelemetry{}
	first := &stubStrategy{name: "meta", err: errors.New("parse failure")}
	second := &stubStrategy{name: "dom", field: Fields{Title: "Headline"}}

	o := newTestOrchestrator(first, second)
	o.SetTelemetry(tel)

	_, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"meta", "dom"}, tel.started)
	assert.Equal(t, 1, tel.errored)
	assert.Equal(t, 1, tel.finalized)
}

// httpStubStrategy reports transport details alongside its fields.
type httpStubStrategy struct {
	stubStrategy
	status   int
	size     int64
	duration time.Duration
}

func (s *httpStubStrategy) Extract(ctx context.Context, target *Target) (*Attempt, error) {
	attempt, err := s.stubStrategy.Extract(ctx, target)
	if attempt != nil {
		attempt.HTTPStatus = s.status
		attempt.ResponseSize = s.size
		attempt.Duration = s.duration
	}
	return attempt, err
}

func TestTelemetryReceivesHTTPMetrics(t *testing.T) {
	tel := &recordingTelemetry{}
	first := &httpStubStrategy{
		stubStrategy: stubStrategy{name: "meta", field: Fields{Title: "Measured Headline"}},
		status:       200,
		size:         4096,
		duration:     120 * time.Millisecond,
	}

	o := newTestOrchestrator(first)
	o.SetTelemetry(tel)

	_, err := o.Extract(context.Background(), Request{URL: "https://news.example.com/a"})
	require.NoError(t, err)

	assert.Equal(t, 200, tel.httpStatus)
	assert.Equal(t, int64(4096), tel.httpSize)
	assert.Equal(t, 120*time.Millisecond, tel.httpTime)
}

type recordingTelemetry struct {
	started    []string
	errored    int
	deadHits   int
	finalized  int
	httpStatus int
	httpSize   int64
	httpTime   time.Duration
}

func (r *recordingTelemetry) DeadCacheHit(url string) {
	r.deadHits++
}

func (r *recordingTelemetry) SetHTTPMetrics(url string, statusCode int, responseSize int64, duration time.Duration) {
	r.httpStatus = statusCode
	r.httpSize = responseSize
	r.httpTime = duration
}

func (r *recordingTelemetry) StartMethod(url, method string) {
	r.started = append(r.started, method)
}

func (r *recordingTelemetry) EndMethod(url, method string, err error) {
	if err != nil {
		r.errored++
	}
}

func (r *recordingTelemetry) Finalize(result *types.ArticleResult) {
	r.finalized++
}

func longParagraph() string {
	return "This paragraph is deliberately long enough to satisfy the minimum article body length requirement used by the content predicate."
}
