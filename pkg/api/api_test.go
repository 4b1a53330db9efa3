// pkg/api/api_test.go
package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steltix/newsgrab/internal/config"
	"github.com/steltix/newsgrab/internal/output"
	"github.com/steltix/newsgrab/pkg/types"
)

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(nil)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Metrics())
	assert.NotNil(t, c.Logger())
}

func TestNewClientRejectsBadOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Output = &output.Config{Format: "parquet"}

	_, err := NewClient(cfg)
	assert.Error(t, err)
}

func TestExtractHTMLOffline(t *testing.T) {
	c, err := NewClient(nil)
	require.NoError(t, err)
	defer c.Close()

	html := `<html><head>
		<meta property="og:title" content="Offline Headline"/>
		<meta name="author" content="By Jane Doe"/>
	</head><body><article><p>An article body long enough to satisfy the content length predicate used downstream.</p></article></body></html>`

	result, err := c.ExtractHTML(context.Background(), "https://news.example.com/a", html)
	require.NoError(t, err)

	assert.Equal(t, "Offline Headline", result.Title)
	assert.Equal(t, "Jane Doe", result.Author)
	assert.Equal(t, "By Jane Doe", result.AuthorRaw)
	assert.Equal(t, types.MethodSupplied, result.Metadata.ExtractionMethods[types.FieldTitle])
}

func TestWriteResultsWithoutSinkIsNoop(t *testing.T) {
	c, err := NewClient(nil)
	require.NoError(t, err)
	defer c.Close()

	assert.NoError(t, c.WriteResults([]*types.ArticleResult{{URL: "https://x.com/a"}}))
}
