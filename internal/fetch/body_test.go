// internal/fetch/body_test.go
package fetch

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseWith(encoding string, body []byte) *http.Response {
	h := http.Header{}
	if encoding != "" {
		h.Set("Content-Encoding", encoding)
	}
	return &http.Response{
		Header: h,
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
}

func TestReadBodyPlain(t *testing.T) {
	resp := responseWith("", []byte("plain text"))
	body, size, err := readBody(resp, DefaultMaxBodyBytes)
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(body))
	assert.Equal(t, int64(10), size)
}

func TestReadBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("gzipped payload"))
	gz.Close()

	body, _, err := readBody(responseWith("gzip", buf.Bytes()), DefaultMaxBodyBytes)
	require.NoError(t, err)
	assert.Equal(t, "gzipped payload", string(body))
}

func TestReadBodyZlibDeflate(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte("zlib payload"))
	zw.Close()

	body, _, err := readBody(responseWith("deflate", buf.Bytes()), DefaultMaxBodyBytes)
	require.NoError(t, err)
	assert.Equal(t, "zlib payload", string(body))
}

func TestReadBodyTruncatesAtLimit(t *testing.T) {
	resp := responseWith("", []byte(strings.Repeat("a", 100)))
	body, size, err := readBody(resp, 10)
	require.NoError(t, err)
	assert.Len(t, body, 10)
	assert.Equal(t, int64(10), size)
}

func TestDecodeCharsetFromHeader(t *testing.T) {
	out := decodeCharset([]byte("caf\xe9"), "text/html; charset=iso-8859-1")
	assert.Equal(t, "café", out)
}

func TestDecodeCharsetUTF8Passthrough(t *testing.T) {
	out := decodeCharset([]byte("日本語テキスト"), "text/html; charset=utf-8")
	assert.Equal(t, "日本語テキスト", out)
}

func TestDecodeCharsetUnknownNameFallsBack(t *testing.T) {
	out := decodeCharset([]byte("raw bytes"), "text/html; charset=martian-7")
	assert.Equal(t, "raw bytes", out)
}

func TestDecodeCharsetNoHeaderSniffs(t *testing.T) {
	// Plain ASCII sniffs to an ASCII-compatible charset either way.
	out := decodeCharset([]byte("hello world, a perfectly ordinary sentence"), "")
	assert.Equal(t, "hello world, a perfectly ordinary sentence", out)
}
