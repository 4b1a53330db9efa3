// internal/fetch/body.go
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// readBody drains a response body up to maxBody bytes, undoing any
// content encoding. Setting Accept-Encoding by hand disables net/http's
// transparent gzip, so decompression is our job here.
func readBody(resp *http.Response, maxBody int64) ([]byte, int64, error) {
	var reader io.Reader = io.LimitReader(resp.Body, maxBody)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, 0, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		// Most servers send zlib-wrapped deflate; a few send raw streams.
		buf, err := io.ReadAll(reader)
		if err != nil {
			return nil, 0, err
		}
		zr, err := zlib.NewReader(bytes.NewReader(buf))
		if err != nil {
			reader = flate.NewReader(bytes.NewReader(buf))
		} else {
			defer zr.Close()
			reader = zr
		}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, err
	}
	return body, int64(len(body)), nil
}

// decodeCharset converts a body to UTF-8. The Content-Type charset
// parameter wins when present and known; otherwise the bytes are sniffed.
// Undecodable content is returned as-is rather than dropped.
func decodeCharset(body []byte, contentType string) string {
	name := charsetFromContentType(contentType)
	if name == "" {
		name = sniffCharset(body)
	}
	if name == "" || strings.EqualFold(name, "utf-8") {
		return string(body)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return string(body)
	}
	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func sniffCharset(body []byte) string {
	sample := body
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	result, err := chardet.NewHtmlDetector().DetectBest(sample)
	if err != nil {
		return ""
	}
	return result.Charset
}
