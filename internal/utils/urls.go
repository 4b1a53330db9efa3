// internal/utils/urls.go
package utils

import "net/url"

// HostOf returns the hostname of a URL, empty when it cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
