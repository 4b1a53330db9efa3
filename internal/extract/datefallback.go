// internal/extract/datefallback.go
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/steltix/newsgrab/pkg/types"
)

// minPlausibleYear rejects path numbers that happen to look like dates.
// Online news archives do not predate the web.
const minPlausibleYear = 1990

// urlDatePatterns are tried in order of specificity. Each captures year,
// month, and optionally day from the URL path.
var urlDatePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"/yyyy/mm/dd/", regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})(?:/|$)`)},
	{"yyyy-mm-dd", regexp.MustCompile(`(?:^|[/-])(\d{4})-(\d{2})-(\d{2})(?:[/-]|$|\.)`)},
	{"/yyyymmdd/", regexp.MustCompile(`/(\d{4})(\d{2})(\d{2})(?:/|$)`)},
	{"/yyyy/mm/", regexp.MustCompile(`/(\d{4})/(\d{2})(?:/|$)`)},
}

// dateFromURL recovers a publish date from date-shaped URL path segments.
// A recovered date is a fallback, not an extraction: the caller records it
// with its own provenance and the raw matched text.
func dateFromURL(rawURL string, now time.Time) (*time.Time, *types.FallbackInfo) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil
	}
	path := u.Path

	for _, p := range urlDatePatterns {
		m := p.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}

		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day := 1
		if len(m) > 3 && m[3] != "" {
			day, _ = strconv.Atoi(m[3])
		}

		// A date-shaped segment that fails validation means the URL's
		// numbers are not dates; trying looser patterns would only
		// fabricate one.
		if year < minPlausibleYear || year > now.Year()+1 {
			return nil, nil
		}
		if month < 1 || month > 12 {
			return nil, nil
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow; a shifted month means the day was
		// bogus.
		if int(t.Month()) != month || t.Day() != day {
			return nil, nil
		}

		return &t, &types.FallbackInfo{
			Source:  "url_path",
			Pattern: p.name,
			Raw:     m[0],
		}
	}
	return nil, nil
}
