// internal/identity/pools.go
package identity

// Header variation pools. Each pool spans several browser families,
// platforms, and versions so a rotation produces a plausible, non-static
// fingerprint. Entries are kept reasonably current; an outdated UA is
// itself a block signal on some providers.

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

var defaultAccepts = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

var defaultAcceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.8",
	"en-GB,en-US;q=0.9,en;q=0.8",
	"en-US,en;q=0.9,fr;q=0.7",
	"en-US,en;q=0.9,de;q=0.7",
	"en-CA,en-US;q=0.9,en;q=0.8",
}

// Only encodings the fetch layer can actually decode are advertised.
var defaultAcceptEncodings = []string{
	"gzip, deflate",
	"gzip",
	"identity",
}

// altRefererPaths are plausible same-origin section pages used when the
// referer chooser picks the alternate-path option.
var altRefererPaths = []string{
	"/news/",
	"/latest/",
	"/articles/",
	"/world/",
}

// searchReferers are external origins a human plausibly arrived from.
var searchReferers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://news.google.com/",
}
