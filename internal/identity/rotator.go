// internal/identity/rotator.go

// Package identity owns the client identity presented to each host: the
// user agent, header variations, cookie jar, and sticky proxy assignment.
// Identities rotate on a jittered cadence so that neither a stable
// fingerprint nor a fixed rotation period is observable.
package identity

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/steltix/newsgrab/internal/utils"
)

// Rotation cadence defaults: a new identity roughly every 9 requests,
// with the exact threshold redrawn per rotation inside base ± 25%.
const (
	DefaultRotationBase   = 9
	DefaultRotationJitter = 0.25
	DefaultRequestTimeout = 10 * time.Second
)

// Referer selection weights, applied per request independently of the
// rotation cadence.
const (
	refererWeightHomepage = 0.35
	refererWeightAltPath  = 0.15
	refererWeightSearch   = 0.25
	// remainder: no referer
)

// Config tunes the rotator.
type Config struct {
	RotationBase   int           `yaml:"rotation_base" json:"rotation_base"`
	RotationJitter float64       `yaml:"rotation_jitter" json:"rotation_jitter"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Proxies is the optional proxy pool. Assignment is sticky per host:
	// first use wins and the same proxy serves that host from then on, so
	// the host sees one stable network reputation.
	Proxies []string `yaml:"proxies" json:"proxies"`
}

func (c *Config) applyDefaults() {
	if c.RotationBase == 0 {
		c.RotationBase = DefaultRotationBase
	}
	if c.RotationJitter == 0 {
		c.RotationJitter = DefaultRotationJitter
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Identity is one complete client persona for a host. The embedded
// http.Client carries the cookie jar, the proxy, and the request timeout,
// so a session survives across requests until the next rotation discards
// it wholesale.
type Identity struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
	Jar            http.CookieJar
	ProxyURL       *url.URL
	Client         *http.Client
	CreatedAt      time.Time
}

// ApplyHeaders sets the identity's header variation plus the browser-like
// constants on a request.
func (id *Identity) ApplyHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", id.Accept)
	req.Header.Set("Accept-Language", id.AcceptLanguage)
	req.Header.Set("Accept-Encoding", id.AcceptEncoding)
	req.Header.Set("DNT", "1")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

// session is the per-host rotation bookkeeping.
type session struct {
	identity              *Identity
	requestsSinceRotation int
	threshold             int
}

// Rotator hands out per-host identities, rotating them on the jittered
// cadence. At most one identity is active per host at a time.
type Rotator struct {
	mu          sync.Mutex
	sessions    map[string]*session
	proxies     []*url.URL
	proxyByHost map[string]*url.URL

	cfg Config
	rng utils.Rand
	log utils.Logger

	rotations int
}

// NewRotator creates a rotator. Malformed proxy entries are skipped with a
// warning rather than failing construction.
func NewRotator(cfg Config, rng utils.Rand, log utils.Logger) *Rotator {
	cfg.applyDefaults()
	if rng == nil {
		rng = utils.NewRand()
	}
	if log == nil {
		log = utils.NopLogger{}
	}

	r := &Rotator{
		sessions:    make(map[string]*session),
		proxyByHost: make(map[string]*url.URL),
		cfg:         cfg,
		rng:         rng,
		log:         log,
	}
	for _, raw := range cfg.Proxies {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			log.Warnf("ignoring malformed proxy %q", raw)
			continue
		}
		r.proxies = append(r.proxies, u)
	}
	return r
}

// SessionFor returns the active identity for host, creating one on first
// use or once the per-rotation request threshold is reached. The returned
// bool reports whether a rotation happened. Each call counts as one
// request against the cadence.
func (r *Rotator) SessionFor(host string) (*Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[host]
	rotated := false

	if s == nil || s.requestsSinceRotation >= s.threshold {
		var current string
		if s != nil {
			current = s.identity.UserAgent
		}
		id, err := r.newIdentity(host, current)
		if err != nil {
			return nil, false, err
		}
		s = &session{
			identity:  id,
			threshold: r.drawThreshold(),
		}
		r.sessions[host] = s
		r.rotations++
		rotated = true
		r.log.WithFields(map[string]interface{}{
			"host":      host,
			"threshold": s.threshold,
			"proxy":     id.ProxyURL != nil,
		}).Debug("rotated identity")
	}

	s.requestsSinceRotation++
	return s.identity, rotated, nil
}

// drawThreshold picks the next rotation threshold uniformly inside
// base ± base*jitter. A fixed cadence would itself be a fingerprint.
func (r *Rotator) drawThreshold() int {
	base := r.cfg.RotationBase
	spread := int(float64(base) * r.cfg.RotationJitter)
	if spread <= 0 {
		return base
	}
	return base - spread + r.rng.Intn(2*spread+1)
}

// newIdentity assembles a fresh persona: a user agent distinct from the
// outgoing one, independent header pool draws, an empty cookie jar, and
// the host's sticky proxy.
func (r *Rotator) newIdentity(host, currentUA string) (*Identity, error) {
	ua := defaultUserAgents[r.rng.Intn(len(defaultUserAgents))]
	for ua == currentUA && len(defaultUserAgents) > 1 {
		ua = defaultUserAgents[r.rng.Intn(len(defaultUserAgents))]
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	proxy := r.stickyProxy(host)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}

	return &Identity{
		UserAgent:      ua,
		Accept:         defaultAccepts[r.rng.Intn(len(defaultAccepts))],
		AcceptLanguage: defaultAcceptLanguages[r.rng.Intn(len(defaultAcceptLanguages))],
		AcceptEncoding: defaultAcceptEncodings[r.rng.Intn(len(defaultAcceptEncodings))],
		Jar:            jar,
		ProxyURL:       proxy,
		Client: &http.Client{
			Timeout:   r.cfg.RequestTimeout,
			Jar:       jar,
			Transport: transport,
		},
		CreatedAt: time.Now(),
	}, nil
}

// stickyProxy returns the proxy assigned to host, assigning one on first
// use. An empty pool means no proxy, which is not an error. Called with
// r.mu held.
func (r *Rotator) stickyProxy(host string) *url.URL {
	if p, ok := r.proxyByHost[host]; ok {
		return p
	}
	if len(r.proxies) == 0 {
		return nil
	}
	p := r.proxies[r.rng.Intn(len(r.proxies))]
	r.proxyByHost[host] = p
	return p
}

// RefererFor picks a plausible referer for one request: the target's
// homepage, a same-origin section page, a search engine, or none. The
// choice is made per request, independent of the rotation cadence.
func (r *Rotator) RefererFor(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	origin := u.Scheme + "://" + u.Host

	roll := r.rng.Float64()
	switch {
	case roll < refererWeightHomepage:
		return origin + "/"
	case roll < refererWeightHomepage+refererWeightAltPath:
		return origin + altRefererPaths[r.rng.Intn(len(altRefererPaths))]
	case roll < refererWeightHomepage+refererWeightAltPath+refererWeightSearch:
		return searchReferers[r.rng.Intn(len(searchReferers))]
	default:
		return ""
	}
}

// Rotations returns the total identity rotations performed.
func (r *Rotator) Rotations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rotations
}
