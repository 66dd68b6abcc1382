package answer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/compozy/molrag/engine/llm/websearch"
	"github.com/compozy/molrag/pkg/logger"
)

// DefaultTrustedDomains are the knowledge owner's own properties.
var DefaultTrustedDomains = []string{"molecule.to", "molecule.xyz", "bio.xyz", "vitadao.com"}

// Span is the part of the web answer a citation backs.
type Span struct {
	StartIndex int `json:"start_index"`
	EndIndex   int `json:"end_index"`
}

// TrustedSource is a cited URL on an allow-listed domain. A URL cited several
// times appears once, with every span kept.
type TrustedSource struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
	Spans  []Span `json:"spans"`
}

// NormalizeDomain reduces a URL (with or without scheme) to its lowercased
// host without port, trailing dot or leading "www.". It returns "" when no
// host can be found or the scheme is not http or https.
func NormalizeDomain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	switch i := strings.Index(s, "://"); {
	case i >= 0:
		if scheme := strings.ToLower(s[:i]); scheme != "http" && scheme != "https" {
			return ""
		}
	case strings.HasPrefix(s, "//"):
		s = "https:" + s
	case hasOpaqueScheme(s):
		return ""
	default:
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	return strings.TrimPrefix(host, "www.")
}

// hasOpaqueScheme reports whether s starts with a scheme such as "mailto:"
// rather than a bare host with an optional numeric port.
func hasOpaqueScheme(s string) bool {
	head := s
	if i := strings.IndexAny(head, "/?#"); i >= 0 {
		head = head[:i]
	}
	i := strings.IndexByte(head, ':')
	if i < 0 {
		return false
	}
	port := head[i+1:]
	if port == "" {
		return true
	}
	for _, r := range port {
		if r < '0' || r > '9' {
			return true
		}
	}
	return false
}

// TrustPolicy decides which citation domains are trusted. A domain matches an
// entry when it equals it or is a subdomain of it.
type TrustPolicy struct {
	domains []string
}

func NewTrustPolicy(domains []string) (*TrustPolicy, error) {
	normalized := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		n := NormalizeDomain(d)
		if n == "" {
			return nil, fmt.Errorf("invalid trusted domain %q", d)
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return nil, errors.New("trust policy requires at least one domain")
	}
	return &TrustPolicy{domains: normalized}, nil
}

// Match returns the normalized domain of rawURL and whether it is trusted.
func (p *TrustPolicy) Match(rawURL string) (string, bool) {
	domain := NormalizeDomain(rawURL)
	if domain == "" {
		return "", false
	}
	for _, d := range p.domains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return domain, true
		}
	}
	return domain, false
}

// Filter keeps citations on trusted domains, grouped by URL in first-seen order.
func (p *TrustPolicy) Filter(ctx context.Context, citations []websearch.Citation) []TrustedSource {
	log := logger.FromContext(ctx)
	var out []TrustedSource
	byURL := make(map[string]int)
	for i, c := range citations {
		domain, trusted := p.Match(c.URL)
		recordCitation(ctx, trusted)
		if !trusted {
			log.Debug("Untrusted citation", "index", i, "domain", domain, "url", c.URL)
			continue
		}
		log.Debug("Trusted citation", "index", i, "domain", domain, "url", c.URL)
		span := Span{StartIndex: c.StartIndex, EndIndex: c.EndIndex}
		if pos, ok := byURL[c.URL]; ok {
			out[pos].Spans = append(out[pos].Spans, span)
			if out[pos].Title == "" {
				out[pos].Title = c.Title
			}
			continue
		}
		byURL[c.URL] = len(out)
		out = append(out, TrustedSource{URL: c.URL, Title: c.Title, Domain: domain, Spans: []Span{span}})
	}
	return out
}

// formatTrustedSources renders one "- title (url)" line per source.
func formatTrustedSources(sources []TrustedSource) string {
	lines := make([]string, len(sources))
	for i, s := range sources {
		if s.Title == "" {
			lines[i] = "- " + s.URL
			continue
		}
		lines[i] = fmt.Sprintf("- %s (%s)", s.Title, s.URL)
	}
	return strings.Join(lines, "\n")
}
