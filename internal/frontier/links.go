package frontier

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/dom"
)

// ContentURLKeywords mark a URL as likely to lead to question pages.
var ContentURLKeywords = []string{
	"question", "practice", "quiz", "test", "exam",
	"sat", "math", "reading", "writing", "english",
}

// ExcludedURLKeywords mark account and session pages.
var ExcludedURLKeywords = []string{
	"login", "signin", "sign-in", "signup", "sign-up", "auth", "logout",
}

// AssetExtensions are static file types that never hold questions.
var AssetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js",
	".pdf", ".zip", ".woff", ".woff2", ".ico", ".mp4",
}

var skippedHrefPrefixes = []string{"javascript:", "mailto:", "tel:", "#"}

// ExtractLinks returns the absolute, normalized links of doc that share the
// registrable domain of baseURL, deduplicated and in document order.
func ExtractLinks(doc dom.Handle, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil
	}
	baseDomain := RegistrableDomain(base.Hostname())

	seen := make(map[string]struct{})
	var links []string

	for _, anchor := range doc.QueryAll("a[href]") {
		href, _ := anchor.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || hasSkippedPrefix(href) {
			continue
		}

		ref, parseErr := url.Parse(href)
		if parseErr != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if RegistrableDomain(resolved.Hostname()) != baseDomain {
			continue
		}

		normalized, normErr := NormalizeURL(resolved.String())
		if normErr != nil {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	}

	return links
}

// RegistrableDomain returns the public suffix plus one label of host, or
// the lowercased host itself for IPs, localhost and unknown suffixes.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if net.ParseIP(host) != nil {
		return host
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// IsLikelyContentURL reports whether rawURL looks like it leads to
// question content.
func IsLikelyContentURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)

	if u, err := url.Parse(lower); err == nil {
		for _, ext := range AssetExtensions {
			if strings.HasSuffix(u.Path, ext) {
				return false
			}
		}
	}

	for _, kw := range ExcludedURLKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, kw := range ContentURLKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasSkippedPrefix(href string) bool {
	lower := strings.ToLower(href)
	for _, prefix := range skippedHrefPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
