// Package frontier holds the crawl queue, URL normalization and the link
// discovery rules that feed the queue.
package frontier

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are query parameters stripped during normalization.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errUnsupportedScheme   = errors.New("normalize url: unsupported scheme")
)

// NormalizeURL makes equivalent URLs compare equal. It lowercases scheme
// and host, drops default ports, resolves dot-segments, trims trailing
// slashes, removes fragments, and sorts query parameters after stripping
// tracking ones. The scheme itself is preserved.
func NormalizeURL(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if _, ok := defaultPorts[parsed.Scheme]; !ok {
		return "", fmt.Errorf("%w: %s", errUnsupportedScheme, parsed.Scheme)
	}

	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.User = nil
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)
	parsed.RawPath = ""

	return parsed.String(), nil
}

// ExtractHost returns the lowercased hostname of rawURL without its port.
func ExtractHost(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}
	if parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}
	return strings.ToLower(parsed.Hostname()), nil
}

func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}

	port := u.Port()
	if port == "" || defaultPorts[u.Scheme] == port {
		return hostname
	}
	return hostname + ":" + port
}

func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, isTracking := trackingParams[strings.ToLower(key)]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments and removes trailing slashes while
// keeping the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "/" {
		return cleaned
	}
	return strings.TrimRight(cleaned, "/")
}
