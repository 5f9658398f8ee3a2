package discover

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Hostname returns the lowercased host of rawURL without a leading "www.".
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// RegistrableDomain returns the eTLD+1 of rawURL ("shop.acme.co.uk" →
// "acme.co.uk"). Hosts without a public suffix fall back to the bare host.
func RegistrableDomain(rawURL string) string {
	host := Hostname(rawURL)
	if host == "" {
		return ""
	}
	base, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return base
}

// urlKey normalizes a URL for deduplication: scheme, "www.", fragment and
// trailing slash are ignored.
func urlKey(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	key := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// isWebURL reports whether rawURL is an absolute http(s) URL.
func isWebURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
