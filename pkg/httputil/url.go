package httputil

import "net/url"

// RewriteBase replaces the scheme and authority (host[:port]) of originalURL
// with those of newBase, preserving path, query, and fragment. It is used to
// translate artifact access URLs reported by the metadata store (which may
// point at an internal hostname) into URLs reachable at the configured
// artifact repository endpoint.
//
// Returns originalURL unchanged if either argument fails to parse as a URL.
func RewriteBase(originalURL, newBase string) string {
	orig, err := url.Parse(originalURL)
	if err != nil {
		return originalURL
	}
	base, err := url.Parse(newBase)
	if err != nil {
		return originalURL
	}

	orig.Scheme = base.Scheme
	orig.Host = base.Host
	return orig.String()
}
