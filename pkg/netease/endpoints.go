package netease

import (
	"net/url"
	"strconv"
	"strings"

	errs "photobackup/pkg/errors"
)

const (
	// DefaultBaseURL is the site hosting the owners' landing pages
	DefaultBaseURL = "http://photo.163.com"

	// DefaultCDNHost is the domain the image shards live under
	DefaultCDNHost = "ph.126.net"
)

// LandingURL returns the landing page of ownerID under baseURL
func LandingURL(baseURL, ownerID string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + url.PathEscape(ownerID)
}

// PhotoURL rewrites a shard reference of the form "<shard>/<path>" into an
// absolute image URL on cdnHost:
//
//	PhotoURL("ph.126.net", "12/foo/bar.jpg") // "http://img12.ph.126.net/foo/bar.jpg"
//
// References that already are absolute http(s) URLs are returned unchanged.
// A reference without a separator, with an empty path or with a non-numeric
// shard is an invalid_reference error.
func PhotoURL(cdnHost, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if hasScheme(ref) {
		return ref, nil
	}
	if cdnHost == "" {
		cdnHost = DefaultCDNHost
	}

	shard, path, ok := strings.Cut(ref, "/")
	if !ok {
		return "", errs.New(errs.ErrorTypeInvalidReference, "reference %q has no shard separator", ref)
	}
	if path == "" {
		return "", errs.New(errs.ErrorTypeInvalidReference, "reference %q has an empty path", ref)
	}
	n, err := strconv.Atoi(shard)
	if err != nil || n < 0 {
		return "", errs.New(errs.ErrorTypeInvalidReference, "reference %q has a non-numeric shard", ref)
	}

	return "http://img" + strconv.Itoa(n) + "." + cdnHost + "/" + path, nil
}

// ensureScheme prefixes feed references that come without a scheme
func ensureScheme(ref string) string {
	ref = strings.TrimSpace(ref)
	if hasScheme(ref) {
		return ref
	}
	return "http://" + strings.TrimLeft(ref, "/")
}

func hasScheme(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
