package urlutil

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned by Resolve when the reference resolves
// to a scheme other than http/https (mailto:, javascript:, tel:, data:,
// ftp:, ...). Callers treat this as a Skipped link, not an error (spec.md §4.1).
var ErrUnsupportedScheme = errors.New("urlutil: unsupported scheme")

// Resolve parses ref relative to base and returns its normalized absolute
// form. Normalization, applied in order: resolve against base (RFC 3986,
// including dot-segment collapse), lowercase scheme, lowercase host, strip
// trailing dot from host, drop a port equal to the scheme's default, drop the
// fragment unless keepFragments is set. Percent-encoding in the path and
// query is preserved as given. Only http and https schemes are accepted;
// any other scheme yields ErrUnsupportedScheme — the resolved (but
// unnormalized) URL is still returned alongside that error so callers can
// record a Skipped link for it rather than discarding the reference
// outright (spec.md §4.1). A malformed ref returns a zero URL.
func Resolve(ref string, base url.URL, keepFragments bool) (url.URL, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return url.URL{}, err
	}

	resolved := base.ResolveReference(refURL)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return *resolved, ErrUnsupportedScheme
	}

	return Normalize(*resolved, keepFragments), nil
}

// Normalize applies scheme/host lowercasing, default-port stripping, and
// fragment handling to an already-resolved absolute URL. It does not touch
// path or query beyond what url.URL already carries from parsing/resolution.
func Normalize(u url.URL, keepFragments bool) url.URL {
	normalized := u

	normalized.Scheme = lowerASCII(normalized.Scheme)

	host := lowerASCII(normalized.Hostname())
	host = strings.TrimSuffix(host, ".")
	port := normalized.Port()
	if port == defaultPort(normalized.Scheme) {
		port = ""
	}

	if port != "" {
		normalized.Host = host + ":" + port
	} else {
		normalized.Host = host
	}

	if !keepFragments {
		normalized.Fragment = ""
		normalized.RawFragment = ""
	}

	return normalized
}

// SiteOrigin is (host-lowercased, effective-port), scheme-insensitive, used
// for same-site classification (spec.md §3).
type SiteOrigin struct {
	Host string
	Port string
}

// NewSiteOrigin derives the SiteOrigin of u: its lowercased host and its
// effective port (explicit, or the scheme's default).
func NewSiteOrigin(u url.URL) SiteOrigin {
	host := lowerASCII(u.Hostname())
	port := u.Port()
	if port == "" {
		port = defaultPort(u.Scheme)
	}
	return SiteOrigin{Host: host, Port: port}
}

// IsSameSite reports whether u's SiteOrigin matches start's SiteOrigin.
// Scheme differences (http vs https) never split origin; port is always
// compared, including when both sides use their scheme's default.
func IsSameSite(u url.URL, start SiteOrigin) bool {
	return NewSiteOrigin(u) == start
}

// LinkEquivalenceKey computes the structural key spec.md §3 defines two
// URLs as equivalent by: (scheme, host-lowercased, effective-port, path,
// query), plus fragment only when keepFragments is set.
func LinkEquivalenceKey(u url.URL, keepFragments bool) string {
	origin := NewSiteOrigin(u)
	var b strings.Builder
	b.WriteString(lowerASCII(u.Scheme))
	b.WriteByte('|')
	b.WriteString(origin.Host)
	b.WriteByte(':')
	b.WriteString(origin.Port)
	b.WriteByte('|')
	b.WriteString(u.EscapedPath())
	b.WriteByte('?')
	b.WriteString(u.RawQuery)
	if keepFragments {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// Canonicalize applies a looser normalization than LinkEquivalenceKey's
// exact-match semantics: it additionally strips the query string and
// trailing path slash, so two URLs differing only there collapse to the
// same value. Used by internal/cli to derive a run's correlation id from
// its start URL through pkg/hashutil, so equivalent start URLs hash the
// same way run to run.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := Normalize(sourceUrl, false)

	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// lowerASCII converts ASCII characters to lowercase without allocating when
// the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
