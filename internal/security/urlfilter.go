package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// AppContext service names for the shared security components.
const (
	URLFilterService = "security.url_filter"
	AuditService     = "security.audit"
)

// ErrURLBlocked is returned when a URL is denied by the filter.
var ErrURLBlocked = errors.New("URL blocked by filter")

// URLFilterConfig holds the configuration for URL filtering of watched
// resources.
type URLFilterConfig struct {
	// AllowDomains restricts fetching to these domains and their
	// subdomains. Empty means every public domain is allowed.
	AllowDomains []string `yaml:"allow_domains"`

	// DenyDomains is checked first and wins over AllowDomains.
	DenyDomains []string `yaml:"deny_domains"`

	// AllowPrivate permits loopback, link-local and private-range IP
	// literals and "localhost". Off by default.
	AllowPrivate bool `yaml:"allow_private"`
}

// URLFilter decides whether a job URL may be fetched.
type URLFilter struct {
	allow        []string
	deny         []string
	allowPrivate bool
}

// NewURLFilter creates a URL filter from the given config.
func NewURLFilter(cfg URLFilterConfig) *URLFilter {
	return &URLFilter{
		allow:        normalizeDomains(cfg.AllowDomains),
		deny:         normalizeDomains(cfg.DenyDomains),
		allowPrivate: cfg.AllowPrivate,
	}
}

// Check returns nil if rawURL may be fetched, or an error wrapping
// ErrURLBlocked. A nil filter allows everything.
func (f *URLFilter) Check(rawURL string) error {
	if f == nil {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %w", ErrURLBlocked, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q not allowed", ErrURLBlocked, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrURLBlocked)
	}

	if !f.allowPrivate && isPrivateHost(host) {
		return fmt.Errorf("%w: %s (private address)", ErrURLBlocked, host)
	}

	for _, d := range f.deny {
		if matchDomain(host, d) {
			return fmt.Errorf("%w: %s (denied)", ErrURLBlocked, host)
		}
	}

	if len(f.allow) == 0 {
		return nil
	}
	for _, a := range f.allow {
		if matchDomain(host, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (not in allow list)", ErrURLBlocked, host)
}

func normalizeDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

// matchDomain reports whether host is domain or one of its subdomains.
// "notexample.com" does not match "example.com".
func matchDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}
