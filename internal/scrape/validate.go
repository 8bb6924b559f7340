package scrape

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Only http and https may be fetched; everything else is an SSRF vector.
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

var blockedHostnames = map[string]bool{
	"localhost": true,
	"0.0.0.0":   true,
}

// ValidateURL checks a URL before it is fetched: the scheme must be http or
// https, the host must be present and must not be a private, loopback,
// link-local or unspecified address, and when allowedDomains is non-empty the
// host must match one of them (exactly or as a subdomain). Returns the
// validated URL unchanged.
func ValidateURL(rawURL string, allowedDomains []string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("URL must not be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	if !allowedSchemes[parsed.Scheme] {
		return "", fmt.Errorf("URL scheme %q is not allowed, use http or https", parsed.Scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return "", fmt.Errorf("URL must have a valid host")
	}

	if isPrivateHost(hostname) {
		return "", fmt.Errorf("URLs to private or internal addresses are not allowed")
	}

	if len(allowedDomains) > 0 && !matchesDomain(hostname, allowedDomains) {
		return "", fmt.Errorf("domain %q is not in the allowed domains list", hostname)
	}

	return rawURL, nil
}

func isPrivateHost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	if blockedHostnames[hostname] {
		return true
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback() ||
			ip.IsPrivate() ||
			ip.IsLinkLocalUnicast() ||
			ip.IsLinkLocalMulticast() ||
			ip.IsUnspecified()
	}

	return false
}

func matchesDomain(hostname string, allowedDomains []string) bool {
	for _, domain := range allowedDomains {
		if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
			return true
		}
	}
	return false
}
