package webhookguard

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

const maxURLLength = 2048

// Hosts an outbound webhook may target, matched exactly or as a subdomain.
var allowedDomains = []string{
	"hooks.slack.com",
	"hooks.zapier.com",
	"api.telegram.org",
	"discord.com",
}

// Ports localhost targets are restricted to.
var allowedLocalPorts = map[string]bool{
	"3000": true,
	"4000": true,
	"8000": true,
	"8080": true,
}

// Validator checks webhook target URLs before registration. Extra allowed
// domains can be injected from configuration.
type Validator struct {
	extraDomains []string
}

// NewValidator creates a validator with optional extra allowed domains.
func NewValidator(extraDomains ...string) *Validator {
	cleaned := make([]string, 0, len(extraDomains))
	for _, d := range extraDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	return &Validator{extraDomains: cleaned}
}

// ValidateURL checks one webhook target URL. Returns false plus a reason when
// the URL must be rejected.
func (v *Validator) ValidateURL(rawURL string) (bool, string) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return false, "url is empty"
	}
	if len(trimmed) > maxURLLength {
		return false, fmt.Sprintf("url exceeds %d characters", maxURLLength)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return false, "url is not parseable"
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false, "url has no host"
	}

	local := isLoopbackHost(host)
	if u.Scheme != "https" && !(u.Scheme == "http" && local) {
		return false, "https is required"
	}

	// SSRF guard: private and link-local addresses are refused regardless of
	// the allow-list.
	if !local && isPrivateAddress(host) {
		return false, "host resolves to a private address"
	}

	if local {
		port := u.Port()
		if port == "" || !allowedLocalPorts[port] {
			return false, "localhost port not allowed"
		}
		return true, ""
	}

	if !v.isAllowedDomain(host) {
		return false, "domain not allowed"
	}
	return true, ""
}

func (v *Validator) isAllowedDomain(host string) bool {
	for _, domain := range allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	for _, domain := range v.extraDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.IsLoopback()
	}
	return false
}

// isPrivateAddress rejects literal IPs in RFC1918 ranges, link-local ranges,
// loopback and IPv6 unique-local space, plus hostnames resolving there.
func isPrivateAddress(host string) bool {
	if addr, err := netip.ParseAddr(host); err == nil {
		return isForbiddenAddr(addr)
	}

	// Hostname: resolve and check every address.
	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable hosts pass here; they fail the allow-list instead.
		return false
	}
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok && isForbiddenAddr(addr.Unmap()) {
			return true
		}
	}
	return false
}

func isForbiddenAddr(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified()
}
