package utils

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalHost returns an HTTP Host value in canonical form:
// - Trimmed of surrounding whitespace
// - Port removed ("example.com:8080" -> "example.com", "[::1]:80" -> "::1")
// - Lowercased, without trailing dots
func CanonicalHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	host = strings.ToLower(host)
	for strings.HasSuffix(host, ".") {
		host = strings.TrimSuffix(host, ".")
	}
	return host
}

// RegisteredDomain returns the eTLD+1 of host ("www.evil.co.uk" -> "evil.co.uk").
// IP literals and names publicsuffix cannot reduce are returned in canonical form.
func RegisteredDomain(host string) string {
	host = CanonicalHost(host)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	apex, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return apex
}

// PublicSuffix returns the public suffix of host ("www.evil.co.uk" -> "co.uk").
func PublicSuffix(host string) string {
	host = CanonicalHost(host)
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	return suffix
}
