// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

// Package geo resolves client IP addresses to a coarse city/country
// location for audit enrichment. Lookups are offline against a local
// MaxMind database; private and loopback addresses are never looked up.
package geo

import "net"

// Location is the coarse geographic result attached to audit records.
// Either field may be empty when the address cannot be resolved.
type Location struct {
	City    string
	Country string
}

// Resolver maps an IP address string to a Location. Implementations
// must be safe for concurrent use and must never fail a request:
// unresolvable addresses return a zero Location and a nil error.
type Resolver interface {
	Resolve(ipAddress string) Location
	Close() error
}

// NoopResolver satisfies Resolver without any database. It is used
// when no MaxMind database path is configured.
type NoopResolver struct{}

func (NoopResolver) Resolve(string) Location { return Location{} }
func (NoopResolver) Close() error            { return nil }

// privateRanges covers RFC 1918, loopback, link-local and their IPv6
// equivalents. Addresses in these ranges carry no useful geo signal.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}

// IsPrivateIP reports whether ipStr parses to an address inside a
// private, loopback or link-local range. Unparseable input returns
// false; the resolver handles that case separately.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return isInPrivateRanges(ip)
}

func isInPrivateRanges(ip net.IP) bool {
	for _, cidr := range privateRanges {
		if isInCIDR(ip, cidr) {
			return true
		}
	}
	return false
}

func isInCIDR(ip net.IP, cidr string) bool {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return false
	}
	return network.Contains(ip)
}
