// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/arbiterhq/arbiter/internal/logging"
)

// MaxMindResolver performs offline city lookups against a local
// GeoLite2/GeoIP2 City database file.
type MaxMindResolver struct {
	db *geoip2.Reader
}

// NewMaxMindResolver opens the MaxMind database at dbPath.
func NewMaxMindResolver(dbPath string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening maxmind database %s: %w", dbPath, err)
	}
	return &MaxMindResolver{db: db}, nil
}

// Resolve returns the city and country for ipAddress. Private,
// loopback and unparseable addresses yield a zero Location. Lookup
// failures are logged at debug level and swallowed; enrichment must
// never fail the audit pipeline.
func (r *MaxMindResolver) Resolve(ipAddress string) Location {
	if ipAddress == "" || IsPrivateIP(ipAddress) {
		return Location{}
	}
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return Location{}
	}

	record, err := r.db.City(ip)
	if err != nil {
		logging.Debug().Err(err).Str("ip", ipAddress).Msg("GeoIP lookup failed")
		return Location{}
	}

	loc := Location{Country: record.Country.Names["en"]}
	if len(record.City.Names) > 0 {
		loc.City = record.City.Names["en"]
	}
	return loc
}

// Close releases the underlying database reader.
func (r *MaxMindResolver) Close() error {
	return r.db.Close()
}
