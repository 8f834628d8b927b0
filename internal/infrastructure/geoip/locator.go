// Package geoip resolves login IP addresses to locations with a MaxMind
// City database.
package geoip

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"

	"github.com/bibbank/loginrisk/internal/domain/model"
	"github.com/bibbank/loginrisk/internal/domain/port"
)

// CityReader is the lookup half of *geoip2.Reader.
type CityReader interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Locator implements port.GeoLocator.
type Locator struct {
	reader CityReader
	closer func() error
}

var _ port.GeoLocator = (*Locator)(nil)

// Open opens the database at path.
func Open(path string) (*Locator, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &Locator{reader: r, closer: r.Close}, nil
}

// NewLocator wraps an already opened reader.
func NewLocator(reader CityReader) *Locator {
	return &Locator{reader: reader}
}

// Locate returns the location of ip. found is false for addresses missing
// from the database and for private or loopback ranges.
func (l *Locator) Locate(ip string) (model.Geo, bool, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return model.Geo{}, false, fmt.Errorf("invalid ip address %q: %w", ip, err)
	}
	addr = addr.Unmap().WithZone("")
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
		return model.Geo{}, false, nil
	}

	record, err := l.reader.City(net.IP(addr.AsSlice()))
	if err != nil {
		return model.Geo{}, false, fmt.Errorf("geoip lookup failed: %w", err)
	}
	if record == nil || record.Country.IsoCode == "" {
		return model.Geo{}, false, nil
	}

	geo := model.Geo{
		Country: record.Country.IsoCode,
		City:    record.City.Names["en"],
		Lat:     record.Location.Latitude,
		Lng:     record.Location.Longitude,
	}
	if len(record.Subdivisions) > 0 {
		geo.Region = record.Subdivisions[0].IsoCode
	}
	return geo, true, nil
}

// Close releases the database when it was opened by Open.
func (l *Locator) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}
