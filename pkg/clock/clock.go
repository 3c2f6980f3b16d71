package clock

import (
	"time"
	_ "time/tzdata"
)

const (
	// DefaultZone is the civil timezone of the catalog's provenance stamps.
	DefaultZone = "America/Puerto_Rico"
	// Layout is the stamp format written to the remote tables.
	Layout = "2006-01-02 15:04:05"
)

// Clock abstracts the current time for services that stamp records.
type Clock interface {
	Now() time.Time
}

// CivilClock reports time in a fixed civil timezone.
type CivilClock struct {
	loc *time.Location
	now func() time.Time
}

// NewCivil loads the named zone. Puerto Rico has no DST, so an unknown zone
// falls back to a fixed UTC-4 offset.
func NewCivil(zone string) *CivilClock {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.FixedZone("AST", -4*60*60)
	}
	return &CivilClock{loc: loc, now: time.Now}
}

// Fixed returns a clock frozen at t, for tests and replays.
func Fixed(t time.Time, zone string) *CivilClock {
	c := NewCivil(zone)
	c.now = func() time.Time { return t }
	return c
}

func (c *CivilClock) Now() time.Time { return c.now().In(c.loc) }

func (c *CivilClock) Location() *time.Location { return c.loc }

// Stamp formats t in the clock's zone using Layout.
func (c *CivilClock) Stamp(t time.Time) string {
	return t.In(c.loc).Format(Layout)
}
