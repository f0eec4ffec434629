// Package system provides a real clock implementation.
package system

import (
	"fmt"
	"time"
)

// Clock implements crawler.Clock using time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a Clock reporting times in loc. A nil loc means time.Local,
// which is how artifact timestamps are stamped by default.
func New(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.Local
	}
	return &Clock{loc: loc}
}

// NewNamed resolves an IANA zone name ("UTC", "Europe/Moscow") or "Local".
func NewNamed(name string) (*Clock, error) {
	if name == "" || name == "Local" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return New(loc), nil
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the zone timestamps are reported in.
func (c *Clock) Location() *time.Location {
	return c.loc
}
