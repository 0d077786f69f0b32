package domain

import (
	"net/netip"
	"time"
)

// Event is one observed HTTP transaction, as delivered by the detection engine.
type Event struct {
	Time     time.Time
	Src      netip.Addr
	Dst      netip.Addr
	Host     string
	URI      string
	Method   string
	Status   int    // response status, 0 when only the request was seen
	Location string // Location header of a redirect response
}

// SourceKey returns the tracking key of the event's source address.
func (e Event) SourceKey() Key { return KeyFromAddr(e.Src) }

// DestinationBytes returns the fixed-width encoding of the destination address.
func (e Event) DestinationBytes() []byte { return KeyFromAddr(e.Dst).Bytes() }

// IsRedirect reports whether the event is a redirect response carrying a Location.
func (e Event) IsRedirect() bool {
	if e.Location == "" {
		return false
	}
	_, err := NewRedirectType(e.Status)
	return err == nil
}
