package domain

// MaxIndexedDestinations caps the distinct (destination, host) pairs kept per URI.
const MaxIndexedDestinations = 3

// IndexUpdate is the outcome of recording a (destination, host) pair for a URI.
type IndexUpdate struct {
	Count           int  // distinct pairs stored for the URI after the update
	Added           bool // the pair was new and stored
	CapacityReached bool // the entry holds MaxIndexedDestinations pairs
}

// IndexEntry is a read-only copy of one URI's exact index entry.
type IndexEntry struct {
	URI          string
	Destinations [][]byte
	Hosts        []string
}

// Count returns the number of stored pairs.
func (e IndexEntry) Count() int { return len(e.Destinations) }

// Full reports whether the entry stopped accepting new pairs.
func (e IndexEntry) Full() bool { return len(e.Destinations) >= MaxIndexedDestinations }

// Summary concatenates every stored destination followed by the URI bytes.
func (e IndexEntry) Summary() []byte {
	n := len(e.URI)
	for _, d := range e.Destinations {
		n += len(d)
	}
	out := make([]byte, 0, n)
	for _, d := range e.Destinations {
		out = append(out, d...)
	}
	return append(out, e.URI...)
}
