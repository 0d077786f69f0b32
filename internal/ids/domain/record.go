package domain

// FilterName names one of the three bloom filters held per tracked key.
type FilterName string

const (
	FilterDestinations FilterName = "destinations"
	FilterURIs         FilterName = "uris"
	FilterPairs        FilterName = "pairs"
)

// Counters holds insertion counts since the last refresh of each filter.
type Counters struct {
	Destinations uint64
	URIs         uint64
	Pairs        uint64
}

// RefreshReport lists the filters that were reinitialised by a refresh.
type RefreshReport struct {
	Refreshed []FilterName
	// IndexCleared is set when the URI filter refresh wiped the exact index.
	IndexCleared bool
}

// Any reports whether at least one filter was refreshed.
func (r RefreshReport) Any() bool { return len(r.Refreshed) > 0 }
