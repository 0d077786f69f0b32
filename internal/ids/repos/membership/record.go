package membership

import (
	"bytes"
	"sync"

	"github.com/haukened/rr-ids/internal/ids/domain"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
)

// slot is one bloom filter plus the insertions made since it was created.
type slot struct {
	filter  bloom.Filter
	inserts uint64
}

func (s *slot) add(data []byte) {
	s.filter.Add(data)
	s.inserts++
}

func (s *slot) verdict(data []byte) domain.Verdict {
	if s.filter.Test(data) {
		return domain.VerdictPresent
	}
	return domain.VerdictAbsent
}

// indexEntry holds up to domain.MaxIndexedDestinations (destination, host) pairs.
type indexEntry struct {
	dsts  [][]byte
	hosts []string
}

func (e *indexEntry) snapshot(uri string) domain.IndexEntry {
	out := domain.IndexEntry{
		URI:          uri,
		Destinations: make([][]byte, len(e.dsts)),
		Hosts:        append([]string(nil), e.hosts...),
	}
	for i, d := range e.dsts {
		out.Destinations[i] = append([]byte(nil), d...)
	}
	return out
}

// record is everything tracked for one key. mu guards all fields.
type record struct {
	mu    sync.RWMutex
	dsts  slot
	uris  slot
	pairs slot
	index map[string]*indexEntry
}

func newRecord(f bloom.Factory) *record {
	return &record{
		dsts:  slot{filter: f.New()},
		uris:  slot{filter: f.New()},
		pairs: slot{filter: f.New()},
		index: make(map[string]*indexEntry),
	}
}

func (r *record) counters() domain.Counters {
	return domain.Counters{
		Destinations: r.dsts.inserts,
		URIs:         r.uris.inserts,
		Pairs:        r.pairs.inserts,
	}
}

// updateIndex records (dst, host) under uri. A pair matching an existing
// entry on destination or on host is a duplicate. Empty hosts compare equal,
// so requests without a Host header add at most one pair per URI.
func (r *record) updateIndex(dst []byte, uri, host string) domain.IndexUpdate {
	e, ok := r.index[uri]
	if !ok {
		e = &indexEntry{
			dsts:  [][]byte{append([]byte(nil), dst...)},
			hosts: []string{host},
		}
		r.index[uri] = e
		return domain.IndexUpdate{Count: 1, Added: true, CapacityReached: domain.MaxIndexedDestinations <= 1}
	}

	for i := range e.dsts {
		if bytes.Equal(e.dsts[i], dst) || e.hosts[i] == host {
			return domain.IndexUpdate{Count: len(e.dsts), CapacityReached: len(e.dsts) >= domain.MaxIndexedDestinations}
		}
	}
	if len(e.dsts) >= domain.MaxIndexedDestinations {
		return domain.IndexUpdate{Count: len(e.dsts), CapacityReached: true}
	}

	e.dsts = append(e.dsts, append([]byte(nil), dst...))
	e.hosts = append(e.hosts, host)
	return domain.IndexUpdate{
		Count:           len(e.dsts),
		Added:           true,
		CapacityReached: len(e.dsts) >= domain.MaxIndexedDestinations,
	}
}

// pairKey encodes a destination/URI pair for the pair filter. The zero byte
// keeps ("10.0.0.1", "1/x") and ("10.0.0.11", "/x") apart.
func pairKey(dst []byte, uri string) []byte {
	b := make([]byte, 0, len(dst)+1+len(uri))
	b = append(b, dst...)
	b = append(b, 0)
	return append(b, uri...)
}
