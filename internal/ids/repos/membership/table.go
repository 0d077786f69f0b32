// Package membership tracks, per source key, which destinations and URIs have
// been seen. Each key owns three bloom filters (destinations, URIs and
// destination/URI pairs) and a small exact index of the destinations observed
// for each URI. Filters are refreshed wholesale when their estimated
// false-positive rate crosses a threshold.
package membership

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/domain"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
)

// DefaultMaxKeys bounds the number of tracked keys when TableOptions.MaxKeys is 0.
const DefaultMaxKeys = 1 << 16

// TableOptions configures a Table.
type TableOptions struct {
	Factory   bloom.Factory
	MaxKeys   int
	Estimator Estimator
	Logger    log.Logger
	Observer  Observer
}

// Table is the keyed collection of per-key records. It is safe for concurrent
// use: structural changes are serialised on the table, and each record has its
// own reader/writer lock.
//
// Operations on an existing key look the record up without holding the table
// lock. An Add* or UpdateURIIndex call racing with DeleteKey (or an eviction)
// of the same key may therefore write to the detached record and return nil
// instead of ErrNoRecord. The write is lost with the record; no state leaks
// into a record created later for the key.
type Table struct {
	mu       sync.Mutex // serialises create, delete and evict
	records  *lru.Cache[domain.Key, *record]
	maxKeys  int
	factory  bloom.Factory
	estimate Estimator
	logger   log.Logger
	observer Observer
}

// NewTable builds an empty Table.
func NewTable(opts TableOptions) (*Table, error) {
	if opts.Factory == nil {
		return nil, errors.New("membership: filter factory is required")
	}
	if opts.MaxKeys < 0 {
		return nil, fmt.Errorf("membership: max keys must not be negative, got %d", opts.MaxKeys)
	}
	if opts.MaxKeys == 0 {
		opts.MaxKeys = DefaultMaxKeys
	}
	if opts.Estimator == nil {
		opts.Estimator = EstimateSingleRound
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	cache, err := lru.New[domain.Key, *record](opts.MaxKeys)
	if err != nil {
		return nil, fmt.Errorf("membership: %w", err)
	}
	return &Table{
		records:  cache,
		maxKeys:  opts.MaxKeys,
		factory:  opts.Factory,
		estimate: opts.Estimator,
		logger:   log.OrNoop(opts.Logger),
		observer: opts.Observer,
	}, nil
}

// Len returns the number of tracked keys.
func (t *Table) Len() int { return t.records.Len() }

// Keys returns the tracked keys, oldest first.
func (t *Table) Keys() []domain.Key { return t.records.Keys() }

// KeyExists reports whether key has a record.
func (t *Table) KeyExists(key domain.Key) bool {
	return t.records.Contains(key)
}

// EnsureRecord creates a record for key if none exists.
func (t *Table) EnsureRecord(key domain.Key) error {
	t.ensure(key)
	return nil
}

func (t *Table) ensure(key domain.Key) *record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.records.Get(key); ok {
		return r
	}
	if t.records.Len() >= t.maxKeys {
		if oldest, _, ok := t.records.RemoveOldest(); ok {
			t.observer.RecordEvicted()
			t.logger.Warn(map[string]any{"key": oldest.String(), "max_keys": t.maxKeys}, "tracking table full, evicted oldest record")
		}
	}
	r := newRecord(t.factory)
	t.records.Add(key, r)
	t.observer.RecordCreated()
	t.logger.Debug(map[string]any{"key": key.String()}, "record created")
	return r
}

// lookup returns key's record or ErrNoRecord, logging the caller's misuse.
func (t *Table) lookup(key domain.Key, op string) (*record, error) {
	if r, ok := t.records.Get(key); ok {
		return r, nil
	}
	t.logger.Debug(map[string]any{"key": key.String(), "op": op}, "operation on untracked key")
	return nil, fmt.Errorf("%s %s: %w", op, key, domain.ErrNoRecord)
}

// DeleteKey drops key's record with its filters and URI index.
func (t *Table) DeleteKey(key domain.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.records.Remove(key) {
		t.observer.RecordDeleted()
		t.logger.Debug(map[string]any{"key": key.String()}, "record deleted")
	}
}

// AddBoth adds dst and uri to key's destination and URI filters, creating the
// record first when key is new.
func (t *Table) AddBoth(key domain.Key, dst []byte, uri string) error {
	r := t.ensure(key)
	r.mu.Lock()
	r.dsts.add(dst)
	r.uris.add([]byte(uri))
	r.mu.Unlock()
	return nil
}

// AddDestination adds dst to key's destination filter.
func (t *Table) AddDestination(key domain.Key, dst []byte) error {
	r, err := t.lookup(key, "add destination")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.dsts.add(dst)
	r.mu.Unlock()
	return nil
}

// AddURI adds uri to key's URI filter.
func (t *Table) AddURI(key domain.Key, uri string) error {
	r, err := t.lookup(key, "add uri")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.uris.add([]byte(uri))
	r.mu.Unlock()
	return nil
}

// AddPair adds the (dst, uri) pair to key's pair filter.
func (t *Table) AddPair(key domain.Key, dst []byte, uri string) error {
	r, err := t.lookup(key, "add pair")
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.pairs.add(pairKey(dst, uri))
	r.mu.Unlock()
	return nil
}

// DestinationPresent tests dst against key's destination filter.
func (t *Table) DestinationPresent(key domain.Key, dst []byte) domain.Verdict {
	r, err := t.lookup(key, "test destination")
	if err != nil {
		return domain.VerdictNoRecord
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dsts.verdict(dst)
}

// URIPresent tests uri against key's URI filter.
func (t *Table) URIPresent(key domain.Key, uri string) domain.Verdict {
	r, err := t.lookup(key, "test uri")
	if err != nil {
		return domain.VerdictNoRecord
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.uris.verdict([]byte(uri))
}

// PairPresent tests the (dst, uri) pair against key's pair filter.
func (t *Table) PairPresent(key domain.Key, dst []byte, uri string) domain.Verdict {
	r, err := t.lookup(key, "test pair")
	if err != nil {
		return domain.VerdictNoRecord
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pairs.verdict(pairKey(dst, uri))
}

// Counters returns key's insertion counters.
func (t *Table) Counters(key domain.Key) (domain.Counters, error) {
	r, err := t.lookup(key, "counters")
	if err != nil {
		return domain.Counters{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters(), nil
}

// UpdateURIIndex records that key requested uri from (dst, host).
func (t *Table) UpdateURIIndex(key domain.Key, dst []byte, uri, host string) (domain.IndexUpdate, error) {
	r, err := t.lookup(key, "update uri index")
	if err != nil {
		return domain.IndexUpdate{}, err
	}
	r.mu.Lock()
	res := r.updateIndex(dst, uri, host)
	r.mu.Unlock()
	if res.Added {
		t.logger.Debug(map[string]any{"key": key.String(), "uri": uri, "host": host, "count": res.Count}, "uri index updated")
	}
	return res, nil
}

// URIIndexCount returns the number of distinct pairs stored for uri.
func (t *Table) URIIndexCount(key domain.Key, uri string) (int, error) {
	e, err := t.URIIndexEntry(key, uri)
	if err != nil {
		return 0, err
	}
	return e.Count(), nil
}

// URIIndexSummary returns the stored destinations followed by the URI bytes.
func (t *Table) URIIndexSummary(key domain.Key, uri string) ([]byte, error) {
	e, err := t.URIIndexEntry(key, uri)
	if err != nil {
		return nil, err
	}
	return e.Summary(), nil
}

// URIIndexEntry returns a copy of uri's exact index entry.
func (t *Table) URIIndexEntry(key domain.Key, uri string) (domain.IndexEntry, error) {
	r, err := t.lookup(key, "read uri index")
	if err != nil {
		return domain.IndexEntry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.index[uri]
	if !ok {
		return domain.IndexEntry{}, fmt.Errorf("%s %q: %w", key, uri, domain.ErrURINotIndexed)
	}
	return e.snapshot(uri), nil
}

// RemoveURI deletes uri's index entry. Unknown URIs are ignored.
func (t *Table) RemoveURI(key domain.Key, uri string) error {
	r, err := t.lookup(key, "remove uri")
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.index, uri)
	r.mu.Unlock()
	return nil
}

// RefreshFilters reinitialises each of key's filters whose estimated
// false-positive rate is at least threshold, zeroing its counter. A URI filter
// refresh also clears the entire URI index.
func (t *Table) RefreshFilters(key domain.Key, threshold float64) (domain.RefreshReport, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return domain.RefreshReport{}, fmt.Errorf("refresh %s: %w (got %v)", key, domain.ErrInvalidThreshold, threshold)
	}
	r, err := t.lookup(key, "refresh")
	if err != nil {
		return domain.RefreshReport{}, err
	}

	var report domain.RefreshReport
	r.mu.Lock()
	for _, s := range []struct {
		name domain.FilterName
		slot *slot
	}{
		{domain.FilterDestinations, &r.dsts},
		{domain.FilterURIs, &r.uris},
		{domain.FilterPairs, &r.pairs},
	} {
		f := s.slot.filter
		if t.estimate(s.slot.inserts, f.Cap(), f.K()) < threshold {
			continue
		}
		*s.slot = slot{filter: t.factory.New()}
		report.Refreshed = append(report.Refreshed, s.name)
		if s.name == domain.FilterURIs {
			r.index = make(map[string]*indexEntry)
			report.IndexCleared = true
		}
	}
	r.mu.Unlock()

	for _, name := range report.Refreshed {
		t.observer.FilterRefreshed(name)
	}
	if report.Any() {
		t.logger.Debug(map[string]any{
			"key":           key.String(),
			"filters":       report.Refreshed,
			"threshold":     threshold,
			"index_cleared": report.IndexCleared,
		}, "bloom filters refreshed")
	}
	return report, nil
}
