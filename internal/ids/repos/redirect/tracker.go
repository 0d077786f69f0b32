// Package redirect tracks, per source, the redirect locations a client has
// been sent to but has not yet followed.
package redirect

import (
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/domain"
)

// DefaultMaxKeys bounds the number of tracked sources when New is given 0.
const DefaultMaxKeys = 1 << 16

type pending struct {
	dst   []byte
	typ   domain.RedirectType
	count int
}

// Observer is told when a source is dropped to make room for another.
type Observer interface {
	SourceEvicted()
}

type nopObserver struct{}

func (nopObserver) SourceEvicted() {}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	sources  *lru.Cache[domain.Key, map[string]*pending]
	maxKeys  int
	logger   log.Logger
	observer Observer
}

// New returns a Tracker holding at most maxKeys sources. The least recently
// used source is dropped with all its locations when the bound is reached.
// A nil observer is allowed.
func New(maxKeys int, logger log.Logger, observer Observer) (*Tracker, error) {
	if maxKeys == 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New[domain.Key, map[string]*pending](maxKeys)
	if err != nil {
		return nil, fmt.Errorf("redirect: %w", err)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Tracker{
		sources:  cache,
		maxKeys:  maxKeys,
		logger:   log.OrNoop(logger),
		observer: observer,
	}, nil
}

// KeyExists reports whether key has any tracking state.
func (t *Tracker) KeyExists(key domain.Key) bool {
	return t.sources.Contains(key)
}

// LocationPresent reports whether location is pending for key.
func (t *Tracker) LocationPresent(key domain.Key, location string) domain.Verdict {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		return domain.VerdictNoRecord
	}
	if _, ok := locs[location]; ok {
		return domain.VerdictPresent
	}
	return domain.VerdictAbsent
}

// AddLocation starts tracking location for key with a zero count. A location
// that is already pending is left untouched.
func (t *Tracker) AddLocation(key domain.Key, dst []byte, location string, typ domain.RedirectType) error {
	if !typ.Valid() {
		return fmt.Errorf("add location %q: %w: %d", location, domain.ErrInvalidRedirectType, uint16(typ))
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		t.evictLocked()
		locs = make(map[string]*pending)
		t.sources.Add(key, locs)
	}
	if _, ok := locs[location]; ok {
		return nil
	}
	locs[location] = &pending{dst: append([]byte(nil), dst...), typ: typ}
	t.logger.Debug(map[string]any{"key": key.String(), "location": location, "type": typ.String()}, "redirect tracked")
	return nil
}

// evictLocked drops the least recently used source when the tracker is full.
func (t *Tracker) evictLocked() {
	if t.sources.Len() < t.maxKeys {
		return
	}
	oldest, locs, ok := t.sources.RemoveOldest()
	if !ok {
		return
	}
	t.observer.SourceEvicted()
	t.logger.Warn(map[string]any{
		"key":      oldest.String(),
		"pending":  len(locs),
		"max_keys": t.maxKeys,
	}, "redirect tracker full, evicted oldest source")
}

// Advance counts one more request from key against every pending location.
// Locations whose count exceeds threshold are removed and returned, ordered
// by location.
func (t *Tracker) Advance(key domain.Key, threshold int) ([]domain.Redirect, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		return nil, fmt.Errorf("advance %s: %w", key, domain.ErrNoRecord)
	}
	var expired []domain.Redirect
	for loc, p := range locs {
		p.count++
		if p.count > threshold {
			expired = append(expired, p.redirect(key, loc))
			delete(locs, loc)
		}
	}
	sortRedirects(expired)
	return expired, nil
}

// Pending returns the number of locations tracked for key.
func (t *Tracker) Pending(key domain.Key) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		return 0, fmt.Errorf("pending %s: %w", key, domain.ErrNoRecord)
	}
	return len(locs), nil
}

// LocationCount returns how many requests key made since location was tracked.
func (t *Tracker) LocationCount(key domain.Key, location string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		return 0, fmt.Errorf("location count %s: %w", key, domain.ErrNoRecord)
	}
	p, ok := locs[location]
	if !ok {
		return 0, fmt.Errorf("location count %s %q: %w", key, location, domain.ErrLocationNotFound)
	}
	return p.count, nil
}

// RemoveLocation stops tracking location for key, returning the redirect
// that was pending. The bool is false when nothing was tracked.
func (t *Tracker) RemoveLocation(key domain.Key, location string) (domain.Redirect, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	locs, ok := t.sources.Get(key)
	if !ok {
		return domain.Redirect{}, false
	}
	p, ok := locs[location]
	if !ok {
		return domain.Redirect{}, false
	}
	delete(locs, location)
	return p.redirect(key, location), true
}

// DeleteKey drops every location tracked for key.
func (t *Tracker) DeleteKey(key domain.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources.Remove(key)
}

// Len returns the number of tracked sources.
func (t *Tracker) Len() int { return t.sources.Len() }

// Snapshot returns a copy of every pending redirect, ordered by source then location.
func (t *Tracker) Snapshot() []domain.Redirect {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.Redirect
	for _, key := range t.sources.Keys() {
		locs, ok := t.sources.Peek(key)
		if !ok {
			continue
		}
		for loc, p := range locs {
			out = append(out, p.redirect(key, loc))
		}
	}
	sortRedirects(out)
	return out
}

func (p *pending) redirect(key domain.Key, location string) domain.Redirect {
	return domain.Redirect{
		Source:      key,
		Location:    location,
		Destination: append([]byte(nil), p.dst...),
		Type:        p.typ,
		Count:       p.count,
	}
}

func sortRedirects(rs []domain.Redirect) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Source != rs[j].Source {
			return rs[i].Source < rs[j].Source
		}
		return rs[i].Location < rs[j].Location
	})
}
