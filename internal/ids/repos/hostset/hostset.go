// Package hostset holds the global bloom filter of suspicious hosts. Hosts
// are reduced to their registered domain, so "cdn.evil.example" matches an
// entry for "evil.example".
package hostset

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/common/utils"
	"github.com/haukened/rr-ids/internal/ids/repos/hostset/parsers"
	"github.com/haukened/rr-ids/internal/ids/repos/membership"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
)

// Set is safe for concurrent use.
type Set struct {
	mu       sync.RWMutex
	filter   bloom.Filter
	inserts  uint64
	factory  bloom.Factory
	estimate membership.Estimator
	logger   log.Logger
}

// New returns an empty Set. A nil estimator selects membership.EstimateSingleRound.
func New(factory bloom.Factory, estimate membership.Estimator, logger log.Logger) (*Set, error) {
	if factory == nil {
		return nil, errors.New("hostset: filter factory is required")
	}
	if estimate == nil {
		estimate = membership.EstimateSingleRound
	}
	return &Set{
		filter:   factory.New(),
		factory:  factory,
		estimate: estimate,
		logger:   log.OrNoop(logger),
	}, nil
}

// Add records host. Empty hosts are ignored.
func (s *Set) Add(host string) {
	name := utils.RegisteredDomain(host)
	if name == "" {
		return
	}
	s.mu.Lock()
	s.filter.Add([]byte(name))
	s.inserts++
	s.mu.Unlock()
}

// Contains reports whether host's registered domain was (probably) added.
func (s *Set) Contains(host string) bool {
	name := utils.RegisteredDomain(host)
	if name == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.Test([]byte(name))
}

// Count returns the insertions since the filter was last refreshed.
func (s *Set) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}

// Refresh replaces the filter with an empty one when its estimated
// false-positive rate is at least threshold, and reports whether it did.
// Thresholds outside [0,1] never refresh.
func (s *Set) Refresh(threshold float64) bool {
	if !(threshold >= 0 && threshold <= 1) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.estimate(s.inserts, s.filter.Cap(), s.filter.K()) < threshold {
		return false
	}
	s.filter = s.factory.New()
	s.logger.Info(map[string]any{"inserts": s.inserts, "threshold": threshold}, "host set refreshed")
	s.inserts = 0
	return true
}

// Load adds every host parsed from r and returns how many were added.
// Entries that are themselves public suffixes ("co.uk") can never equal a
// registered domain, so they are skipped with a warning.
func (s *Set) Load(r io.Reader, source string) (int, error) {
	hosts, err := parsers.ParseHostList(r, source, s.logger)
	if err != nil {
		return 0, fmt.Errorf("hostset: load %s: %w", source, err)
	}
	added := 0
	for _, h := range hosts {
		if isPublicSuffix(h) {
			s.logger.Warn(map[string]any{"source": source, "host": h}, "host list entry is a public suffix, skipped")
			continue
		}
		s.Add(h)
		added++
	}
	s.logger.Info(map[string]any{"source": source, "hosts": added, "skipped": len(hosts) - added}, "host list loaded")
	return added, nil
}

func isPublicSuffix(host string) bool {
	name := utils.CanonicalHost(host)
	if name == "" || net.ParseIP(name) != nil {
		return false
	}
	return utils.PublicSuffix(name) == name
}
