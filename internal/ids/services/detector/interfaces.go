package detector

import (
	"context"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

// Membership is the per-source bloom filter table.
type Membership interface {
	KeyExists(key domain.Key) bool
	AddBoth(key domain.Key, dst []byte, uri string) error
	AddDestination(key domain.Key, dst []byte) error
	AddURI(key domain.Key, uri string) error
	AddPair(key domain.Key, dst []byte, uri string) error
	URIPresent(key domain.Key, uri string) domain.Verdict
	PairPresent(key domain.Key, dst []byte, uri string) domain.Verdict
	UpdateURIIndex(key domain.Key, dst []byte, uri, host string) (domain.IndexUpdate, error)
	URIIndexEntry(key domain.Key, uri string) (domain.IndexEntry, error)
	RemoveURI(key domain.Key, uri string) error
	RefreshFilters(key domain.Key, threshold float64) (domain.RefreshReport, error)
}

// Redirects tracks unfollowed redirect locations per source.
type Redirects interface {
	KeyExists(key domain.Key) bool
	LocationPresent(key domain.Key, location string) domain.Verdict
	AddLocation(key domain.Key, dst []byte, location string, typ domain.RedirectType) error
	RemoveLocation(key domain.Key, location string) (domain.Redirect, bool)
	Advance(key domain.Key, threshold int) ([]domain.Redirect, error)
	Pending(key domain.Key) (int, error)
	DeleteKey(key domain.Key)
	Snapshot() []domain.Redirect
}

// HostSet answers whether a host is on the suspicious-host list.
type HostSet interface {
	Contains(host string) bool
}

// AlertSink persists raised alerts.
type AlertSink interface {
	Append(ctx context.Context, alert domain.Alert) (uint64, error)
}

// Metrics counts detector activity. *stats.Metrics satisfies it, including a nil pointer.
type Metrics interface {
	AlertRaised(h domain.Heuristic)
	EventHandled(failed bool)
}
