package redirect

import (
	"net/netip"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-ids/internal/ids/domain"
)

func key(s string) domain.Key {
	return domain.KeyFromAddr(netip.MustParseAddr(s))
}

func newTracker(t *testing.T, max int) *Tracker {
	t.Helper()
	tr, err := New(max, nil, nil)
	require.NoError(t, err)
	return tr
}

func TestNew_RejectsNegativeSize(t *testing.T) {
	_, err := New(-1, nil, nil)
	assert.Error(t, err)
}

func TestTracker_AddLocation(t *testing.T) {
	tr := newTracker(t, 0)
	k := key("10.0.0.1")
	dst := []byte{93, 1, 1, 1}

	assert.False(t, tr.KeyExists(k))
	assert.Equal(t, domain.VerdictNoRecord, tr.LocationPresent(k, "http://a/"))

	require.NoError(t, tr.AddLocation(k, dst, "http://a/", domain.RedirectFound))
	assert.True(t, tr.KeyExists(k))
	assert.Equal(t, domain.VerdictPresent, tr.LocationPresent(k, "http://a/"))
	assert.Equal(t, domain.VerdictAbsent, tr.LocationPresent(k, "http://b/"))

	n, err := tr.LocationCount(k, "http://a/")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = tr.Advance(k, 10)
	require.NoError(t, err)
	require.NoError(t, tr.AddLocation(k, dst, "http://a/", domain.RedirectMovedPermanently))
	n, err = tr.LocationCount(k, "http://a/")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "re-adding a pending location keeps its count")

	pending, err := tr.Pending(k)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestTracker_AddLocationRejectsInvalidType(t *testing.T) {
	tr := newTracker(t, 0)
	err := tr.AddLocation(key("10.0.0.1"), nil, "http://a/", domain.RedirectType(200))
	assert.ErrorIs(t, err, domain.ErrInvalidRedirectType)
	assert.False(t, tr.KeyExists(key("10.0.0.1")))
}

func TestTracker_AdvanceExpiresPastThreshold(t *testing.T) {
	tr := newTracker(t, 0)
	k := key("10.0.0.1")
	dst := []byte{93, 1, 1, 1}
	require.NoError(t, tr.AddLocation(k, dst, "http://a/", domain.RedirectFound))

	for i := 0; i < 2; i++ {
		expired, err := tr.Advance(k, 2)
		require.NoError(t, err)
		assert.Empty(t, expired)
	}
	require.NoError(t, tr.AddLocation(k, dst, "http://b/", domain.RedirectSeeOther))

	expired, err := tr.Advance(k, 2)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, domain.Redirect{
		Source:      k,
		Location:    "http://a/",
		Destination: dst,
		Type:        domain.RedirectFound,
		Count:       3,
	}, expired[0])

	assert.Equal(t, domain.VerdictAbsent, tr.LocationPresent(k, "http://a/"))
	n, err := tr.LocationCount(k, "http://b/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTracker_MissingKey(t *testing.T) {
	tr := newTracker(t, 0)
	k := key("10.0.0.1")

	_, err := tr.Advance(k, 1)
	assert.ErrorIs(t, err, domain.ErrNoRecord)
	_, err = tr.Pending(k)
	assert.ErrorIs(t, err, domain.ErrNoRecord)
	_, err = tr.LocationCount(k, "x")
	assert.ErrorIs(t, err, domain.ErrNoRecord)

	require.NoError(t, tr.AddLocation(k, nil, "http://a/", domain.RedirectTemporary))
	_, err = tr.LocationCount(k, "x")
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestTracker_RemoveAndDelete(t *testing.T) {
	tr := newTracker(t, 0)
	k := key("10.0.0.1")
	require.NoError(t, tr.AddLocation(k, []byte{1, 2, 3, 4}, "http://a/", domain.RedirectPermanent))
	require.NoError(t, tr.AddLocation(k, []byte{1, 2, 3, 4}, "http://b/", domain.RedirectPermanent))

	r, ok := tr.RemoveLocation(k, "http://a/")
	require.True(t, ok)
	assert.Equal(t, "http://a/", r.Location)
	_, ok = tr.RemoveLocation(k, "http://a/")
	assert.False(t, ok)
	_, ok = tr.RemoveLocation(key("10.9.9.9"), "http://a/")
	assert.False(t, ok)

	tr.DeleteKey(k)
	assert.False(t, tr.KeyExists(k))
	assert.Zero(t, tr.Len())
}

func TestTracker_SnapshotOrdered(t *testing.T) {
	tr := newTracker(t, 0)
	a, b := key("10.0.0.1"), key("10.0.0.2")
	require.NoError(t, tr.AddLocation(b, nil, "http://z/", domain.RedirectFound))
	require.NoError(t, tr.AddLocation(a, nil, "http://y/", domain.RedirectFound))
	require.NoError(t, tr.AddLocation(a, nil, "http://x/", domain.RedirectFound))

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"http://x/", "http://y/", "http://z/"},
		[]string{snap[0].Location, snap[1].Location, snap[2].Location})
	assert.Equal(t, b, snap[2].Source)
}

type countingObserver struct{ evicted atomic.Int32 }

func (o *countingObserver) SourceEvicted() { o.evicted.Add(1) }

func TestTracker_EvictsOldestSource(t *testing.T) {
	obs := &countingObserver{}
	tr, err := New(2, nil, obs)
	require.NoError(t, err)

	require.NoError(t, tr.AddLocation(key("10.0.0.1"), nil, "http://a/", domain.RedirectFound))
	require.NoError(t, tr.AddLocation(key("10.0.0.2"), nil, "http://b/", domain.RedirectFound))
	require.NoError(t, tr.AddLocation(key("10.0.0.2"), nil, "http://c/", domain.RedirectFound))
	assert.Zero(t, obs.evicted.Load(), "a known source never evicts")

	require.NoError(t, tr.AddLocation(key("10.0.0.3"), nil, "http://d/", domain.RedirectFound))
	assert.Equal(t, int32(1), obs.evicted.Load())
	assert.False(t, tr.KeyExists(key("10.0.0.1")))
	assert.True(t, tr.KeyExists(key("10.0.0.2")))
	assert.True(t, tr.KeyExists(key("10.0.0.3")))
	assert.Equal(t, 2, tr.Len())

	tr.DeleteKey(key("10.0.0.2"))
	assert.Equal(t, int32(1), obs.evicted.Load(), "explicit deletes are not evictions")
}
