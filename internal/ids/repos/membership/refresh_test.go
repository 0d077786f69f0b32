package membership

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-ids/internal/ids/domain"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
)

func TestEstimators(t *testing.T) {
	tests := []struct {
		name    string
		est     Estimator
		inserts uint64
		bits    uint
		rounds  uint
		want    float64
	}{
		{"single empty", EstimateSingleRound, 0, 64, 10, 0},
		{"single n=m", EstimateSingleRound, 64, 64, 10, 1 - math.Exp(-1)},
		{"single ignores k", EstimateSingleRound, 32, 64, 1, 1 - math.Exp(-0.5)},
		{"legacy below m", EstimateLegacy, 63, 64, 1, 0},
		{"legacy n=m", EstimateLegacy, 64, 64, 1, 1 - math.Exp(-1)},
		{"legacy truncates", EstimateLegacy, 127, 64, 1, 1 - math.Exp(-1)},
		{"textbook k=1", EstimateTextbook, 64, 64, 1, 1 - math.Exp(-1)},
		{"textbook k=2", EstimateTextbook, 32, 64, 2, math.Pow(1-math.Exp(-1), 2)},
		{"textbook empty", EstimateTextbook, 0, 64, 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.est(tt.inserts, tt.bits, tt.rounds), 1e-12)
		})
	}
}

func TestEstimators_Monotone(t *testing.T) {
	for _, est := range []Estimator{EstimateSingleRound, EstimateLegacy, EstimateTextbook} {
		prev := -1.0
		for n := uint64(0); n < 1000; n += 7 {
			v := est(n, 128, 3)
			assert.GreaterOrEqual(t, v, prev)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			prev = v
		}
	}
}

func TestLookupEstimator(t *testing.T) {
	for _, name := range []string{"", EstimatorSingle, EstimatorLegacy, EstimatorTextbook} {
		est, err := LookupEstimator(name)
		require.NoError(t, err, name)
		assert.NotNil(t, est)
	}
	_, err := LookupEstimator("bogus")
	assert.Error(t, err)
}

func smallTable(t *testing.T, est Estimator) *Table {
	t.Helper()
	f, err := bloom.NewFactory(bloom.Params{Bits: 64, Rounds: 1, Family: "classic"})
	require.NoError(t, err)
	tbl, err := NewTable(TableOptions{Factory: f, Estimator: est})
	require.NoError(t, err)
	return tbl
}

func TestRefreshFilters_InvalidThreshold(t *testing.T) {
	tbl := smallTable(t, nil)
	k := key("10.0.0.1")
	require.NoError(t, tbl.EnsureRecord(k))

	for _, th := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := tbl.RefreshFilters(k, th)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold, "threshold %v", th)
	}
}

func TestRefreshFilters_OnlyCrossedFilters(t *testing.T) {
	tbl, obs := newTestTable(t, bloom.Params{Bits: 64, Rounds: 1, Family: "classic"}, 0)
	k := key("10.0.0.1")
	d := dst("93.1.1.1")
	require.NoError(t, tbl.EnsureRecord(k))

	// 50 URIs put the URI filter at 1-e^(-50/64) ~ 0.54; 5 destinations at ~0.075
	for i := 0; i < 50; i++ {
		require.NoError(t, tbl.AddURI(k, fmt.Sprintf("/u/%d", i)))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, tbl.AddDestination(k, dst(fmt.Sprintf("93.1.1.%d", i+1))))
	}
	_, err := tbl.UpdateURIIndex(k, d, "/u/1", "a.example")
	require.NoError(t, err)
	_, err = tbl.UpdateURIIndex(k, d, "/other", "a.example")
	require.NoError(t, err)

	report, err := tbl.RefreshFilters(k, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []domain.FilterName{domain.FilterURIs}, report.Refreshed)
	assert.True(t, report.IndexCleared)

	c, err := tbl.Counters(k)
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{Destinations: 5}, c)
	assert.Equal(t, domain.VerdictPresent, tbl.DestinationPresent(k, d), "untouched filters keep their contents")

	// the whole index is cleared, including URIs unrelated to the filter contents
	_, err = tbl.URIIndexCount(k, "/u/1")
	assert.ErrorIs(t, err, domain.ErrURINotIndexed)
	_, err = tbl.URIIndexCount(k, "/other")
	assert.ErrorIs(t, err, domain.ErrURINotIndexed)

	assert.Equal(t, 1, obs.refreshed[domain.FilterURIs])
	assert.Zero(t, obs.refreshed[domain.FilterDestinations])
}

func TestRefreshFilters_BelowThresholdIsNoop(t *testing.T) {
	tbl := smallTable(t, nil)
	k := key("10.0.0.1")
	require.NoError(t, tbl.AddBoth(k, dst("1.1.1.1"), "/a"))
	_, err := tbl.UpdateURIIndex(k, dst("1.1.1.1"), "/a", "h")
	require.NoError(t, err)

	report, err := tbl.RefreshFilters(k, 0.9)
	require.NoError(t, err)
	assert.False(t, report.Any())
	assert.False(t, report.IndexCleared)

	n, err := tbl.URIIndexCount(k, "/a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRefreshFilters_ZeroThresholdRefreshesAll(t *testing.T) {
	tbl := smallTable(t, nil)
	k := key("10.0.0.1")
	d := dst("1.1.1.1")
	require.NoError(t, tbl.AddBoth(k, d, "/a"))
	require.NoError(t, tbl.AddPair(k, d, "/a"))

	report, err := tbl.RefreshFilters(k, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.FilterName{domain.FilterDestinations, domain.FilterURIs, domain.FilterPairs}, report.Refreshed)

	c, err := tbl.Counters(k)
	require.NoError(t, err)
	assert.Equal(t, domain.Counters{}, c)
	assert.Equal(t, domain.VerdictAbsent, tbl.DestinationPresent(k, d))
	assert.Equal(t, domain.VerdictAbsent, tbl.URIPresent(k, "/a"))
	assert.Equal(t, domain.VerdictAbsent, tbl.PairPresent(k, d, "/a"))
}

func TestRefreshFilters_KeepsFilterShape(t *testing.T) {
	tbl := smallTable(t, nil)
	k := key("10.0.0.1")
	require.NoError(t, tbl.EnsureRecord(k))
	_, err := tbl.RefreshFilters(k, 0)
	require.NoError(t, err)

	r, ok := tbl.records.Get(k)
	require.True(t, ok)
	for _, s := range []slot{r.dsts, r.uris, r.pairs} {
		assert.Equal(t, uint(64), s.filter.Cap())
		assert.Equal(t, uint(1), s.filter.K())
	}
}

func TestRefreshFilters_LegacyEstimatorWaitsForFullFilter(t *testing.T) {
	tbl := smallTable(t, EstimateLegacy)
	k := key("10.0.0.1")
	require.NoError(t, tbl.EnsureRecord(k))

	for i := 0; i < 63; i++ {
		require.NoError(t, tbl.AddURI(k, fmt.Sprintf("/u/%d", i)))
	}
	report, err := tbl.RefreshFilters(k, 0.5)
	require.NoError(t, err)
	assert.False(t, report.Any())

	require.NoError(t, tbl.AddURI(k, "/u/63"))
	report, err = tbl.RefreshFilters(k, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []domain.FilterName{domain.FilterURIs}, report.Refreshed)
}
