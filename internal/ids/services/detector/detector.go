// Package detector evaluates HTTP events against the repetition, redirection
// and suspicious-host heuristics and emits alerts.
package detector

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-ids/internal/ids/common/clock"
	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/common/utils"
	"github.com/haukened/rr-ids/internal/ids/domain"
)

// ErrInvalidEvent is returned for events without valid source and destination addresses.
var ErrInvalidEvent = errors.New("detector: event needs valid source and destination addresses")

// Options configures a Detector. Membership and Redirects are required;
// Hosts, Sink and Metrics are optional.
type Options struct {
	Membership Membership
	Redirects  Redirects
	Hosts      HostSet
	Sink       AlertSink
	Metrics    Metrics
	Clock      clock.Clock
	Logger     log.Logger

	// RepetitionThreshold is the number of distinct destinations serving one
	// URI that raises a repetition alert.
	RepetitionThreshold int
	// RedirectThreshold is how many requests may pass without following a redirect.
	RedirectThreshold int
	// FPThreshold triggers a filter refresh after each event.
	FPThreshold float64
}

// Detector is safe for concurrent use when its collaborators are.
type Detector struct {
	mem       Membership
	redirects Redirects
	hosts     HostSet
	sink      AlertSink
	metrics   Metrics
	clock     clock.Clock
	logger    log.Logger

	repetition int
	redirect   int
	fp         float64
}

// New validates opts and returns a Detector.
func New(opts Options) (*Detector, error) {
	if opts.Membership == nil {
		return nil, errors.New("detector: membership table is required")
	}
	if opts.Redirects == nil {
		return nil, errors.New("detector: redirect tracker is required")
	}
	if opts.RepetitionThreshold < 2 || opts.RepetitionThreshold > domain.MaxIndexedDestinations {
		return nil, fmt.Errorf("detector: repetition threshold must be within [2,%d], got %d",
			domain.MaxIndexedDestinations, opts.RepetitionThreshold)
	}
	if opts.RedirectThreshold < 0 {
		return nil, fmt.Errorf("detector: redirect threshold must not be negative, got %d", opts.RedirectThreshold)
	}
	if !(opts.FPThreshold >= 0 && opts.FPThreshold <= 1) {
		return nil, fmt.Errorf("detector: %w (got %v)", domain.ErrInvalidThreshold, opts.FPThreshold)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Detector{
		mem:        opts.Membership,
		redirects:  opts.Redirects,
		hosts:      opts.Hosts,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		logger:     log.OrNoop(opts.Logger),
		repetition: opts.RepetitionThreshold,
		redirect:   opts.RedirectThreshold,
		fp:         opts.FPThreshold,
	}, nil
}

// Handle evaluates one event and returns the alerts it raised. Alerts are
// also written to the sink; sink failures are returned alongside the alerts.
func (d *Detector) Handle(ctx context.Context, ev domain.Event) ([]domain.Alert, error) {
	if !ev.Src.IsValid() || !ev.Dst.IsValid() {
		d.eventHandled(true)
		return nil, ErrInvalidEvent
	}

	var alerts []domain.Alert
	if a, ok := d.checkHost(ev); ok {
		alerts = append(alerts, a)
	}
	rep, err := d.checkRepetition(ev)
	alerts = append(alerts, rep...)
	redir, rerr := d.checkRedirection(ev)
	alerts = append(alerts, redir...)
	err = multierr.Combine(err, rerr, d.emit(ctx, alerts))

	d.eventHandled(err != nil)
	return alerts, err
}

// Sweep raises a redirection alert for every redirect still pending and
// forgets them. It is meant for end of input.
func (d *Detector) Sweep(ctx context.Context) ([]domain.Alert, error) {
	pending := d.redirects.Snapshot()
	alerts := make([]domain.Alert, 0, len(pending))
	now := d.clock.Now()
	for _, r := range pending {
		a := redirectAlert(r, now)
		a.Info["pending"] = "true"
		alerts = append(alerts, a)
	}
	seen := make(map[domain.Key]struct{})
	for _, r := range pending {
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		d.redirects.DeleteKey(r.Source)
	}
	if len(alerts) > 0 {
		d.logger.Info(map[string]any{"alerts": len(alerts), "sources": len(seen)}, "pending redirects swept")
	}
	return alerts, d.emit(ctx, alerts)
}

func (d *Detector) checkHost(ev domain.Event) (domain.Alert, bool) {
	if d.hosts == nil || ev.Host == "" || !d.hosts.Contains(ev.Host) {
		return domain.Alert{}, false
	}
	a := d.newAlert(domain.HeuristicHost, ev)
	a.Info = map[string]string{"domain": utils.RegisteredDomain(ev.Host)}
	return a, true
}

// checkRepetition flags a source that requests the same URI from
// RepetitionThreshold distinct (destination, host) pairs.
func (d *Detector) checkRepetition(ev domain.Event) ([]domain.Alert, error) {
	key := ev.SourceKey()
	dst := ev.DestinationBytes()
	host := utils.CanonicalHost(ev.Host)

	if !d.mem.KeyExists(key) {
		if err := d.mem.AddBoth(key, dst, ev.URI); err != nil {
			return nil, err
		}
		if err := d.mem.AddPair(key, dst, ev.URI); err != nil {
			return nil, err
		}
		if _, err := d.mem.UpdateURIIndex(key, dst, ev.URI, host); err != nil {
			return nil, err
		}
		return nil, nil
	}

	uriSeen := d.mem.URIPresent(key, ev.URI).Found()
	pairSeen := d.mem.PairPresent(key, dst, ev.URI).Found()
	err := multierr.Combine(
		d.mem.AddDestination(key, dst),
		d.mem.AddURI(key, ev.URI),
		d.mem.AddPair(key, dst, ev.URI),
	)
	if err != nil {
		return nil, err
	}

	var alerts []domain.Alert
	if !uriSeen || !pairSeen {
		res, err := d.mem.UpdateURIIndex(key, dst, ev.URI, host)
		if err != nil {
			return nil, err
		}
		if res.Added && res.Count >= d.repetition {
			a, err := d.repetitionAlert(ev, key)
			if err != nil {
				return nil, err
			}
			alerts = append(alerts, a)
		}
	}

	report, err := d.mem.RefreshFilters(key, d.fp)
	if err != nil {
		return alerts, err
	}
	if report.Any() {
		d.logger.Debug(map[string]any{"key": key.String(), "filters": report.Refreshed}, "filters refreshed after event")
	}
	return alerts, nil
}

func (d *Detector) repetitionAlert(ev domain.Event, key domain.Key) (domain.Alert, error) {
	entry, err := d.mem.URIIndexEntry(key, ev.URI)
	if err != nil {
		return domain.Alert{}, err
	}
	if err := d.mem.RemoveURI(key, ev.URI); err != nil {
		return domain.Alert{}, err
	}
	dsts := make([]string, 0, len(entry.Destinations))
	for _, b := range entry.Destinations {
		dsts = append(dsts, domain.KeyFromBytes(b).String())
	}
	a := d.newAlert(domain.HeuristicRepetition, ev)
	a.Info = map[string]string{
		"count":   strconv.Itoa(entry.Count()),
		"dsts":    strings.Join(dsts, ","),
		"hosts":   strings.Join(entry.Hosts, ","),
		"summary": hex.EncodeToString(entry.Summary()),
	}
	return a, nil
}

// checkRedirection tracks redirect responses and expires the ones a source
// ignores for more than RedirectThreshold requests.
func (d *Detector) checkRedirection(ev domain.Event) ([]domain.Alert, error) {
	key := ev.SourceKey()

	if ev.IsRedirect() {
		typ, err := domain.NewRedirectType(ev.Status)
		if err != nil {
			return nil, err
		}
		loc := target(ev.Location, ev.Host, ev.URI)
		return nil, d.redirects.AddLocation(key, ev.DestinationBytes(), loc, typ)
	}

	if !d.redirects.KeyExists(key) {
		return nil, nil
	}
	req := target(ev.URI, ev.Host, "")
	if d.redirects.LocationPresent(key, req).Found() {
		if r, ok := d.redirects.RemoveLocation(key, req); ok {
			d.logger.Debug(map[string]any{"key": key.String(), "location": r.Location, "after": r.Count}, "redirect followed")
		}
	}

	expired, err := d.redirects.Advance(key, d.redirect)
	if err != nil {
		return nil, err
	}
	now := d.eventTime(ev)
	alerts := make([]domain.Alert, 0, len(expired))
	for _, r := range expired {
		alerts = append(alerts, redirectAlert(r, now))
	}
	if n, err := d.redirects.Pending(key); err == nil && n == 0 {
		d.redirects.DeleteKey(key)
	}
	return alerts, nil
}

func redirectAlert(r domain.Redirect, ts time.Time) domain.Alert {
	a := domain.Alert{
		Time:      ts,
		Heuristic: domain.HeuristicRedirection,
		Source:    r.Source.String(),
		Info: map[string]string{
			"location": r.Location,
			"type":     r.Type.String(),
			"count":    strconv.Itoa(r.Count),
		},
	}
	if len(r.Destination) > 0 {
		a.Destination = domain.KeyFromBytes(r.Destination).String()
	}
	return a
}

func (d *Detector) newAlert(h domain.Heuristic, ev domain.Event) domain.Alert {
	return domain.Alert{
		Time:        d.eventTime(ev),
		Heuristic:   h,
		Source:      ev.Src.Unmap().String(),
		Destination: ev.Dst.Unmap().String(),
		Host:        ev.Host,
		URI:         ev.URI,
	}
}

func (d *Detector) eventTime(ev domain.Event) time.Time {
	if ev.Time.IsZero() {
		return d.clock.Now()
	}
	return ev.Time
}

func (d *Detector) emit(ctx context.Context, alerts []domain.Alert) error {
	var err error
	for _, a := range alerts {
		if d.metrics != nil {
			d.metrics.AlertRaised(a.Heuristic)
		}
		d.logger.Info(map[string]any{
			"heuristic": string(a.Heuristic),
			"src":       a.Source,
			"dst":       a.Destination,
			"host":      a.Host,
			"uri":       a.URI,
		}, "alert raised")
		if d.sink == nil {
			continue
		}
		if _, serr := d.sink.Append(ctx, a); serr != nil {
			err = multierr.Append(err, fmt.Errorf("detector: journal alert: %w", serr))
		}
	}
	return err
}

func (d *Detector) eventHandled(failed bool) {
	if d.metrics != nil {
		d.metrics.EventHandled(failed)
	}
}
