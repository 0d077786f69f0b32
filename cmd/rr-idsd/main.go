package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/haukened/rr-ids/internal/ids/common/clock"
	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/config"
	"github.com/haukened/rr-ids/internal/ids/domain"
	"github.com/haukened/rr-ids/internal/ids/gateways/eventlog"
	"github.com/haukened/rr-ids/internal/ids/repos/alertlog"
	"github.com/haukened/rr-ids/internal/ids/repos/hostset"
	"github.com/haukened/rr-ids/internal/ids/repos/membership"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
	"github.com/haukened/rr-ids/internal/ids/repos/redirect"
	"github.com/haukened/rr-ids/internal/ids/services/detector"
	"github.com/haukened/rr-ids/internal/ids/stats"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-idsd"

	metricsPath            = "/metrics"
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the detector.
type Application struct {
	config   *config.AppConfig
	table    *membership.Table
	tracker  *redirect.Tracker
	hosts    *hostset.Set
	journal  *alertlog.Journal
	metrics  *stats.Metrics
	detector *detector.Detector
	input    io.Reader
	closers  []io.Closer
}

// runSummary is logged when replay ends.
type runSummary struct {
	Events  int
	Errors  int
	Alerts  int
	Swept   int
	Sources int
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info(map[string]any{
		"version":      version,
		"env":          cfg.Env,
		"log_level":    cfg.LogLevel,
		"bloom":        cfg.BloomParams(),
		"estimator":    cfg.Estimator,
		"max_keys":     cfg.MaxKeys,
		"fp_threshold": cfg.FPThreshold,
		"input":        cfg.Input,
		"alert_db":     cfg.AlertDB,
	}, "Starting "+appName)

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()

		sig = <-sigChan
		log.Warn(map[string]any{"signal": sig.String()}, "Second signal received, exiting immediately")
		_ = log.Sync()
		os.Exit(1)
	}()

	runErr := app.Run(ctx)
	if err := multierr.Append(runErr, app.Close()); err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Detector stopped with errors")
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (app *Application, err error) {
	logger := log.GetLogger()
	a := &Application{config: cfg, metrics: stats.New(metricsPath)}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	factory, err := bloom.NewFactory(cfg.BloomParams())
	if err != nil {
		return nil, fmt.Errorf("failed to build filter factory: %w", err)
	}
	estimator, err := membership.LookupEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}

	a.table, err = membership.NewTable(membership.TableOptions{
		Factory:   factory,
		MaxKeys:   cfg.MaxKeys,
		Estimator: estimator,
		Logger:    logger,
		Observer:  a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build membership table: %w", err)
	}

	a.tracker, err = redirect.New(cfg.MaxKeys, logger, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build redirect tracker: %w", err)
	}

	a.hosts, err = buildHostSet(cfg, factory, estimator, logger)
	if err != nil {
		return nil, err
	}

	a.journal, err = alertlog.Open(cfg.AlertDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.journal)
	log.Info(map[string]any{"path": cfg.AlertDB}, "Alert journal opened")

	a.input, err = openInput(cfg.Input)
	if err != nil {
		return nil, err
	}
	if c, ok := a.input.(io.Closer); ok && a.input != os.Stdin {
		a.closers = append(a.closers, c)
	}

	a.detector, err = detector.New(detector.Options{
		Membership:          a.table,
		Redirects:           a.tracker,
		Hosts:               a.hosts,
		Sink:                a.journal,
		Metrics:             a.metrics,
		Clock:               clock.RealClock{},
		Logger:              logger,
		RepetitionThreshold: cfg.RepetitionThreshold,
		RedirectThreshold:   cfg.RedirectThreshold,
		FPThreshold:         cfg.FPThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}
	return a, nil
}

// buildHostSet creates the global host filter and loads the configured list, if any.
func buildHostSet(cfg *config.AppConfig, factory bloom.Factory, est membership.Estimator, logger log.Logger) (*hostset.Set, error) {
	hosts, err := hostset.New(factory, est, logger)
	if err != nil {
		return nil, err
	}
	if cfg.HostList == "" {
		return hosts, nil
	}
	f, err := os.Open(cfg.HostList)
	if err != nil {
		return nil, fmt.Errorf("failed to open host list: %w", err)
	}
	defer f.Close()
	if _, err := hosts.Load(f, cfg.HostList); err != nil {
		return nil, err
	}
	return hosts, nil
}

func openInput(path string) (io.Reader, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

// Run replays the input until it is exhausted or ctx is cancelled, then
// sweeps pending redirects.
func (app *Application) Run(ctx context.Context) error {
	if app.config.MetricsAddr != "" {
		ln, err := net.Listen("tcp", app.config.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics: %w", err)
		}
		go func() {
			if err := app.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn(map[string]any{"error": err.Error()}, "Metrics server stopped")
			}
		}()
		log.Info(map[string]any{"address": ln.Addr().String(), "path": metricsPath}, "Metrics endpoint started")
	}

	sum, err := app.replay(ctx)

	swept, serr := app.detector.Sweep(context.WithoutCancel(ctx))
	sum.Swept = len(swept)
	sum.Sources = app.table.Len()
	err = multierr.Append(err, serr)

	log.Info(map[string]any{
		"events":  sum.Events,
		"errors":  sum.Errors,
		"alerts":  sum.Alerts,
		"swept":   sum.Swept,
		"sources": sum.Sources,
	}, "Replay finished")
	return err
}

// decoded is one step of the input decoder.
type decoded struct {
	ev    domain.Event
	err   error
	line  int
	fatal bool
}

// decode runs the decoder until end of input, a read failure or ctx is done.
// The decoder may stay blocked in a read after ctx is done; Close releases it
// for inputs other than stdin.
func decode(ctx context.Context, r io.Reader) <-chan decoded {
	out := make(chan decoded)
	go func() {
		defer close(out)
		dec := eventlog.NewDecoder(r)
		for {
			ev, err := dec.Next()
			d := decoded{ev: ev, err: err, line: dec.Line(), fatal: dec.Err() != nil}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
			if errors.Is(err, io.EOF) || d.fatal {
				return
			}
		}
	}()
	return out
}

func (app *Application) replay(ctx context.Context) (runSummary, error) {
	var sum runSummary
	line := 0
	events := decode(ctx, app.input)
	for {
		if ctx.Err() != nil {
			log.Info(map[string]any{"line": line}, "Replay interrupted")
			return sum, nil
		}
		var d decoded
		select {
		case <-ctx.Done():
			continue
		case next, ok := <-events:
			if !ok {
				return sum, nil
			}
			d = next
		}
		line = d.line

		if errors.Is(d.err, io.EOF) {
			return sum, nil
		}
		if d.err != nil {
			sum.Errors++
			if d.fatal {
				return sum, d.err
			}
			log.Warn(map[string]any{"error": d.err.Error()}, "Skipping malformed event")
			continue
		}
		sum.Events++
		alerts, err := app.detector.Handle(ctx, d.ev)
		sum.Alerts += len(alerts)
		if err != nil {
			sum.Errors++
			log.Warn(map[string]any{"error": err.Error(), "line": line}, "Event evaluation failed")
		}
	}
}

// Close releases the journal, the input and the metrics endpoint.
func (app *Application) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	err := app.metrics.Close(shutdownCtx)
	for i := len(app.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, app.closers[i].Close())
	}
	app.closers = nil
	return err
}
