// Program spothunter polls the POTA, SOTA, DXSummit and DXHeat spot feeds,
// merges them into one filtered, deduplicated list ranked by recency, and
// shows it on a terminal dashboard and a small JSON API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"spothunter/aggregate"
	"spothunter/buffer"
	"spothunter/config"
	"spothunter/feeds"
	"spothunter/filter"
	"spothunter/geocache"
	"spothunter/httpapi"
	"spothunter/scheduler"
	"spothunter/spotstore"
	"spothunter/stats"
	"spothunter/ui"
)

const (
	envConfigPath       = "SPOTHUNTER_CONFIG"
	statusInterval      = 5 * time.Second
	shutdownGracePeriod = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "spothunter: %v\n", err)
		os.Exit(1)
	}
}

// Purpose: Wire configuration, storage, feeds, scheduler and displays, then block until shutdown.
// Key aspects: Every long-lived component is stopped in reverse order on return.
// Upstream: main.
// Downstream: setupLogging, openGeoStore, scheduler.Start, httpapi.Server, ui.Dashboard.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("spothunter", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML configuration (default $"+envConfigPath+" or "+config.DefaultPath+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, source, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(ctx, nil); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	ring := buffer.NewRingBuffer(cfg.Logging.BufferLines)
	logger, fanout, logErr := setupLogging(cfg.Logging, stdout, ring)
	defer fanout.Close()
	if logErr != nil {
		logger.Warn().Err(logErr).Msg("file logging disabled")
	}
	logger.Info().Str("source", source).Msg("configuration loaded")
	for _, line := range cfg.Lines() {
		logger.Info().Msg(line)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := stats.NewMetrics(registry)
	tracker := stats.NewTracker()

	geoStore, err := openGeoStore(cfg.GeoCache)
	if err != nil {
		return err
	}
	defer func() {
		if err := geoStore.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing geo cache")
		}
	}()
	if n, err := geoStore.Count(); err == nil {
		logger.Info().Str("backend", cfg.GeoCache.Backend).Str("entries", humanize.Comma(n)).Msg("geo cache opened")
	}
	resolver, err := geocache.NewResolver(geoStore,
		geocache.NewRegionClient(cfg.GeoCache.RegionURL, cfg.GeoCache.Timeout),
		cfg.GeoCache.LRUSize,
		geocache.WithMetrics(metrics),
		geocache.WithLogger(component(logger, "geocache")))
	if err != nil {
		return err
	}

	adapters := feeds.NewRegistry(resolver)
	feedList, err := buildFeeds(cfg, adapters)
	if err != nil {
		return err
	}

	initial, err := initialFilter(cfg, logger)
	if err != nil {
		return err
	}

	board := &aggregate.Board{}
	var dash *ui.Dashboard
	if useDashboard(cfg.UI.Mode, isStdoutTTY()) {
		dash = ui.NewDashboard(ui.Options{OnQuit: cancel, Recent: ring.Texts(ring.Capacity())})
		fanout.SetConsoleSink(dash.LogWriter())
	} else {
		logger.Info().Str("mode", cfg.UI.Mode).Msg("dashboard disabled, running headless")
	}
	displays := aggregate.Displays{board}
	if dash != nil {
		displays = append(displays, dash)
	} else {
		displays = append(displays, aggregate.DisplayFunc(func(spots []aggregate.DisplaySpot) {
			logger.Info().Int("spots", len(spots)).Msg("aggregate updated")
		}))
	}

	sched, err := scheduler.New(feedList,
		feeds.NewFetcher(cfg.Poll.Timeout),
		spotstore.New(),
		aggregate.New(cfg.Home, nil),
		displays,
		initial,
		scheduler.Timing{Interval: cfg.Poll.Interval, Timeout: cfg.Poll.Timeout, Debounce: cfg.Poll.Debounce},
		scheduler.WithLogger(component(logger, "scheduler")),
		scheduler.WithMetrics(metrics),
		scheduler.WithTracker(tracker))
	if err != nil {
		return err
	}
	sched.Start(ctx)
	defer func() {
		cancel()
		sched.Wait()
	}()

	var server *httpapi.Server
	if cfg.HTTP.Addr != "" {
		server = httpapi.New(cfg.HTTP.Addr, httpapi.Deps{
			Board:      board,
			Controller: sched,
			Tracker:    tracker,
			Logs:       ring,
			Gatherer:   registry,
			StateFile:  cfg.Filter.StateFile,
			Logger:     component(logger, "http"),
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("http server failed")
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer done()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("http shutdown")
			}
		}()
	}

	go reportStatus(ctx, sched, tracker, dash, component(logger, "stats"))

	if dash != nil {
		if err := dash.Run(ctx); err != nil {
			fanout.SetConsoleSink(stdout)
			return fmt.Errorf("dashboard: %w", err)
		}
		fanout.SetConsoleSink(stdout)
		cancel()
	} else {
		logger.Info().Msg("running; press Ctrl+C to stop")
		<-ctx.Done()
	}
	logger.Info().Msg("shutting down")
	return nil
}

func component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// Purpose: Load configuration from the flag, env or default location.
// Key aspects: A missing default file falls back to built-in defaults; a
// missing explicit file is an error.
// Upstream: run.
// Downstream: config.Load.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := strings.TrimSpace(flagPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envConfigPath))
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), "built-in defaults", nil
		}
		return nil, config.DefaultPath, err
	}
	return cfg, config.DefaultPath, nil
}

// Purpose: Open the configured geo cache backend.
// Key aspects: pebble uses the path as a directory; sqlite stores a single
// file inside it.
// Upstream: run.
// Downstream: geocache.OpenPebble, geocache.OpenSQLite.
func openGeoStore(cfg config.GeoCacheConfig) (geocache.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "geocache.db")
		}
		return geocache.OpenSQLite(path)
	default:
		return geocache.OpenPebble(cfg.Path, geocache.PebbleOptions{})
	}
}

func buildFeeds(cfg *config.Config, adapters *feeds.Registry) ([]scheduler.Feed, error) {
	var out []scheduler.Feed
	for _, spec := range cfg.EnabledFeeds() {
		adapter, err := adapters.Lookup(spec.Source)
		if err != nil {
			return nil, err
		}
		out = append(out, scheduler.Feed{Source: spec.Source, URL: spec.URL, Strict: spec.Strict, Adapter: adapter})
	}
	if len(out) == 0 {
		return nil, errors.New("no feeds enabled")
	}
	return out, nil
}

// Purpose: Choose the startup filter.
// Key aspects: A filter saved by a previous run wins over the configured one;
// an unreadable saved filter is logged and ignored.
// Upstream: run.
// Downstream: filter.Load, config.BuildFilter.
func initialFilter(cfg *config.Config, logger zerolog.Logger) (*filter.Filter, error) {
	if path := cfg.Filter.StateFile; path != "" {
		saved, err := filter.Load(path)
		switch {
		case err == nil:
			logger.Info().Str("path", path).Msg("restored saved filter")
			return saved, nil
		case !errors.Is(err, os.ErrNotExist):
			logger.Warn().Err(err).Str("path", path).Msg("ignoring saved filter")
		}
	}
	return cfg.BuildFilter()
}

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: run UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func useDashboard(mode string, tty bool) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "tview", "auto":
		return tty
	default:
		return false
	}
}

// Purpose: Periodically publish source health to the dashboard or the log.
// Key aspects: Runs until ctx ends, then logs the final ingest counts.
// Upstream: run.
// Downstream: statusLine, stats.Tracker.SnapshotLines, ui.Dashboard.SetStatus.
func reportStatus(ctx context.Context, sched *scheduler.Scheduler, tracker *stats.Tracker, dash *ui.Dashboard, logger zerolog.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, line := range tracker.SnapshotLines() {
				logger.Info().Msg(line)
			}
			return
		case <-ticker.C:
			line := statusLine(sched.Status(), tracker, time.Now().UTC())
			if dash != nil {
				dash.SetStatus(line)
			} else {
				logger.Debug().Msg(line)
			}
		}
	}
}

// statusLine renders one compact health line, sources in configuration order.
func statusLine(statuses []scheduler.SourceStatus, tracker *stats.Tracker, now time.Time) string {
	parts := make([]string, 0, len(statuses)+1)
	for _, st := range statuses {
		var b strings.Builder
		b.WriteString(string(st.Source))
		switch {
		case st.State == scheduler.StateRequesting:
			b.WriteString(" …")
		case st.LastError != "":
			b.WriteString(" ERR")
		case st.LastSuccess.IsZero():
			b.WriteString(" -")
		default:
			fmt.Fprintf(&b, " %d (%s)", st.LastCount, humanize.RelTime(st.LastSuccess, now, "ago", "from now"))
		}
		parts = append(parts, b.String())
	}
	if tracker != nil {
		parts = append(parts, "total "+humanize.Comma(int64(tracker.GetTotal())))
		if dropped := tracker.GetDroppedCounts(); len(dropped) > 0 {
			var sum uint64
			keys := make([]string, 0, len(dropped))
			for k, v := range dropped {
				if v == 0 {
					continue
				}
				sum += v
				keys = append(keys, k)
			}
			sort.Strings(keys)
			if sum > 0 {
				parts = append(parts, fmt.Sprintf("dropped %s (%s)", humanize.Comma(int64(sum)), strings.Join(keys, ",")))
			}
		}
		parts = append(parts, formatUptime(tracker.GetUptime()))
	}
	return strings.Join(parts, " | ")
}

func formatUptime(uptime time.Duration) string {
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60
	return fmt.Sprintf("up %02d:%02d", hours, minutes)
}

var _ aggregate.Display = (*ui.Dashboard)(nil)
