package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spothunter/config"
	"spothunter/feeds"
	"spothunter/filter"
	"spothunter/scheduler"
	"spothunter/spot"
	"spothunter/stats"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(envConfigPath, "")

	cfg, source, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "built-in defaults", source)
	assert.Equal(t, 30*time.Second, cfg.Poll.Interval)
}

func TestLoadConfigExplicitMissingFileFails(t *testing.T) {
	_, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spothunter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  interval: 45s\n"), 0o644))
	t.Setenv(envConfigPath, path)

	cfg, source, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, path, source)
	assert.Equal(t, 45*time.Second, cfg.Poll.Interval)
}

func TestUseDashboard(t *testing.T) {
	assert.True(t, useDashboard("auto", true))
	assert.False(t, useDashboard("auto", false))
	assert.True(t, useDashboard("TVIEW", true))
	assert.False(t, useDashboard("tview", false))
	assert.False(t, useDashboard("headless", true))
}

func TestOpenGeoStoreBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"pebble", "sqlite"} {
		store, err := openGeoStore(config.GeoCacheConfig{Backend: backend, Path: filepath.Join(dir, backend)})
		require.NoError(t, err, backend)
		n, err := store.Count()
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, store.Close())
	}
	_, err := os.Stat(filepath.Join(dir, "sqlite", "geocache.db"))
	assert.NoError(t, err)
}

func TestBuildFeedsHonoursEnabledFlag(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Feeds = map[string]config.FeedConfig{
		"dxheat": {Enabled: &off},
		"pota":   {URL: "http://example.invalid/pota", Strict: true},
	}
	list, err := buildFeeds(cfg, feeds.NewRegistry(nil))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, spot.SourcePOTA, list[0].Source)
	assert.Equal(t, "http://example.invalid/pota", list[0].URL)
	assert.True(t, list[0].Strict)
	for _, f := range list {
		assert.NotEqual(t, spot.SourceDXHeat, f.Source)
		assert.NotNil(t, f.Adapter)
	}
}

func TestInitialFilterPrefersSavedState(t *testing.T) {
	cfg := config.Default()
	cfg.Filter.StateFile = filepath.Join(t.TempDir(), "filter.yaml")

	f, err := initialFilter(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"20m", "15m"}, f.State().Bands)

	saved, err := filter.New([]string{"40m"}, []string{"CW"})
	require.NoError(t, err)
	require.NoError(t, filter.Save(cfg.Filter.StateFile, saved))

	f, err = initialFilter(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"40m"}, f.State().Bands)
	assert.Equal(t, []string{"CW"}, f.State().Modes)
}

func TestStatusLine(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	tracker := stats.NewTracker()
	tracker.AddSource("POTA", 1200)
	tracker.AddDropped("SOTA", 2)

	line := statusLine([]scheduler.SourceStatus{
		{Source: spot.SourcePOTA, State: scheduler.StateIdle, LastCount: 12, LastSuccess: now.Add(-30 * time.Second)},
		{Source: spot.SourceSOTA, State: scheduler.StateIdle, LastError: "boom"},
		{Source: spot.SourceDXSummit, State: scheduler.StateRequesting},
		{Source: spot.SourceDXHeat, State: scheduler.StateIdle},
	}, tracker, now)

	parts := strings.Split(line, " | ")
	require.Len(t, parts, 7, line)
	assert.Equal(t, "POTA 12 (30 seconds ago)", parts[0])
	assert.Equal(t, "SOTA ERR", parts[1])
	assert.Equal(t, "DXSummit …", parts[2])
	assert.Equal(t, "DXHeat -", parts[3])
	assert.Equal(t, "total 1,200", parts[4])
	assert.Equal(t, "dropped 2 (SOTA)", parts[5])
	assert.Equal(t, "up 00:00", parts[6])
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "up 00:00", formatUptime(59*time.Second))
	assert.Equal(t, "up 01:05", formatUptime(time.Hour+5*time.Minute+30*time.Second))
	assert.Equal(t, "up 26:00", formatUptime(26*time.Hour))
}
