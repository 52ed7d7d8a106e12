package prefs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimbalkit/gimbal/prefs"
)

func TestDefault(t *testing.T) {
	cfg := prefs.Default()
	assert.Equal(t, 0.005, cfg.Translate.Sensitivity)
	assert.Equal(t, 0.5, cfg.Rotate.Sensitivity)
	assert.Equal(t, [3]bool{true, true, true}, cfg.ViewAxes)
	assert.Equal(t, [3]bool{}, cfg.Translate.Invert)
	assert.Equal(t, [3]bool{}, cfg.Rotate.Flip)
}

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "prefs.toml")

	cfg, err := prefs.Load(path)
	require.NoError(t, err)
	assert.Equal(t, prefs.Default(), cfg)

	// The file now exists and parses back to the same defaults.
	_, err = os.Stat(path)
	assert.NoError(t, err)
	again, err := prefs.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")

	want := prefs.Config{
		Translate: prefs.AxisConfig{
			Sensitivity: 1.25,
			Invert:      [3]bool{true, false, true},
			Flip:        [3]bool{false, true, false},
		},
		Rotate: prefs.AxisConfig{
			Sensitivity: 0.75,
			Invert:      [3]bool{false, true, false},
			Flip:        [3]bool{true, false, true},
		},
		ViewAxes: [3]bool{true, false, true},
	}
	require.NoError(t, prefs.Save(path, want))

	got, err := prefs.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o644))

	cfg, err := prefs.Load(path)
	assert.Error(t, err)
	assert.Equal(t, prefs.Default(), cfg)
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.toml")
	require.NoError(t, prefs.Save(path, prefs.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []prefs.Config
	err := prefs.Watch(ctx, path, nil, func(cfg prefs.Config) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cfg)
	})
	require.NoError(t, err)

	updated := prefs.Default()
	updated.Rotate.Sensitivity = 2
	require.NoError(t, prefs.Save(path, updated))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Rotate.Sensitivity == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.toml")
	require.NoError(t, prefs.Save(path, prefs.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	err := prefs.Watch(ctx, path, nil, func(prefs.Config) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1"), 0o644))
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}
