package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
	"github.com/roach88/pluma/internal/testutil"
)

func newTestCache(reg *testutil.CountingRegistry, storage Storage, logs *bytes.Buffer, opts ...Option) *Cache {
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	base := []Option{
		WithLogger(logger),
		WithClock(testutil.NewStepClock(testutil.Epoch, 0).Now),
	}
	return New(reg, storage, append(base, opts...)...)
}

func TestCacheHitDoesNotIntrospect(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	first, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Loads())
	assert.Equal(t, 1, storage.Writes)
	written := storage.Bytes()

	// A second process over the same storage.
	second, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Loads(), "cache hit must not call Load")
	assert.Equal(t, 1, storage.Writes, "cache hit must not write")
	assert.Equal(t, first, second)
	assert.Equal(t, written, storage.Bytes())
	assert.Empty(t, logs.String())
}

func TestCacheHitReencodesIdentically(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	_, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)

	entry, err := Decode(storage.Bytes())
	require.NoError(t, err)
	again, err := Encode(entry)
	require.NoError(t, err)
	assert.Equal(t, storage.Bytes(), again)
	assert.Equal(t, testutil.Plugins(), entry.Plugins)
}

func TestCacheVersionChangeRebuildsOnce(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	_, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)

	upgraded := testutil.DiversityPlugin()
	upgraded.Version = "2025.4.0"
	reg.Set(testutil.FeatureTablePlugin(), testutil.EmptyPlugin(), upgraded)

	c := newTestCache(reg, storage, &logs)
	for i := 0; i < 3; i++ {
		plugins, err := c.Plugins(context.Background())
		require.NoError(t, err)
		require.Len(t, plugins, 3)
	}
	assert.Equal(t, 2, reg.Loads(), "exactly one rebuild after the version change")
	assert.Equal(t, 2, storage.Writes)

	entry, err := Decode(storage.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "2025.4.0", entry.Plugins[2].Version)

	// The next process hits the rewritten cache.
	_, err = newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Loads())
}

func TestCacheToolVersionChangeIsMiss(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	_, err := newTestCache(reg, storage, &logs, WithTool("1.0.0")).Plugins(context.Background())
	require.NoError(t, err)
	_, err = newTestCache(reg, storage, &logs, WithTool("1.1.0")).Plugins(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Loads())
}

func TestCacheCorruptDataIsMiss(t *testing.T) {
	valid, err := Encode(&Entry{Magic: Magic, Format: ir.CacheFormat, Tool: ir.ToolVersion})
	require.NoError(t, err)
	wrongMagic, err := Encode(&Entry{Magic: "something-else", Format: ir.CacheFormat})
	require.NoError(t, err)
	wrongFormat, err := Encode(&Entry{Magic: Magic, Format: ir.CacheFormat + 1})
	require.NoError(t, err)

	tests := map[string][]byte{
		"garbage":      []byte("not cbor at all"),
		"truncated":    valid[:len(valid)/2],
		"wrong magic":  wrongMagic,
		"wrong format": wrongFormat,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			reg := testutil.NewCountingRegistry(testutil.Plugins()...)
			storage := &MemoryStorage{}
			storage.Set(data)
			var logs bytes.Buffer

			plugins, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
			require.NoError(t, err)
			assert.Len(t, plugins, 3)
			assert.Equal(t, 1, reg.Loads())
			assert.Equal(t, 1, storage.Writes)
			assert.Equal(t, 1, strings.Count(logs.String(), "level=WARN"), logs.String())
			assert.Contains(t, logs.String(), string(diag.CacheCorrupt))
		})
	}
}

func TestCacheWriteFailureIsNotFatal(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{FailWrites: true}
	var logs bytes.Buffer

	plugins, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)
	assert.Len(t, plugins, 3)
	assert.Contains(t, logs.String(), "registry cache not written")
}

func TestCacheRegistryUnavailable(t *testing.T) {
	var logs bytes.Buffer

	t.Run("identities", func(t *testing.T) {
		reg := testutil.NewCountingRegistry()
		reg.IdentitiesErr = errors.New("permission denied")
		_, err := newTestCache(reg, &MemoryStorage{}, &logs).Plugins(context.Background())
		assert.Equal(t, diag.RegistryUnavailable, diag.KindOf(err))
		assert.ErrorContains(t, err, "permission denied")
	})

	t.Run("load", func(t *testing.T) {
		reg := testutil.NewCountingRegistry(testutil.Plugins()...)
		reg.LoadErr = errors.New("plugin exploded")
		storage := &MemoryStorage{}
		_, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
		assert.Equal(t, diag.RegistryUnavailable, diag.KindOf(err))
		assert.Equal(t, 0, storage.Writes)
	})
}

func TestCacheDriftIsNotPersisted(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer
	c := newTestCache(reg, storage, &logs)

	fp, err := c.CurrentFingerprint(context.Background())
	require.NoError(t, err)

	drifted := func(context.Context) ([]plugin.Plugin, error) {
		p := testutil.DiversityPlugin()
		p.ContentHash = "changed-mid-load"
		return []plugin.Plugin{p}, nil
	}
	plugins, err := c.GetOrBuild(context.Background(), fp, drifted)
	require.NoError(t, err)
	assert.Len(t, plugins, 1)
	assert.Equal(t, 0, storage.Writes)
	assert.Contains(t, logs.String(), "plugins changed during introspection")
}

func TestCacheDriftMemoizesLoadedSet(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer
	c := newTestCache(reg, storage, &logs)

	fp, err := c.CurrentFingerprint(context.Background())
	require.NoError(t, err)

	loaded := testutil.DiversityPlugin()
	loaded.ContentHash = "changed-mid-load"
	builds := 0
	drifted := func(context.Context) ([]plugin.Plugin, error) {
		builds++
		return []plugin.Plugin{loaded}, nil
	}
	_, err = c.GetOrBuild(context.Background(), fp, drifted)
	require.NoError(t, err)

	// The requested fingerprint is not answered from the drifted set.
	plugins, err := c.GetOrBuild(context.Background(), fp, reg.Load)
	require.NoError(t, err)
	assert.Len(t, plugins, len(testutil.Plugins()))
	assert.Equal(t, 1, reg.Loads())

	// The loaded set's own fingerprint is.
	c = newTestCache(reg, &MemoryStorage{}, &logs)
	_, err = c.GetOrBuild(context.Background(), fp, drifted)
	require.NoError(t, err)
	builtFP, err := Fingerprint(c.tool, identities([]plugin.Plugin{loaded}))
	require.NoError(t, err)
	plugins, err = c.GetOrBuild(context.Background(), builtFP, drifted)
	require.NoError(t, err)
	assert.Equal(t, []plugin.Plugin{loaded}, plugins)
	assert.Equal(t, 2, builds)
}

func TestCacheRefresh(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	_, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)

	c := newTestCache(reg, storage, &logs)
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Loads())
	assert.Equal(t, 2, storage.Writes, "at most one write per cache")
}

func TestCacheForceRefreshOption(t *testing.T) {
	reg := testutil.NewCountingRegistry(testutil.Plugins()...)
	storage := &MemoryStorage{}
	var logs bytes.Buffer

	_, err := newTestCache(reg, storage, &logs).Plugins(context.Background())
	require.NoError(t, err)
	_, err = newTestCache(reg, storage, &logs, WithForceRefresh(true)).Plugins(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Loads())
}

func TestFingerprintOrderIndependent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "n")
		ids := make([]plugin.Identity, n)
		for i := range ids {
			ids[i] = plugin.Identity{
				Name:        rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "name"),
				Version:     rapid.StringMatching(`[0-9]\.[0-9]`).Draw(t, "version"),
				ContentHash: rapid.StringMatching(`[0-9a-f]{4}`).Draw(t, "hash"),
			}
		}
		shuffled := append([]plugin.Identity(nil), ids...)
		perm := rapid.Permutation(shuffled).Draw(t, "perm")

		a, err := Fingerprint("1.0.0", ids)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Fingerprint("1.0.0", perm)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Fatalf("fingerprint depends on order: %s != %s", a, b)
		}
	})
}

func TestFingerprintSensitivity(t *testing.T) {
	base := []plugin.Identity{{Name: "a", Version: "1", ContentHash: "x"}}
	fp, err := Fingerprint("1.0.0", base)
	require.NoError(t, err)

	variants := map[string]struct {
		tool string
		ids  []plugin.Identity
	}{
		"tool":    {"1.0.1", base},
		"version": {"1.0.0", []plugin.Identity{{Name: "a", Version: "2", ContentHash: "x"}}},
		"content": {"1.0.0", []plugin.Identity{{Name: "a", Version: "1", ContentHash: "y"}}},
		"added":   {"1.0.0", append(base, plugin.Identity{Name: "b", Version: "1"})},
		"removed": {"1.0.0", nil},
	}
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			other, err := Fingerprint(v.tool, v.ids)
			require.NoError(t, err)
			assert.NotEqual(t, fp, other)
		})
	}
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "registry.cbor")
	s := NewFileStorage(path)

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Store([]byte("one")))
	require.NoError(t, s.Store([]byte("two")))

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are renamed away")
}

func TestFileStorageFailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.cbor")
	s := NewFileStorage(path)
	require.NoError(t, s.Store([]byte("keep")))

	// A directory in the way of the rename target.
	blocked := NewFileStorage(filepath.Join(dir, "sub"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub", "child"), 0o755))
	assert.Error(t, blocked.Store([]byte("x")))

	data, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []byte("keep"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary file left behind")
}
