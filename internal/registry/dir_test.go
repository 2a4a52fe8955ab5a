package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pluma/internal/testutil"
)

func TestDirLoad(t *testing.T) {
	root := t.TempDir()
	testutil.WritePlugin(t, root, "diversity", testutil.DiversityManifest, testutil.DiversityCUE)
	testutil.WritePlugin(t, root, "empty", "name: empty\nversion: 0.0.1\n", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-plugin"), 0o755))

	reg := NewDir(root)
	plugins, err := reg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, plugins, 2)
	assert.Equal(t, "diversity", plugins[0].Name)
	assert.Len(t, plugins[0].Actions, 2)
	assert.NotEmpty(t, plugins[0].ContentHash)
	assert.Equal(t, "empty", plugins[1].Name)
	assert.False(t, plugins[1].HasActions())
}

func TestDirIdentitiesMatchLoad(t *testing.T) {
	root := t.TempDir()
	testutil.WritePlugin(t, root, "diversity", testutil.DiversityManifest, testutil.DiversityCUE)

	reg := NewDir(root)
	ids, err := reg.Identities(context.Background())
	require.NoError(t, err)
	plugins, err := reg.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, ids, 1)
	assert.Equal(t, plugins[0].Identity(), ids[0])
}

func TestDirPathIsPluginItself(t *testing.T) {
	dir := testutil.WritePlugin(t, t.TempDir(), "diversity", testutil.DiversityManifest, "")

	ids, err := NewDir(dir).Identities(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "diversity", ids[0].Name)
}

func TestDirMissingPathIsEmpty(t *testing.T) {
	ids, err := NewDir(filepath.Join(t.TempDir(), "missing")).Identities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDirEarlierPathWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	testutil.WritePlugin(t, first, "diversity", "name: diversity\nversion: 1.0.0\n", "")
	testutil.WritePlugin(t, second, "diversity", "name: diversity\nversion: 2.0.0\n", "")

	ids, err := NewDir(first, second).Identities(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "1.0.0", ids[0].Version)
}

func TestDirLoadFailsOnBrokenPlugin(t *testing.T) {
	root := t.TempDir()
	testutil.WritePlugin(t, root, "broken", "name: broken\nversion: 1\n", "package broken\n\naction: a: {}\n")

	_, err := NewDir(root).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin broken")
}

func TestDirHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDir(t.TempDir()).Identities(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatic(t *testing.T) {
	reg := Static(testutil.Plugins())

	ids, err := reg.Identities(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	plugins, err := reg.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.Plugins(), plugins)
}
