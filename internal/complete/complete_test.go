package complete

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pluma/internal/testutil"
	"github.com/roach88/pluma/internal/tree"
)

func fixtureTree(t *testing.T) *tree.Node {
	t.Helper()
	root, err := tree.Build(testutil.Plugins())
	require.NoError(t, err)
	return root
}

func TestCandidates_Root(t *testing.T) {
	root := fixtureTree(t)

	assert.Equal(t, []string{"dev", "diversity", "feature-table", "info"},
		Candidates(root, []string{""}, []string{"info", "dev"}))
	assert.Equal(t, []string{"dev", "diversity"},
		Candidates(root, []string{"d"}, []string{"info", "dev"}))
	assert.Equal(t, []string{"diversity", "feature-table"}, Candidates(root, nil, nil))
}

func TestCandidates_PluginGroupIsSortedActions(t *testing.T) {
	root := fixtureTree(t)

	assert.Equal(t, []string{"alpha", "beta", "core-metrics"}, Candidates(root, []string{"diversity", ""}, nil))
	assert.Equal(t, []string{"core-metrics"}, Candidates(root, []string{"diversity", "co"}, nil))
}

func TestCandidates_HidesDeprecated(t *testing.T) {
	root := fixtureTree(t)
	assert.Equal(t, []string{"merge", "summarize"}, Candidates(root, []string{"feature-table", ""}, nil))
}

func TestCandidates_UnknownPath(t *testing.T) {
	root := fixtureTree(t)
	assert.Empty(t, Candidates(root, []string{"nope", ""}, nil))
	assert.Empty(t, Candidates(root, []string{"diversity", "nope", ""}, nil))
}

func TestCandidates_LeafOptions(t *testing.T) {
	root := fixtureTree(t)

	got := Candidates(root, []string{"diversity", "alpha", "--"}, nil)
	assert.Equal(t, []string{
		"--i-table",
		"--p-metric",
		"--p-sampling-depth",
		"--p-drop-undefined", "--p-no-drop-undefined",
		"--m-group-column",
		"--o-alpha-diversity",
		"--output-dir", "--cmd-config", "--verbose", "--citations", "--help",
	}, got)

	assert.Equal(t, []string{"--p-metric"}, Candidates(root, []string{"diversity", "alpha", "--p-m"}, nil))
}

func TestCandidates_SuppliedOptionsDropOut(t *testing.T) {
	root := fixtureTree(t)

	got := Candidates(root, []string{"diversity", "alpha", "--i-table", "t.qza", "--p-no-drop-undefined", "--verbose", "--"}, nil)
	assert.NotContains(t, got, "--i-table")
	assert.NotContains(t, got, "--p-drop-undefined")
	assert.NotContains(t, got, "--p-no-drop-undefined")
	assert.NotContains(t, got, "--verbose")
	assert.Contains(t, got, "--p-metric")
}

func TestCandidates_CollectionsStayOffered(t *testing.T) {
	root := fixtureTree(t)

	got := Candidates(root, []string{"feature-table", "merge", "--i-tables", "a.qza", "--"}, nil)
	assert.Contains(t, got, "--i-tables")
	got = Candidates(root, []string{"diversity", "beta", "--p-metric", "jaccard", "--p-"}, nil)
	assert.NotContains(t, got, "--p-metric")
	assert.Contains(t, got, "--p-weights")
}

func TestCandidates_OptionValues(t *testing.T) {
	root := fixtureTree(t)

	assert.Equal(t, []string{"shannon", "simpson", "observed_features"},
		Candidates(root, []string{"diversity", "alpha", "--p-metric", ""}, nil))
	assert.Equal(t, []string{"simpson"},
		Candidates(root, []string{"diversity", "alpha", "--p-metric", "si"}, nil))
	assert.Equal(t, []string{"false"},
		Candidates(root, []string{"diversity", "alpha", "--p-drop-undefined", "f"}, nil))
}

func TestCandidates_AfterBoolFlag(t *testing.T) {
	root := fixtureTree(t)

	got := Candidates(root, []string{"diversity", "alpha", "--p-drop-undefined", "--"}, nil)
	assert.Contains(t, got, "--i-table")
	assert.Contains(t, got, "--verbose")
	assert.NotContains(t, got, "--p-drop-undefined")
	assert.NotContains(t, got, "true")

	assert.Equal(t, []string{"--i-table"},
		Candidates(root, []string{"diversity", "alpha", "--p-drop-undefined", "--i"}, nil))

	got = Candidates(root, []string{"diversity", "alpha", "--p-drop-undefined", ""}, nil)
	require.GreaterOrEqual(t, len(got), 3)
	assert.Equal(t, []string{"true", "false"}, got[:2])
	assert.Contains(t, got, "--p-metric")

	got = Candidates(root, []string{"diversity", "alpha", "--p-no-drop-undefined", ""}, nil)
	assert.NotContains(t, got, "true")
	assert.Contains(t, got, "--p-metric")
}

func TestCandidates_PathOptionsFallBackToFiles(t *testing.T) {
	root := fixtureTree(t)

	for _, prev := range []string{"--i-table", "--o-alpha-diversity", "--m-group-column", "--output-dir", "--cmd-config"} {
		assert.Empty(t, Candidates(root, []string{"diversity", "alpha", prev, ""}, nil), prev)
	}
}

func TestCandidates_FreeTextValue(t *testing.T) {
	root := fixtureTree(t)
	assert.Empty(t, Candidates(root, []string{"diversity", "alpha", "--p-sampling-depth", ""}, nil))
	assert.Empty(t, Candidates(root, []string{"diversity", "alpha", "--p-metric=s"}, nil))
}

func TestWriteScript_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, shell := range Shells {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteScript(&buf, shell, "pluma"))
			g.Assert(t, shell, buf.Bytes())
		})
	}
}

func TestWriteScript_FunctionName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScript(&buf, "bash", "my-pluma"))
	assert.Contains(t, buf.String(), "_my_pluma_completion()")
	assert.Contains(t, buf.String(), "complete -o default -F _my_pluma_completion my-pluma\n")
}

func TestWriteScript_UnknownShell(t *testing.T) {
	err := WriteScript(&bytes.Buffer{}, "fish", "pluma")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bash, zsh")
}
