package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pluma/internal/diag"
	"github.com/roach88/pluma/internal/executor"
	"github.com/roach88/pluma/internal/handler"
	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
	"github.com/roach88/pluma/internal/store"
	"github.com/roach88/pluma/internal/testutil"
	"github.com/roach88/pluma/internal/tree"
)

type fakeJournal struct {
	records []store.Invocation
	err     error
}

func (j *fakeJournal) Record(_ context.Context, inv store.Invocation) (string, error) {
	j.records = append(j.records, inv)
	return "id", j.err
}

type fixture struct {
	root    *tree.Node
	exec    *testutil.RecordingExecutor
	journal *fakeJournal
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	d       *Dispatcher
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root, err := tree.Build(testutil.Plugins())
	require.NoError(t, err)

	f := &fixture{
		root:    root,
		exec:    &testutil.RecordingExecutor{},
		journal: &fakeJournal{},
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		dir:     t.TempDir(),
	}
	clock := testutil.NewStepClock(testutil.Epoch, 0)
	f.d = &Dispatcher{
		Executor: f.exec,
		Stdout:   f.stdout,
		Stderr:   f.stderr,
		Layout:   handler.DefaultLayout,
		Journal:  f.journal,
		Now:      clock.Now,
	}
	return f
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

// run resolves argv like the CLI does and dispatches the leaf.
func (f *fixture) run(t *testing.T, argv ...string) error {
	t.Helper()
	leaf, rest, err := Resolve(f.root, argv)
	require.NoError(t, err)
	require.Equal(t, tree.Leaf, leaf.Kind, "argv %v does not reach an action", argv)
	return f.d.Dispatch(context.Background(), leaf, rest)
}

func problems(t *testing.T, err error) diag.List {
	t.Helper()
	var reported *ReportedError
	require.ErrorAs(t, err, &reported)
	assert.Equal(t, 1, reported.Code)
	var list diag.List
	require.ErrorAs(t, err, &list)
	return list
}

func TestDispatch_MissingRequiredInput(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--o-alpha-diversity", f.path("alpha.qza"))

	list := problems(t, err)
	require.Len(t, list, 1)
	assert.True(t, list.Has(diag.MissingRequiredParameter))
	assert.Equal(t, 0, f.exec.Calls())
	assert.Empty(t, f.journal.records)
	assert.Contains(t, f.stderr.String(), "There was a problem with the command:")
	assert.Contains(t, f.stderr.String(), " (1/1) Missing option: --i-table")
	assert.Contains(t, f.stderr.String(), "Usage: pluma diversity alpha [OPTIONS]")
	assert.Empty(t, f.stdout.String())
}

func TestDispatch_AllProblemsReportedTogether(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha",
		"--p-metric", "chao1",
		"--p-drop-undefined", "--p-no-drop-undefined",
		"--p-bogus", "1")

	list := problems(t, err)
	assert.True(t, list.Has(diag.UnknownOption))
	assert.True(t, list.Has(diag.InvalidValue))
	assert.True(t, list.Has(diag.ConflictingFlags))
	assert.True(t, list.Has(diag.MissingRequiredParameter))
	assert.Equal(t, 0, f.exec.Calls())

	out := f.stderr.String()
	assert.Contains(t, out, "There were some problems with the command:")
	assert.Contains(t, out, "--p-drop-undefined and --p-no-drop-undefined cannot be used together")
	assert.Contains(t, out, `Invalid value for --p-metric: "chao1"`)
	assert.Contains(t, out, "Missing option: --o-alpha-diversity (--output-dir may also be used)")
	assert.Contains(t, out, fmt.Sprintf(" (%d/%d) ", len(list), len(list)))
}

func TestDispatch_OutputDirRoutesToExactPaths(t *testing.T) {
	f := newFixture(t)
	out := f.path("out")

	err := f.run(t, "diversity", "core-metrics",
		"--i-table", "table.qza",
		"--p-sampling-depth", "1000",
		"--m-metadata", "samples.tsv",
		"--output-dir", out)
	require.NoError(t, err)

	require.Equal(t, 1, f.exec.Calls())
	req := f.exec.Requests()[0]
	assert.Equal(t, map[string]string{
		"rarefied_table": filepath.Join(out, "rarefied_table.qza"),
		"visualization":  filepath.Join(out, "visualization.qzv"),
	}, req.Outputs)
	assert.DirExists(t, out)

	assert.Equal(t,
		"Saved FeatureTable[Frequency] to: "+filepath.Join(out, "rarefied_table.qza")+"\n"+
			"Saved Visualization to: "+filepath.Join(out, "visualization.qzv")+"\n",
		f.stdout.String())
}

func TestDispatch_Request(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha",
		"--i-table", "table.qza",
		"--p-metric", "simpson",
		"--p-no-drop-undefined",
		"--o-alpha-diversity", f.path("alpha"),
		"--verbose")
	require.NoError(t, err)

	req := f.exec.Requests()[0]
	assert.Equal(t, "diversity", req.Plugin)
	assert.Equal(t, "2024.10.0", req.Version)
	assert.Equal(t, "alpha", req.Action)
	assert.Equal(t, "/opt/plugins/diversity/run", req.Executable)
	assert.True(t, req.Verbose)
	assert.True(t, ir.Equal(ir.IRObject{
		"table":          ir.IRArtifact{Path: "table.qza"},
		"metric":         ir.IRString("simpson"),
		"drop_undefined": ir.IRBool(false),
	}, req.Params), "params: %v", req.Params)
	// Extension appended to the explicit path.
	assert.Equal(t, map[string]string{"alpha_diversity": f.path("alpha.qza")}, req.Outputs)
}

func TestDispatch_VerboseShorthand(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha",
		"--i-table", "table.qza",
		"--o-alpha-diversity", f.path("alpha.qza"),
		"-v")
	require.NoError(t, err, f.stderr.String())

	require.Equal(t, 1, f.exec.Calls())
	assert.True(t, f.exec.Requests()[0].Verbose)
}

func TestDispatch_DefaultsAndNone(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "beta",
		"--i-table", "table.qza",
		"--p-metric", "jaccard",
		"--p-ids", "none",
		"--p-weights", "0.5", "1", "0.5",
		"--o-distance-matrix", f.path("dm.qza"))
	require.NoError(t, err)

	params := f.exec.Requests()[0].Params
	assert.True(t, ir.Equal(ir.IRObject{
		"table":       ir.IRArtifact{Path: "table.qza"},
		"metric":      ir.IRString("jaccard"),
		"pseudocount": ir.IRInt(1),
		"n_jobs":      ir.IRString("auto"),
		"ids":         ir.IRNull{},
		"weights":     ir.IRArray{ir.IRFloat(0.5), ir.IRFloat(1), ir.IRFloat(0.5)},
	}, params), "params: %v", params)
}

func TestDispatch_OmittedOptionalLeftOut(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--i-table", "t.qza", "--o-alpha-diversity", f.path("a.qza"))
	require.NoError(t, err)

	params := f.exec.Requests()[0].Params
	assert.NotContains(t, params, "sampling_depth")
	assert.NotContains(t, params, "group_column")
	assert.Equal(t, ir.IRString("shannon"), params["metric"])
	assert.Equal(t, ir.IRBool(true), params["drop_undefined"])
}

func TestDispatch_BoolLiteralAndInlineValue(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha",
		"--i-table=t.qza",
		"--p-drop-undefined", "false",
		"--o-alpha-diversity="+f.path("a.qza"))
	require.NoError(t, err)

	params := f.exec.Requests()[0].Params
	assert.Equal(t, ir.IRBool(false), params["drop_undefined"])
	assert.Equal(t, ir.IRArtifact{Path: "t.qza"}, params["table"])
}

func TestDispatch_GreedyCollectionAndRepeats(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "feature-table", "merge",
		"--i-tables", "a.qza", "b.qza",
		"--i-tables", "a.qza",
		"--o-merged-table", f.path("m.qza"))
	require.NoError(t, err)

	assert.Equal(t, ir.IRArray{
		ir.IRArtifact{Path: "a.qza"},
		ir.IRArtifact{Path: "b.qza"},
		ir.IRArtifact{Path: "a.qza"},
	}, f.exec.Requests()[0].Params["tables"])
}

func TestDispatch_ExistingOutputRefused(t *testing.T) {
	f := newFixture(t)
	existing := f.path("alpha.qza")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	err := f.run(t, "diversity", "alpha", "--i-table", "t.qza", "--o-alpha-diversity", existing)

	list := problems(t, err)
	assert.True(t, list.Has(diag.OutputPathExists))
	assert.Equal(t, 0, f.exec.Calls())
	data, _ := os.ReadFile(existing)
	assert.Equal(t, "x", string(data))
}

func TestDispatch_RejectedCommandCreatesNothing(t *testing.T) {
	f := newFixture(t)
	out := f.path("out")

	err := f.run(t, "diversity", "core-metrics", "--p-sampling-depth", "10", "--m-metadata", "m.tsv", "--output-dir", out)

	list := problems(t, err)
	assert.True(t, list.Has(diag.MissingRequiredParameter))
	assert.NoDirExists(t, out)
}

func TestDispatch_OutputPathCollision(t *testing.T) {
	f := newFixture(t)
	artifact := plugin.Type{Kind: plugin.KindArtifact, Name: "FeatureData[Sequence]"}
	root, err := tree.Build([]plugin.Plugin{{
		Name:    "pair",
		Version: "1.0.0",
		Actions: []plugin.Action{{
			ID:   "split",
			Name: "Split",
			Kind: plugin.KindMethod,
			Outputs: []plugin.Output{
				{Name: "left", Type: artifact, Extension: ".qza"},
				{Name: "right", Type: artifact, Extension: ".qza"},
			},
		}},
	}})
	require.NoError(t, err)

	same := f.path("same.qza")
	err = f.d.Dispatch(context.Background(), root.Child("pair").Child("split"),
		[]string{"--o-left", same, "--o-right", f.path("same")})

	list := problems(t, err)
	require.Len(t, list, 1)
	assert.True(t, list.Has(diag.ConflictingFlags))
	assert.EqualError(t, list[0], "--o-left and --o-right both write to "+same)
	assert.Equal(t, 0, f.exec.Calls())
}

func TestDispatch_UnknownOptionSuggests(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--p-metrc", "shannon", "--i-table", "t.qza", "--output-dir", f.path("o"))

	list := problems(t, err)
	require.Len(t, list, 1)
	var de *diag.Error
	require.ErrorAs(t, list[0], &de)
	assert.Equal(t, diag.UnknownOption, de.Kind)
	assert.Equal(t, "--p-metrc", de.Option)
	assert.Equal(t, []string{"--p-metric"}, de.Suggestions)
}

func TestDispatch_ExtraArgument(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--p-drop-undefined", "maybe", "--i-table", "t.qza", "--output-dir", f.path("o"))

	list := problems(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Error(), "unexpected extra argument (maybe)")
}

func TestDispatch_RepeatedScalar(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "beta",
		"--i-table", "t.qza", "--p-metric", "jaccard", "--p-metric", "braycurtis",
		"--output-dir", f.path("o"))

	list := problems(t, err)
	require.Len(t, list, 1)
	assert.EqualError(t, list[0], "--p-metric was specified multiple times")
}

func TestDispatch_CmdConfigFallback(t *testing.T) {
	f := newFixture(t)
	cfg := f.path("cmd.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
diversity.alpha:
  p-metric: observed_features
  i-table: configured.qza
diversity.beta:
  p-metric: jaccard
`), 0o644))

	err := f.run(t, "diversity", "alpha", "--cmd-config", cfg, "--output-dir", f.path("o"))
	require.NoError(t, err)

	params := f.exec.Requests()[0].Params
	assert.Equal(t, ir.IRString("observed_features"), params["metric"])
	assert.Equal(t, ir.IRArtifact{Path: "configured.qza"}, params["table"])

	// The command line wins over the file.
	err = f.run(t, "diversity", "alpha", "--cmd-config", cfg, "--p-metric", "simpson", "--output-dir", f.path("o2"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("simpson"), f.exec.Requests()[1].Params["metric"])
}

func TestDispatch_CmdConfigUnreadable(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--cmd-config", f.path("missing.yaml"), "--i-table", "t.qza", "--output-dir", f.path("o"))

	list := problems(t, err)
	assert.True(t, list.Has(diag.InvalidValue))
	assert.Equal(t, 0, f.exec.Calls())
}

func TestDispatch_ExecutorFailurePassesCodeThrough(t *testing.T) {
	f := newFixture(t)
	f.exec.Err = &executor.Error{Code: 7, Message: "rarefaction depth exceeds sample size"}

	err := f.run(t, "diversity", "alpha", "--i-table", "t.qza", "--output-dir", f.path("o"))

	var reported *ReportedError
	require.ErrorAs(t, err, &reported)
	assert.Equal(t, 7, reported.Code)
	assert.Equal(t, diag.ExecutorFailure, diag.KindOf(err))
	var execErr *executor.Error
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, f.stderr.String(), "rarefaction depth exceeds sample size")
	assert.Empty(t, f.stdout.String())

	require.Len(t, f.journal.records, 1)
	assert.Equal(t, 7, f.journal.records[0].ExitCode)
	assert.Equal(t, "rarefaction depth exceeds sample size", f.journal.records[0].Error)
}

func TestDispatch_Journal(t *testing.T) {
	f := newFixture(t)

	err := f.run(t, "diversity", "alpha", "--i-table", "t.qza", "--output-dir", f.path("o"))
	require.NoError(t, err)

	require.Len(t, f.journal.records, 1)
	inv := f.journal.records[0]
	assert.Equal(t, "diversity", inv.Plugin)
	assert.Equal(t, "2024.10.0", inv.PluginVersion)
	assert.Equal(t, "alpha", inv.Action)
	assert.Equal(t, 0, inv.ExitCode)
	assert.Equal(t, testutil.Epoch, inv.StartedAt)
	assert.Equal(t, map[string]string{"alpha_diversity": filepath.Join(f.path("o"), "alpha_diversity.qza")}, inv.Outputs)
}

func TestDispatch_JournalFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.journal.err = errors.New("disk full")

	err := f.run(t, "diversity", "alpha", "--i-table", "t.qza", "--output-dir", f.path("o"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.exec.Calls())
}

func TestDispatch_HelpAndCitations(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.run(t, "diversity", "alpha", "--help", "--p-bogus"))
	assert.True(t, strings.HasPrefix(f.stdout.String(), "Usage: pluma diversity alpha [OPTIONS]\n"))
	assert.Equal(t, 0, f.exec.Calls())

	f.stdout.Reset()
	require.NoError(t, f.run(t, "diversity", "alpha", "--citations"))
	assert.Equal(t, "Doe J. Diversity metrics for everyone. 2024.\n", f.stdout.String())

	f.stdout.Reset()
	require.NoError(t, f.run(t, "feature-table", "merge", "-h"))
	assert.Contains(t, f.stdout.String(), "Inputs:")
}

func TestDispatch_NotALeaf(t *testing.T) {
	f := newFixture(t)
	err := f.d.Dispatch(context.Background(), f.root.Child("diversity"), nil)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	root, err := tree.Build(testutil.Plugins())
	require.NoError(t, err)

	node, rest, err := Resolve(root, []string{"diversity", "alpha", "--p-metric", "x"})
	require.NoError(t, err)
	assert.Equal(t, "pluma diversity alpha", node.Path())
	assert.Equal(t, []string{"--p-metric", "x"}, rest)

	node, rest, err = Resolve(root, []string{"diversity", "--help"})
	require.NoError(t, err)
	assert.Equal(t, "pluma diversity", node.Path())
	assert.Equal(t, []string{"--help"}, rest)

	node, rest, err = Resolve(root, nil)
	require.NoError(t, err)
	assert.Same(t, root, node)
	assert.Empty(t, rest)

	node, rest, err = Resolve(root, []string{"diversity", "alhpa"})
	require.Error(t, err)
	assert.Equal(t, "pluma diversity", node.Path())
	assert.Equal(t, []string{"alhpa"}, rest)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, diag.UnknownCommand, de.Kind)
	assert.Equal(t, []string{"alpha"}, de.Suggestions)
}
