package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/testutil"
)

type seqIDs struct{ n int }

func (g *seqIDs) Generate() string {
	g.n++
	return fmt.Sprintf("id-%03d", g.n)
}

func alphaInvocation(started time.Time) Invocation {
	return Invocation{
		Plugin:        "diversity",
		PluginVersion: "2024.10.0",
		Action:        "alpha",
		Params: ir.IRObject{
			"table":          ir.IRArtifact{Path: "table.qza"},
			"metric":         ir.IRString("shannon"),
			"drop_undefined": ir.IRBool(true),
		},
		Outputs:    map[string]string{"alpha_diversity": "out/alpha_diversity.qza"},
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), nil)

	inv := alphaInvocation(testutil.Epoch)
	id, err := j.Record(ctx, inv)
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, id, e.ID)
	assert.Equal(t, "diversity", e.Plugin)
	assert.Equal(t, "2024.10.0", e.PluginVersion)
	assert.Equal(t, "alpha", e.Action)
	assert.Equal(t, 0, e.ExitCode)
	assert.Empty(t, e.Error)
	assert.Equal(t, `{"drop_undefined":true,"metric":"shannon","table":{"path":"table.qza"}}`, string(e.Params))
	assert.Equal(t, `{"alpha_diversity":"out/alpha_diversity.qza"}`, string(e.Outputs))
	assert.True(t, testutil.Epoch.Equal(e.StartedAt))
	assert.True(t, testutil.Epoch.Add(2*time.Second).Equal(e.FinishedAt))
	assert.Equal(t, ir.MustInvocationID("diversity", "alpha", inv.Params, inv.Outputs), e.ContentID)
}

func TestJournal_ContentIDStableAcrossRuns(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), &seqIDs{})

	_, err := j.Record(ctx, alphaInvocation(testutil.Epoch))
	require.NoError(t, err)
	_, err = j.Record(ctx, alphaInvocation(testutil.Epoch.Add(time.Minute)))
	require.NoError(t, err)

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, entries[0].ContentID, entries[1].ContentID)
}

func TestJournal_RecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), &seqIDs{})

	for i := 0; i < 5; i++ {
		_, err := j.Record(ctx, alphaInvocation(testutil.Epoch.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	// Same start time as the newest: id breaks the tie.
	_, err := j.Record(ctx, alphaInvocation(testutil.Epoch.Add(4*time.Minute)))
	require.NoError(t, err)

	entries, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "id-006", entries[0].ID)
	assert.Equal(t, "id-005", entries[1].ID)
	assert.Equal(t, "id-004", entries[2].ID)
}

func TestJournal_Failure(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), nil)

	inv := alphaInvocation(testutil.Epoch)
	inv.ExitCode = 3
	inv.Error = "plugin crashed"
	_, err := j.Record(ctx, inv)
	require.NoError(t, err)

	entries, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].ExitCode)
	assert.Equal(t, "plugin crashed", entries[0].Error)
}

func TestJournal_EmptyAndNilParams(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), nil)

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = j.Record(ctx, Invocation{Plugin: "p", Action: "a", StartedAt: testutil.Epoch, FinishedAt: testutil.Epoch})
	require.NoError(t, err)

	entries, err = j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "{}", string(entries[0].Params))
	assert.Equal(t, "{}", string(entries[0].Outputs))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestJournal_RejectsNonCanonicalParams(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(openTestStore(t), nil)

	inv := alphaInvocation(testutil.Epoch)
	inv.Params["bad"] = nil
	_, err := j.Record(ctx, inv)
	require.Error(t, err)

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
