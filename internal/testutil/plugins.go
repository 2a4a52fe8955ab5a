package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/pluma/internal/plugin"
)

func artifact(name string) plugin.Type {
	return plugin.Type{Kind: plugin.KindArtifact, Name: name}
}

func ptr(f float64) *float64 { return &f }

func intAtLeast(min float64) plugin.Type {
	return plugin.Type{Kind: plugin.KindPrimitive, Name: plugin.Int,
		Predicate: &plugin.Predicate{Range: &plugin.Range{Min: ptr(min), MinInclusive: true}}}
}

func choices(values ...string) plugin.Type {
	return plugin.Type{Kind: plugin.KindPrimitive, Name: plugin.Str,
		Predicate: &plugin.Predicate{Choices: values}}
}

func collection(name string, elem plugin.Type) plugin.Type {
	return plugin.Type{Kind: plugin.KindCollection, Name: name, Element: &elem}
}

// DiversityPlugin returns a descriptor with a method, a pipeline with two
// outputs of different kinds, and a parameter of every handler variant.
func DiversityPlugin() plugin.Plugin {
	table := plugin.Param{Name: "table", Type: artifact("FeatureTable[Frequency]"), Description: "The feature table containing the samples."}

	return plugin.Plugin{
		Name:             "diversity",
		Version:          "2024.10.0",
		Website:          "https://example.org/diversity",
		Citation:         "Doe J. Diversity metrics for everyone. 2024.",
		UserSupport:      "Ask on the forum.",
		ShortDescription: "Plugin for exploring community diversity.",
		Description:      "This plugin computes alpha and beta diversity metrics.",
		Executable:       "/opt/plugins/diversity/run",
		ContentHash:      "content-diversity-1",
		Actions: []plugin.Action{
			{
				ID:          "core_metrics",
				Name:        "Core diversity metrics",
				Description: "Applies a collection of diversity metrics to a feature table.",
				Kind:        plugin.KindPipeline,
				Inputs:      []plugin.Param{table},
				Parameters: []plugin.Param{
					{Name: "sampling_depth", Type: intAtLeast(1), Description: "The total frequency each sample should be rarefied to."},
					{Name: "metadata", Type: plugin.Type{Kind: plugin.KindMetadata}, Description: "The sample metadata."},
				},
				Outputs: []plugin.Output{
					{Name: "rarefied_table", Type: artifact("FeatureTable[Frequency]"), Extension: ".qza"},
					{Name: "visualization", Type: plugin.Type{Kind: plugin.KindVisualization}, Extension: ".qzv"},
				},
			},
			{
				ID:          "alpha",
				Name:        "Alpha diversity",
				Description: "Computes a user-specified alpha diversity metric for all samples in a feature table.",
				Kind:        plugin.KindMethod,
				Inputs:      []plugin.Param{table},
				Parameters: []plugin.Param{
					{Name: "metric", Type: choices("shannon", "simpson", "observed_features"), Default: plugin.StringLit("shannon"),
						Description: "The alpha diversity metric to be computed."},
					{Name: "sampling_depth", Type: plugin.Optional(intAtLeast(1)), Default: plugin.None()},
					{Name: "drop_undefined", Type: plugin.Primitive(plugin.Bool), Default: plugin.BoolLit(true),
						Description: "Drop samples whose metric is undefined."},
					{Name: "group_column", Type: plugin.Optional(plugin.Type{Kind: plugin.KindMetadataColumn, Name: "MetadataColumn[Categorical]"}),
						Default: plugin.None(), Description: "Column to group samples by."},
				},
				Outputs: []plugin.Output{
					{Name: "alpha_diversity", Type: artifact("SampleData[AlphaDiversity]"), Extension: ".qza"},
				},
			},
			{
				ID:   "beta",
				Name: "Beta diversity",
				Kind: plugin.KindMethod,
				Inputs: []plugin.Param{
					table,
				},
				Parameters: []plugin.Param{
					{Name: "metric", Type: choices("braycurtis", "jaccard")},
					{Name: "pseudocount", Type: plugin.Primitive(plugin.Int), Default: plugin.IntLit(1)},
					{Name: "n_jobs", Type: plugin.Type{Kind: plugin.KindUnion,
						Members: []plugin.Type{plugin.Primitive(plugin.Int), plugin.Primitive(plugin.Str)}}, Default: plugin.StringLit("auto")},
					{Name: "ids", Type: plugin.Optional(collection(plugin.Set, plugin.Primitive(plugin.Str))), Default: plugin.None()},
					{Name: "weights", Type: collection(plugin.List, plugin.Primitive(plugin.Float)), Default: plugin.ListLit()},
				},
				Outputs: []plugin.Output{
					{Name: "distance_matrix", Type: artifact("DistanceMatrix"), Extension: ".qza"},
				},
			},
		},
	}
}

// FeatureTablePlugin returns a second plugin whose name needs no CLI
// translation and whose actions take collections of artifacts.
func FeatureTablePlugin() plugin.Plugin {
	return plugin.Plugin{
		Name:        "feature-table",
		Version:     "2024.10.1",
		Citation:    "Roe R. Tables. 2023.",
		ContentHash: "content-feature-table-1",
		Actions: []plugin.Action{
			{
				ID:     "summarize",
				Name:   "Summarize table",
				Kind:   plugin.KindVisualizer,
				Inputs: []plugin.Param{{Name: "table", Type: artifact("FeatureTable[Frequency]")}},
				Parameters: []plugin.Param{
					{Name: "sample_metadata", Type: plugin.Optional(plugin.Type{Kind: plugin.KindMetadata}), Default: plugin.None()},
				},
				Outputs: []plugin.Output{
					{Name: "visualization", Type: plugin.Type{Kind: plugin.KindVisualization}, Extension: ".qzv"},
				},
			},
			{
				ID:     "merge",
				Name:   "Combine multiple tables",
				Kind:   plugin.KindMethod,
				Inputs: []plugin.Param{{Name: "tables", Type: collection(plugin.List, artifact("FeatureTable[Frequency]"))}},
				Parameters: []plugin.Param{
					{Name: "overlap_method", Type: choices("error_on_overlapping_sample", "sum"), Default: plugin.StringLit("error_on_overlapping_sample")},
				},
				Outputs: []plugin.Output{
					{Name: "merged_table", Type: artifact("FeatureTable[Frequency]"), Extension: ".qza"},
				},
			},
			{
				ID:         "filter_samples",
				Name:       "Filter samples",
				Kind:       plugin.KindMethod,
				Deprecated: true,
				Inputs:     []plugin.Param{{Name: "table", Type: artifact("FeatureTable[Frequency]")}},
				Parameters: []plugin.Param{{Name: "min_frequency", Type: plugin.Primitive(plugin.Int), Default: plugin.IntLit(0)}},
				Outputs:    []plugin.Output{{Name: "filtered_table", Type: artifact("FeatureTable[Frequency]"), Extension: ".qza"}},
			},
		},
	}
}

// EmptyPlugin returns a plugin with no actions.
func EmptyPlugin() plugin.Plugin {
	return plugin.Plugin{Name: "empty", Version: "0.0.1", ContentHash: "content-empty"}
}

// Plugins returns the standard fixture set, deliberately unsorted.
func Plugins() []plugin.Plugin {
	return []plugin.Plugin{FeatureTablePlugin(), EmptyPlugin(), DiversityPlugin()}
}

// DiversityManifest is a plugin.yaml for an on-disk diversity plugin.
const DiversityManifest = `name: diversity
version: 2024.10.0
website: https://example.org/diversity
citation: Doe J. Diversity metrics for everyone. 2024.
short_description: Plugin for exploring community diversity.
executable: bin/run
`

// DiversityCUE declares the alpha and core_metrics actions in CUE.
const DiversityCUE = `package diversity

action: alpha: {
	name:        "Alpha diversity"
	description: "Computes a user-specified alpha diversity metric."
	inputs: table: {
		type:        "FeatureTable[Frequency]"
		description: "The feature table containing the samples."
	}
	parameters: {
		metric: {
			type:    "Str"
			choices: ["shannon", "simpson", "observed_features"]
			default: "shannon"
		}
		sampling_depth: {
			type:    "Int"
			range: {min: 1}
			default: null
		}
		drop_undefined: {
			type:    "Bool"
			default: true
		}
	}
	outputs: alpha_diversity: type: "SampleData[AlphaDiversity]"
}

action: core_metrics: {
	name: "Core diversity metrics"
	kind: "pipeline"
	inputs: table: type: "FeatureTable[Frequency]"
	parameters: {
		sampling_depth: {
			type:  "Int"
			range: {min: 1}
		}
		metadata: type: "Metadata"
		weights: {
			type:    "List[Float]"
			default: [1, 2.5]
		}
	}
	outputs: {
		rarefied_table: type: "FeatureTable[Frequency]"
		visualization: type:  "Visualization"
	}
}
`

// WritePlugin creates root/<dir> holding plugin.yaml and, if signatures
// is non-empty, actions.cue. It returns the plugin directory.
func WritePlugin(t *testing.T, root, dir, manifest, signatures string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o644))
	if signatures != "" {
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "actions.cue"), []byte(signatures), 0o644))
	}
	return pluginDir
}
