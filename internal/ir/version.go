package ir

// Version constants for the tool and its on-disk formats.
const (
	// ToolVersion is the pluma release. It participates in the registry
	// fingerprint, so upgrading the tool invalidates the cache.
	ToolVersion = "0.3.0"

	// CacheFormat is the registry cache envelope version.
	CacheFormat = 1
)
