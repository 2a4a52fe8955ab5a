package cache

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/pluma/internal/ir"
	"github.com/roach88/pluma/internal/plugin"
)

// Magic identifies a pluma registry cache file.
const Magic = "pluma-registry-cache"

// Entry is the persisted cache envelope.
type Entry struct {
	Magic       string          `cbor:"magic"`
	Format      int             `cbor:"format"`
	Tool        string          `cbor:"tool"`
	Fingerprint string          `cbor:"fingerprint"`
	CreatedAt   int64           `cbor:"created_at"` // Unix seconds
	Plugins     []plugin.Plugin `cbor:"plugins"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core Deterministic Encoding: the same entry always encodes to the
	// same bytes.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes an entry.
func Encode(e *Entry) ([]byte, error) {
	data, err := encMode.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding cache entry: %w", err)
	}
	return data, nil
}

// Decode parses and checks an entry. A wrong magic string or format
// version is an error.
func Decode(data []byte) (*Entry, error) {
	var e Entry
	if err := decMode.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}
	if e.Magic != Magic {
		return nil, fmt.Errorf("not a registry cache (magic %q)", e.Magic)
	}
	if e.Format != ir.CacheFormat {
		return nil, fmt.Errorf("unsupported cache format %d (want %d)", e.Format, ir.CacheFormat)
	}
	return &e, nil
}

// Fingerprint hashes the tool version and the installed plugin identities.
// The result does not depend on the order of ids.
func Fingerprint(tool string, ids []plugin.Identity) (string, error) {
	sorted := append([]plugin.Identity(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.ContentHash < b.ContentHash
	})

	plugins := make(ir.IRArray, len(sorted))
	for i, id := range sorted {
		plugins[i] = ir.IRObject{
			"name":    ir.IRString(id.Name),
			"version": ir.IRString(id.Version),
			"content": ir.IRString(id.ContentHash),
		}
	}
	return ir.Hash(ir.DomainFingerprint, ir.IRObject{
		"tool":    ir.IRString(tool),
		"plugins": plugins,
	})
}

// identities returns the identities carried by loaded descriptors.
func identities(plugins []plugin.Plugin) []plugin.Identity {
	ids := make([]plugin.Identity, len(plugins))
	for i, p := range plugins {
		ids[i] = p.Identity()
	}
	return ids
}
