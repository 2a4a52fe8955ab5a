// Package ir provides the canonical value types for validated parameter
// bags, plus RFC 8785 canonical JSON and domain-separated hashing.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key constraints:
//   - IRValue is sealed; handlers produce only the types defined here
//   - IRNull means "explicitly none", never "not supplied"
//   - Content addresses are SHA-256 over canonical JSON with a domain prefix
package ir
