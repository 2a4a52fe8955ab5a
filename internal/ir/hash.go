package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainFingerprint = "pluma/fingerprint/v1"
	DomainInvocation  = "pluma/invocation/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the domain-separated SHA-256 of the canonical form of v.
func Hash(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// InvocationID computes the content address of a dispatched action: the
// same plugin, action, parameter bag and output routing always hash to the
// same ID.
func InvocationID(plugin, action string, params IRObject, outputs map[string]string) (string, error) {
	outs := make(IRObject, len(outputs))
	for name, path := range outputs {
		outs[name] = IRString(path)
	}
	obj := IRObject{
		"plugin":  IRString(plugin),
		"action":  IRString(action),
		"params":  params,
		"outputs": outs,
	}
	id, err := Hash(DomainInvocation, obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: %w", err)
	}
	return id, nil
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when params are known valid.
func MustInvocationID(plugin, action string, params IRObject, outputs map[string]string) string {
	id, err := InvocationID(plugin, action, params, outputs)
	if err != nil {
		panic(err)
	}
	return id
}
