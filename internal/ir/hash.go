package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTrace  = "linewalk/trace/v1"
	DomainConfig = "linewalk/config/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TraceDigest computes the content-addressed digest of a canonical trace value.
func TraceDigest(trace map[string]any) (string, error) {
	canonical, err := MarshalCanonical(trace)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// ConfigDigest computes the digest of a traversal config. Two stored runs
// with the same config digest and the same span budget must replay to the
// same trace digest.
func ConfigDigest(start, max int64) string {
	canonical, err := MarshalCanonical(map[string]any{
		"start": start,
		"max":   max,
	})
	if err != nil {
		// int64 values always marshal
		panic(err)
	}
	return hashWithDomain(DomainConfig, canonical)
}
