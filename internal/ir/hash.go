package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainShape = "mapsync/shape/v1"
	DomainItem  = "mapsync/item/v1"
	DomainState = "mapsync/state/v1"
)

// HashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ShapeDigest returns a stable digest of a geometry.
// A nil geometry has the digest of the empty string.
func ShapeDigest(g Geometry) (string, error) {
	if g == nil {
		return HashWithDomain(DomainShape, nil), nil
	}
	canonical, err := MarshalCanonical(GeometryDocument(g))
	if err != nil {
		return "", fmt.Errorf("shape digest: %w", err)
	}
	return HashWithDomain(DomainShape, canonical), nil
}

// DocumentDigest returns a stable digest of any document built from
// scene entries (see SourceDocument, LayerDocument, AnnotationDocument).
// Two entries with equal digests are interchangeable for reconciliation.
func DocumentDigest(doc map[string]any) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("document digest: %w", err)
	}
	return HashWithDomain(DomainItem, canonical), nil
}

// MustShapeDigest is like ShapeDigest but panics on error.
// Use only in tests or when inputs are known to be finite.
func MustShapeDigest(g Geometry) string {
	d, err := ShapeDigest(g)
	if err != nil {
		panic(err)
	}
	return d
}
