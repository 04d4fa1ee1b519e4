package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns a short hex fingerprint of key material.
//
// It hashes with SHA-256 and truncates to 10 bytes (20 hex chars). Two ends of a
// session print the same value for the same AuthKey.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:10])
}
