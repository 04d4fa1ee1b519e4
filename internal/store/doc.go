// Package store persists session transcripts on disk.
//
// TranscriptFileStore writes the ordered message log of a session as JSON,
// atomically replacing the previous file on every save. With a passphrase the
// JSON is sealed with XChaCha20-Poly1305 under an scrypt-derived key before it
// touches the disk.
//
// Stores are safe for concurrent use.
package store
