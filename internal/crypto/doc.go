// Package crypto implements the finite-field Diffie-Hellman key exchange that
// opens every transport session.
//
// Contents
//
//   - The RFC 3526 2048-bit MODP group 14 (Group14) and custom groups (NewGroup)
//   - Ephemeral key pairs (GenerateKeyPair, NewKeyPair) and the 256-byte
//     shared secret used as the session AuthKey (KeyPair.SharedSecret)
//   - Swappable randomness for the private exponent (crypto/rand by default,
//     NewDeterministicReader for reproducible test/compat runs)
//   - Short fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Modular exponentiation uses math/big, which is not constant time. Timing
// independence from the secret exponent is therefore best-effort only.
//
// Peer values of 0, 1 and P-1 (and anything outside [2, P-2]) are rejected with
// ErrInvalidPeerValue before they reach the exponentiation.
package crypto
