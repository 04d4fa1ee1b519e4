// Package mtproto implements the per-message symmetric layer that runs on top
// of a completed Diffie-Hellman handshake.
//
// # Envelope
//
// Every application payload travels as
//
//	msg_key (16 bytes) || AES-256-CBC(PKCS7(plaintext))
//
// where msg_key = SHA-256(plaintext)[8:24]. The cipher key and IV are derived
// afresh for each message from the 256-byte AuthKey and msg_key:
//
//	aes_key = SHA-256(msg_key || auth_key[0:32])
//	aes_iv  = SHA-256(auth_key[32:64] || msg_key)[0:16]
//
// # Integrity
//
// The envelope carries no MAC. Padding validity is the only tamper signal, and
// a flipped bit in a non-final block can still decrypt to well-padded garbage.
// Identical plaintexts under one AuthKey produce identical envelopes.
//
// Codec abstracts the envelope format. Plain is the interoperable format
// above; Authenticated appends an HMAC-SHA256 tag and must be enabled on both
// ends.
package mtproto
