package mtproto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"errors"
	"fmt"
)

var (
	// ErrMalformedEnvelope is returned for envelopes too short to hold a
	// msg_key or whose ciphertext is not whole AES blocks.
	ErrMalformedEnvelope = errors.New("malformed envelope")
	// ErrBadPadding is returned when decryption yields invalid PKCS7 padding,
	// typically a wrong or stale AuthKey or tampered ciphertext.
	ErrBadPadding = errors.New("bad padding")
)

// MsgKey returns the middle 16 bytes of SHA-256(plaintext).
func MsgKey(plaintext []byte) []byte {
	sum := sha256.Sum256(plaintext)
	return append([]byte(nil), sum[8:24]...)
}

// Encrypt seals plaintext under authKey and returns msg_key || ciphertext.
func Encrypt(authKey, plaintext []byte) ([]byte, error) {
	msgKey := MsgKey(plaintext)
	keys, err := Derive(authKey, msgKey)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	padded := pkcs7Pad(plaintext)
	out := make([]byte, MsgKeySize+len(padded))
	copy(out, msgKey)
	cipher.NewCBCEncrypter(block, keys.IV[:]).CryptBlocks(out[MsgKeySize:], padded)
	return out, nil
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(authKey, envelope []byte) ([]byte, error) {
	if len(envelope) < MsgKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEnvelope, len(envelope))
	}
	msgKey, ciphertext := envelope[:MsgKeySize], envelope[MsgKeySize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is %d bytes", ErrMalformedEnvelope, len(ciphertext))
	}

	keys, err := Derive(authKey, msgKey)
	if err != nil {
		return nil, err
	}
	defer keys.Wipe()

	block, err := aes.NewCipher(keys.Key[:])
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, keys.IV[:]).CryptBlocks(padded, ciphertext)
	return pkcs7Unpad(padded)
}
