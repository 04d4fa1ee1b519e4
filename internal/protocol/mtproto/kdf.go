package mtproto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"samor/internal/crypto"
	"samor/internal/util/memzero"
)

const (
	// MsgKeySize is the length of the plaintext-derived message tag.
	MsgKeySize = 16
	// KeySize is the AES-256 key length.
	KeySize = 32
	// IVSize is the CBC initialization vector length (one AES block).
	IVSize = 16
)

var (
	// ErrInvalidAuthKey is returned when the AuthKey is not crypto.AuthKeySize bytes.
	ErrInvalidAuthKey = errors.New("invalid auth key length")
	// ErrInvalidMsgKey is returned when a msg_key is not MsgKeySize bytes.
	ErrInvalidMsgKey = errors.New("invalid msg key length")
)

// Keys is the one-time key material for a single message.
type Keys struct {
	Key [KeySize]byte
	IV  [IVSize]byte
}

// Wipe zeroes the key material.
func (k *Keys) Wipe() {
	memzero.Zero(k.Key[:])
	memzero.Zero(k.IV[:])
}

// Derive computes the cipher key and IV for msgKey under authKey. It is a pure
// function of its inputs.
func Derive(authKey, msgKey []byte) (Keys, error) {
	if len(authKey) != crypto.AuthKeySize {
		return Keys{}, fmt.Errorf("%w: %d bytes", ErrInvalidAuthKey, len(authKey))
	}
	if len(msgKey) != MsgKeySize {
		return Keys{}, fmt.Errorf("%w: %d bytes", ErrInvalidMsgKey, len(msgKey))
	}

	var kBuf [MsgKeySize + 32]byte
	copy(kBuf[:MsgKeySize], msgKey)
	copy(kBuf[MsgKeySize:], authKey[0:32])

	var ivBuf [32 + MsgKeySize]byte
	copy(ivBuf[:32], authKey[32:64])
	copy(ivBuf[32:], msgKey)

	var out Keys
	out.Key = sha256.Sum256(kBuf[:])
	ivFull := sha256.Sum256(ivBuf[:])
	copy(out.IV[:], ivFull[:IVSize])

	memzero.Zero(kBuf[:])
	memzero.Zero(ivBuf[:])
	memzero.Zero(ivFull[:])
	return out, nil
}
