package mtproto

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"samor/internal/util/memzero"
)

// TagSize is the length of the HMAC-SHA256 tag appended by Authenticated.
const TagSize = sha256.Size

// ErrBadMAC is returned by Authenticated.Open when the tag does not verify.
var ErrBadMAC = errors.New("envelope authentication failed")

var macInfo = []byte("samor envelope mac")

// Codec turns plaintext payloads into envelopes and back under one AuthKey.
// Implementations are stateless and safe for concurrent use.
type Codec interface {
	Seal(authKey, plaintext []byte) ([]byte, error)
	Open(authKey, envelope []byte) ([]byte, error)
	Name() string
}

// Plain is the wire-compatible envelope: msg_key || ciphertext.
type Plain struct{}

func (Plain) Seal(authKey, plaintext []byte) ([]byte, error) { return Encrypt(authKey, plaintext) }
func (Plain) Open(authKey, envelope []byte) ([]byte, error)  { return Decrypt(authKey, envelope) }
func (Plain) Name() string                                   { return "none" }

// Authenticated is msg_key || ciphertext || HMAC-SHA256(mac_key, msg_key || ciphertext),
// with mac_key expanded from the AuthKey by HKDF-SHA256. It is not readable
// by peers that only speak Plain.
type Authenticated struct{}

func (Authenticated) Seal(authKey, plaintext []byte) ([]byte, error) {
	env, err := Encrypt(authKey, plaintext)
	if err != nil {
		return nil, err
	}
	tag, err := envelopeTag(authKey, env)
	if err != nil {
		return nil, err
	}
	return append(env, tag...), nil
}

func (Authenticated) Open(authKey, envelope []byte) ([]byte, error) {
	if len(envelope) < MsgKeySize+TagSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedEnvelope, len(envelope))
	}
	body, tag := envelope[:len(envelope)-TagSize], envelope[len(envelope)-TagSize:]
	want, err := envelopeTag(authKey, body)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(tag, want) {
		return nil, ErrBadMAC
	}
	return Decrypt(authKey, body)
}

func (Authenticated) Name() string { return "hmac" }

func envelopeTag(authKey, body []byte) ([]byte, error) {
	if len(authKey) == 0 {
		return nil, ErrInvalidAuthKey
	}
	key := make([]byte, sha256.Size)
	defer memzero.Zero(key)
	if _, err := io.ReadFull(hkdf.New(sha256.New, authKey, nil, macInfo), key); err != nil {
		return nil, fmt.Errorf("derive mac key: %w", err)
	}
	h := hmac.New(sha256.New, key)
	h.Write(body)
	return h.Sum(nil), nil
}

// CodecByName resolves the configuration names "none" (or "") and "hmac".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "none", "plain":
		return Plain{}, nil
	case "hmac":
		return Authenticated{}, nil
	default:
		return nil, fmt.Errorf("unknown integrity mode %q", name)
	}
}

// FailureReason maps an Open error to a short label for logs and metrics.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedEnvelope):
		return "malformed_envelope"
	case errors.Is(err, ErrBadPadding):
		return "bad_padding"
	case errors.Is(err, ErrBadMAC):
		return "bad_mac"
	case errors.Is(err, ErrInvalidAuthKey):
		return "invalid_auth_key"
	default:
		return "decrypt_failed"
	}
}
