package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"samor/internal/util/memzero"
)

const sealedFormatVersion = 1

// ErrWrongPassphrase is returned when a sealed transcript does not open.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted transcript")

// ErrKDFCost is returned when a sealed transcript asks for scrypt parameters
// above the ones this package writes.
var ErrKDFCost = errors.New("transcript key derivation cost out of range")

// scryptParams are the key derivation costs. Tests lower N.
type scryptParams struct {
	N, R, P int
}

var defaultScrypt = scryptParams{N: 1 << 15, R: 8, P: 1}

// allows bounds parameters read from disk by sp, so a crafted file cannot
// make key derivation arbitrarily slow or large.
func (sp scryptParams) allows(n, r, p int) error {
	if n <= 1 || n&(n-1) != 0 || n > sp.N || r < 1 || r > sp.R || p < 1 || p > sp.P {
		return fmt.Errorf("%w: N=%d r=%d p=%d", ErrKDFCost, n, r, p)
	}
	return nil
}

// sealedBlob is the on-disk form of an encrypted transcript.
type sealedBlob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	Nonce  []byte `json:"nonce"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

func seal(passphrase string, raw []byte, sp scryptParams) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, sp.N, sp.R, sp.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return json.Marshal(sealedBlob{
		V:      sealedFormatVersion,
		Salt:   salt,
		Nonce:  nonce,
		N:      sp.N,
		R:      sp.R,
		P:      sp.P,
		Cipher: aead.Seal(nil, nonce, raw, salt),
	})
}

func open(passphrase string, b []byte) ([]byte, error) {
	var bl sealedBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, err
	}
	if bl.V > sealedFormatVersion {
		return nil, fmt.Errorf("unsupported transcript version %d", bl.V)
	}
	if len(bl.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrWrongPassphrase
	}
	if err := defaultScrypt.allows(bl.N, bl.R, bl.P); err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, bl.Nonce, bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
