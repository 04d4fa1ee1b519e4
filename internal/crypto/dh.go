package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"samor/internal/util/memzero"
)

var (
	// ErrInvalidPeerValue is returned for degenerate or out-of-range peer values.
	ErrInvalidPeerValue = errors.New("invalid peer public value")
	// ErrInvalidPrivate is returned by NewKeyPair for exponents outside [1, P-1].
	ErrInvalidPrivate = errors.New("private exponent out of range")
	// ErrKeyDestroyed is returned when a destroyed KeyPair is used.
	ErrKeyDestroyed = errors.New("key pair destroyed")
)

var one = big.NewInt(1)

// KeyPair is an ephemeral Diffie-Hellman key pair bound to one Group.
//
// A KeyPair belongs to exactly one session and is never reused across
// reconnects. Call Destroy once the shared secret has been derived or the
// session ends.
type KeyPair struct {
	group   Group
	private *big.Int
	public  *big.Int
}

// GenerateKeyPair samples a private exponent uniformly from [1, P-1] using rnd
// and computes the matching public value.
//
// A zero Group selects Group14 and a nil rnd selects crypto/rand.Reader.
func GenerateKeyPair(gr Group, rnd io.Reader) (*KeyPair, error) {
	if gr.IsZero() {
		gr = group14
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	// rand.Int yields [0, P-1); shifting by one gives [1, P-1].
	x, err := rand.Int(rnd, gr.pMinus1)
	if err != nil {
		return nil, fmt.Errorf("sample private exponent: %w", err)
	}
	x.Add(x, one)
	return newKeyPair(gr, x), nil
}

// NewKeyPair builds a key pair from a fixed private exponent. It exists for
// known-answer tests and interop fixtures; production code uses GenerateKeyPair.
func NewKeyPair(gr Group, private *big.Int) (*KeyPair, error) {
	if gr.IsZero() {
		gr = group14
	}
	if private == nil || private.Sign() <= 0 || private.Cmp(gr.pMinus1) > 0 {
		return nil, ErrInvalidPrivate
	}
	return newKeyPair(gr, new(big.Int).Set(private)), nil
}

func newKeyPair(gr Group, x *big.Int) *KeyPair {
	return &KeyPair{
		group:   gr,
		private: x,
		public:  new(big.Int).Exp(gr.g, x, gr.p),
	}
}

// Group returns the domain parameters of the pair.
func (kp *KeyPair) Group() Group { return kp.group }

// Public returns a copy of the public value G^private mod P.
func (kp *KeyPair) Public() *big.Int { return new(big.Int).Set(kp.public) }

// PublicString returns the public value in the decimal form used on the wire.
func (kp *KeyPair) PublicString() string { return kp.public.String() }

// SharedSecret computes peer^private mod P and serializes it big-endian,
// left-padded to exactly AuthKeySize bytes.
func (kp *KeyPair) SharedSecret(peer *big.Int) ([]byte, error) {
	if kp.private == nil {
		return nil, ErrKeyDestroyed
	}
	if err := ValidatePublic(kp.group, peer); err != nil {
		return nil, err
	}
	s := new(big.Int).Exp(peer, kp.private, kp.group.p)
	defer memzero.ZeroInt(s)

	out := make([]byte, AuthKeySize)
	s.FillBytes(out)
	return out, nil
}

// Destroy wipes the private exponent. The pair is unusable afterwards.
func (kp *KeyPair) Destroy() {
	if kp == nil || kp.private == nil {
		return
	}
	memzero.ZeroInt(kp.private)
	kp.private = nil
}

// Destroyed reports whether Destroy has been called.
func (kp *KeyPair) Destroyed() bool { return kp.private == nil }

// ValidatePublic checks that y lies in [2, P-2], which excludes 0, 1 and P-1.
func ValidatePublic(gr Group, y *big.Int) error {
	if gr.IsZero() {
		gr = group14
	}
	if y == nil || y.Cmp(one) <= 0 || y.Cmp(gr.pMinus1) >= 0 {
		return ErrInvalidPeerValue
	}
	return nil
}

// ParsePublic parses a decimal public value as carried in handshake frames.
// Range checks are left to ValidatePublic.
func ParsePublic(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPeerValue)
	}
	y, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: not a decimal integer", ErrInvalidPeerValue)
	}
	return y, nil
}
