package crypto

import (
	"errors"
	"fmt"
	"math/big"
)

// AuthKeySize is the length of a serialized shared secret: 2048 bits.
const AuthKeySize = 256

// group14Hex is the RFC 3526 2048-bit MODP group prime.
const group14Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// group5Hex is the RFC 3526 1536-bit MODP group prime.
const group5Hex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF"

// ErrInvalidGroup is returned by NewGroup for unusable domain parameters.
var ErrInvalidGroup = errors.New("invalid diffie-hellman group")

// Group holds the domain parameters of a finite-field Diffie-Hellman group.
// A Group is immutable once built and may be shared by any number of sessions.
type Group struct {
	p *big.Int
	g *big.Int

	pMinus1 *big.Int
}

var (
	group14 = mustGroup(group14Hex, 2)
	group5  = mustGroup(group5Hex, 2)
)

// Group14 returns the process-wide RFC 3526 group 14 parameters with G = 2.
func Group14() Group { return group14 }

// Group5 returns the RFC 3526 1536-bit group 5 parameters with G = 2. Some
// deployed servers still run the handshake over this prime while advertising
// 2048 bits; secrets are still serialized as AuthKeySize bytes.
func Group5() Group { return group5 }

// GroupByName resolves a configuration name to a built-in group.
func GroupByName(name string) (Group, error) {
	switch name {
	case "", "modp2048", "group14":
		return group14, nil
	case "modp1536", "group5":
		return group5, nil
	default:
		return Group{}, fmt.Errorf("%w: unknown group %q", ErrInvalidGroup, name)
	}
}

// NewGroup validates p and g and returns them as a Group.
//
// p must be larger than 3 and at most 2048 bits so secrets fit in AuthKeySize
// bytes; g must lie in [2, p-2].
func NewGroup(p, g *big.Int) (Group, error) {
	if p == nil || g == nil {
		return Group{}, fmt.Errorf("%w: nil parameter", ErrInvalidGroup)
	}
	if p.Cmp(big.NewInt(3)) <= 0 {
		return Group{}, fmt.Errorf("%w: prime too small", ErrInvalidGroup)
	}
	if p.BitLen() > AuthKeySize*8 {
		return Group{}, fmt.Errorf("%w: prime exceeds %d bits", ErrInvalidGroup, AuthKeySize*8)
	}
	pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
	if g.Cmp(big.NewInt(1)) <= 0 || g.Cmp(pMinus1) >= 0 {
		return Group{}, fmt.Errorf("%w: generator out of range", ErrInvalidGroup)
	}
	return Group{
		p:       new(big.Int).Set(p),
		g:       new(big.Int).Set(g),
		pMinus1: pMinus1,
	}, nil
}

// P returns a copy of the group prime.
func (gr Group) P() *big.Int { return new(big.Int).Set(gr.p) }

// G returns a copy of the generator.
func (gr Group) G() *big.Int { return new(big.Int).Set(gr.g) }

// IsZero reports whether gr is the zero value.
func (gr Group) IsZero() bool { return gr.p == nil }

func mustGroup(hexP string, g int64) Group {
	p, ok := new(big.Int).SetString(hexP, 16)
	if !ok {
		panic("crypto: bad group prime")
	}
	gr, err := NewGroup(p, big.NewInt(g))
	if err != nil {
		panic(err)
	}
	return gr
}
