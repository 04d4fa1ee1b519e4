package crypto

import (
	"io"
	mrand "math/rand/v2"
	"sync"
)

// deterministicReader streams bytes from a seeded PCG generator.
type deterministicReader struct {
	mu  sync.Mutex
	src *mrand.Rand
}

// NewDeterministicReader returns a reproducible, NON-cryptographic byte source.
//
// It stands in for a general-purpose big-integer RNG so that fixtures from
// peers using one can be replayed. Never pass it to GenerateKeyPair outside
// tests or compat tooling.
func NewDeterministicReader(seed uint64) io.Reader {
	return &deterministicReader{src: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range p {
		p[i] = byte(r.src.Uint32())
	}
	return len(p), nil
}
