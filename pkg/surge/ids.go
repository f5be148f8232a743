package surge

import (
	"math/rand"
	"sync"
	"time"
)

// RequestID and ConnectionID are opaque 64-bit correlation identifiers
// (spec.md §3). Callers should not assume any ordering or structure.
type RequestID uint64
type ConnectionID uint64

// idGenPool hands out PRNG sources. Spec.md §9 is explicit that
// request/connection ids "come from a per-worker 64-bit PRNG, seeded
// from a non-deterministic source at thread start" and that a single
// generator must not be shared across threads — sync.Pool gives every
// concurrent caller its own *rand.Rand without a shared-state lock.
var idGenPool = sync.Pool{
	New: func() any {
		return rand.New(rand.NewSource(time.Now().UnixNano() ^ int64(randSeedSalt())))
	},
}

// randSeedSalt returns a second wall-clock reading with its bytes
// reversed, so the fast-changing low bits of the clock also land in the
// high bits of the seed. Two generators whose clock readings are equal
// still get equal seeds.
func randSeedSalt() uint64 {
	var b [8]byte
	// A separate time.Now() call from the one used as the seed base.
	now := time.Now()
	for i := range b {
		b[i] = byte(now.UnixNano() >> (i * 8))
	}
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

// NewRequestID returns a fresh, opaque request id.
func NewRequestID() RequestID {
	gen := idGenPool.Get().(*rand.Rand)
	id := gen.Uint64()
	idGenPool.Put(gen)
	return RequestID(id)
}

// NewConnectionID returns a fresh, opaque connection id.
func NewConnectionID() ConnectionID {
	gen := idGenPool.Get().(*rand.Rand)
	id := gen.Uint64()
	idGenPool.Put(gen)
	return ConnectionID(id)
}
