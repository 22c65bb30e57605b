// Package portpool implements the bitmap-indexed ephemeral port allocator
// backing one public IPv4 address. One Pool exists per (core, public IP)
// pair; pools are never shared across cores, so no synchronization is
// required on the bitmap itself.
package portpool

import (
	"net/netip"

	"github.com/bits-and-blooms/bitset"
)

const (
	// MinPort is the first port the allocator will ever hand out.
	MinPort = 1024
	// MaxPort is the last port the allocator will ever hand out.
	MaxPort = 65535

	bitmapSize = MaxPort + 1
)

// NoPort is returned by Alloc when the pool is exhausted.
const NoPort uint16 = 0

// Pool is the per-public-IP ephemeral port allocator described in spec
// §4.A: a dense bitmap over [1024, 65535], a rotating cursor, an
// allocated-count, and an exhaustion counter.
type Pool struct {
	ip        netip.Addr
	bits      *bitset.BitSet
	cursor    uint
	allocated uint32
	exhausted uint64
}

// New creates a pool for ip with every port below MinPort permanently
// marked allocated so Alloc can never return one.
func New(ip netip.Addr) *Pool {
	b := bitset.New(bitmapSize)
	for i := uint(0); i < MinPort; i++ {
		b.Set(i)
	}
	return &Pool{
		ip:     ip,
		bits:   b,
		cursor: MinPort,
	}
}

// IP returns the public address this pool allocates ports for.
func (p *Pool) IP() netip.Addr { return p.ip }

// Allocated returns the number of ports currently bound.
func (p *Pool) Allocated() uint32 { return p.allocated }

// Exhausted returns the number of times Alloc has failed on a full scan.
func (p *Pool) Exhausted() uint64 { return p.exhausted }

// Alloc scans linearly from the cursor, wrapping at MaxPort back to
// MinPort, and returns the first cleared bit, setting it and advancing the
// cursor past it. Returns NoPort and bumps the exhaustion counter if every
// port is in use.
func (p *Pool) Alloc() uint16 {
	start := p.cursor
	for i := uint(0); i < bitmapSize-MinPort; i++ {
		port := start + i
		if port > MaxPort {
			port -= (MaxPort - MinPort + 1)
		}
		if !p.bits.Test(port) {
			p.bits.Set(port)
			p.allocated++
			next := port + 1
			if next > MaxPort {
				next = MinPort
			}
			p.cursor = next
			return uint16(port)
		}
	}
	p.exhausted++
	return NoPort
}

// IsAllocated reports whether port is currently bound.
func (p *Pool) IsAllocated(port uint16) bool {
	return p.bits.Test(uint(port))
}

// Free clears port's bit. Freeing an unallocated port is a no-op.
func (p *Pool) Free(port uint16) {
	if port < MinPort {
		return
	}
	if !p.bits.Test(uint(port)) {
		return
	}
	p.bits.Clear(uint(port))
	p.allocated--
}

// PopCount returns the number of set bits in the bitmap, used by property
// tests to assert Allocated stays in sync with the bitmap (spec P4).
func (p *Pool) PopCount() uint {
	return p.bits.Count() - MinPort
}
