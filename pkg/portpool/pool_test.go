package portpool

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIP() netip.Addr { return netip.MustParseAddr("203.0.113.1") }

func TestAllocInRange(t *testing.T) {
	p := New(testIP())
	port := p.Alloc()
	assert.GreaterOrEqual(t, port, uint16(MinPort))
	assert.LessOrEqual(t, port, uint16(MaxPort))
	assert.True(t, p.IsAllocated(port))
	assert.EqualValues(t, 1, p.Allocated())
}

func TestAllocNoImmediateReuse(t *testing.T) {
	p := New(testIP())
	a := p.Alloc()
	b := p.Alloc()
	assert.NotEqual(t, a, b, "cursor must advance past the returned port")
}

func TestFreeIsIdempotent(t *testing.T) {
	p := New(testIP())
	port := p.Alloc()
	p.Free(port)
	assert.False(t, p.IsAllocated(port))
	assert.EqualValues(t, 0, p.Allocated())
	p.Free(port) // no-op, must not underflow or panic
	assert.EqualValues(t, 0, p.Allocated())
}

func TestFreeUnallocatedIsNoop(t *testing.T) {
	p := New(testIP())
	p.Free(12345)
	assert.EqualValues(t, 0, p.Allocated())
}

func TestExhaustion(t *testing.T) {
	p := New(testIP())
	total := MaxPort - MinPort + 1

	seen := make(map[uint16]bool, total)
	for i := 0; i < total; i++ {
		port := p.Alloc()
		require.NotEqual(t, NoPort, port, "allocation %d of %d should not exhaust", i+1, total)
		require.False(t, seen[port], "port %d allocated twice", port)
		seen[port] = true
	}

	// The pool is now fully allocated; one more Alloc must fail.
	port := p.Alloc()
	assert.Equal(t, NoPort, port)
	assert.EqualValues(t, 1, p.Exhausted())
	assert.EqualValues(t, total, p.Allocated())
}

func TestPopCountMatchesAllocated(t *testing.T) {
	p := New(testIP())
	for i := 0; i < 100; i++ {
		p.Alloc()
	}
	assert.EqualValues(t, p.Allocated(), p.PopCount())

	p.Free(p.Alloc())
	assert.EqualValues(t, p.Allocated(), p.PopCount())
}

func TestReservedRangeNeverAllocated(t *testing.T) {
	p := New(testIP())
	for port := uint16(0); port < MinPort; port++ {
		assert.True(t, p.IsAllocated(port))
	}
}
