// Package stats implements the per-core Counter Block and the lock-free
// Stats Aggregator described in spec.md §4.I and §5: each core owns one
// Block, writing it with atomic adds from a single goroutine; the
// aggregator reads every core's Block with atomic loads and no locks, and
// treats values that are slightly stale relative to each other as
// acceptable.
package stats

import "sync/atomic"

// cacheLinePad is sized to separate hot counters from the next Block in a
// slice so two cores' blocks never share a cache line.
const cacheLinePad = 64

// Block is one core's write-only (except for aggregator reads) counter
// set. All fields are accessed with atomic ops even though only the owning
// core writes them, so the aggregator's concurrent reads are race-detector
// clean on 64-bit platforms.
type Block struct {
	PacketsRx     atomic.Uint64
	PacketsTx     atomic.Uint64
	PacketsDrop   atomic.Uint64
	BytesRx       atomic.Uint64
	BytesTx       atomic.Uint64
	NATCreated    atomic.Uint64
	NATExpired    atomic.Uint64
	LookupHit     atomic.Uint64
	LookupMiss    atomic.Uint64
	ErrInvalid    atomic.Uint64
	ErrNoMemory   atomic.Uint64
	ErrNoPorts    atomic.Uint64
	PortAllocFail atomic.Uint64
	LatencySum    atomic.Uint64 // cycles/ns, accumulated fast-path latency
	LatencyCount  atomic.Uint64
	LatencyMax    atomic.Uint64

	_ [cacheLinePad]byte
}

// RecordRx accounts for one frame pulled off the fabric, independent of
// whatever the Translation Engine later does with it; packets_tx +
// packets_dropped must never exceed this count.
func (b *Block) RecordRx(bytes int) {
	b.PacketsRx.Add(1)
	b.BytesRx.Add(uint64(bytes))
}

// RecordTx accounts for one transmitted frame.
func (b *Block) RecordTx(bytes int) {
	b.PacketsTx.Add(1)
	b.BytesTx.Add(uint64(bytes))
}

// RecordDrop accounts for one dropped frame, regardless of cause; callers
// also bump the specific Err* counter for the cause.
func (b *Block) RecordDrop() {
	b.PacketsDrop.Add(1)
}

// RecordLatency folds one fast-path latency sample (spec.md §4.F step 5)
// into the running sum/count/max.
func (b *Block) RecordLatency(sample uint64) {
	b.LatencySum.Add(sample)
	b.LatencyCount.Add(1)
	for {
		cur := b.LatencyMax.Load()
		if sample <= cur {
			return
		}
		if b.LatencyMax.CompareAndSwap(cur, sample) {
			return
		}
	}
}
