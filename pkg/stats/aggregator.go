package stats

// Snapshot is the single struct the Aggregator produces and the telemetry
// sinks serialize (spec.md §4.I, §6). It never touches per-core memory
// itself once produced.
type Snapshot struct {
	PacketsRx              uint64
	PacketsTx              uint64
	PacketsDropped         uint64
	BytesRx                uint64
	BytesTx                uint64
	SessionsCreated        uint64
	SessionsExpired        uint64
	SessionsActive         int64
	PortAllocationFailures uint64
	AvgLatencyMicros       float64
	MaxLatencyMicros       float64
}

// Aggregator sums a fixed set of per-core Blocks into one Snapshot. It
// holds no locks of its own over the Blocks — each Load is a plain atomic
// read that may be milliseconds stale relative to its neighbors, which
// spec.md §5 accepts for monitoring purposes.
type Aggregator struct {
	blocks     []*Block
	cyclesToUs float64 // conversion factor from latency units to microseconds
}

// NewAggregator builds an aggregator over blocks, one per worker core.
// cyclesToUs converts whatever unit RecordLatency samples are in
// (typically time.Duration nanoseconds) into microseconds; pass 0.001 for
// nanosecond samples.
func NewAggregator(blocks []*Block, cyclesToUs float64) *Aggregator {
	return &Aggregator{blocks: blocks, cyclesToUs: cyclesToUs}
}

// Snapshot computes the sums, derived active-session count, and latency
// statistics described in spec.md §4.I.
func (a *Aggregator) Snapshot() Snapshot {
	var s Snapshot
	var latSum, latCount, latMax uint64

	for _, b := range a.blocks {
		s.PacketsRx += b.PacketsRx.Load()
		s.PacketsTx += b.PacketsTx.Load()
		s.PacketsDropped += b.PacketsDrop.Load()
		s.BytesRx += b.BytesRx.Load()
		s.BytesTx += b.BytesTx.Load()
		s.SessionsCreated += b.NATCreated.Load()
		s.SessionsExpired += b.NATExpired.Load()
		s.PortAllocationFailures += b.PortAllocFail.Load()

		latSum += b.LatencySum.Load()
		latCount += b.LatencyCount.Load()
		if m := b.LatencyMax.Load(); m > latMax {
			latMax = m
		}
	}

	s.SessionsActive = int64(s.SessionsCreated) - int64(s.SessionsExpired)
	if latCount > 0 {
		s.AvgLatencyMicros = float64(latSum) / float64(latCount) * a.cyclesToUs
	}
	s.MaxLatencyMicros = float64(latMax) * a.cyclesToUs

	return s
}
