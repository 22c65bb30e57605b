package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregatorSumsAcrossCores(t *testing.T) {
	b1, b2 := &Block{}, &Block{}
	b1.RecordRx(100)
	b1.RecordRx(200)
	b1.RecordTx(100)
	b2.RecordRx(50)
	b2.RecordTx(50)
	b2.RecordDrop()

	agg := NewAggregator([]*Block{b1, b2}, 1.0)
	snap := agg.Snapshot()

	assert.EqualValues(t, 3, snap.PacketsRx)
	assert.EqualValues(t, 2, snap.PacketsTx)
	assert.EqualValues(t, 1, snap.PacketsDropped)
	assert.EqualValues(t, 350, snap.BytesRx)
	assert.EqualValues(t, 150, snap.BytesTx)
}

func TestAggregatorActiveSessions(t *testing.T) {
	b := &Block{}
	b.NATCreated.Store(10)
	b.NATExpired.Store(4)

	agg := NewAggregator([]*Block{b}, 1.0)
	snap := agg.Snapshot()
	assert.EqualValues(t, 6, snap.SessionsActive)
}

func TestAggregatorLatency(t *testing.T) {
	b1, b2 := &Block{}, &Block{}
	b1.RecordLatency(100)
	b1.RecordLatency(200)
	b2.RecordLatency(50)

	agg := NewAggregator([]*Block{b1, b2}, 0.5) // e.g. converting half-units to us
	snap := agg.Snapshot()

	// sum=350, count=3 => avg=116.666...*0.5
	assert.InDelta(t, (350.0/3.0)*0.5, snap.AvgLatencyMicros, 0.001)
	assert.InDelta(t, 200*0.5, snap.MaxLatencyMicros, 0.001)
}

func TestAggregatorNoSamplesNoDivideByZero(t *testing.T) {
	agg := NewAggregator([]*Block{{}}, 1.0)
	snap := agg.Snapshot()
	assert.Zero(t, snap.AvgLatencyMicros)
	assert.Zero(t, snap.MaxLatencyMicros)
}
