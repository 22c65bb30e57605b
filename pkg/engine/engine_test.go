package engine

import (
	"encoding/binary"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/cgnat/pkg/portpool"
)

func buildUDPFrame(src, dst netip.Addr, srcPort, dstPort uint16, payload []byte) []byte {
	udpLen := 8 + len(payload)
	ipLen := 20 + udpLen
	frame := make([]byte, 14+ipLen)
	binary.BigEndian.PutUint16(frame[12:14], 0x0800)

	ip := frame[14:]
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(ipLen))
	ip[8] = 64
	ip[9] = 17
	s4, d4 := src.As4(), dst.As4()
	copy(ip[12:16], s4[:])
	copy(ip[16:20], d4[:])
	setIPChecksum(ip[:20])

	udp := ip[20:]
	binary.BigEndian.PutUint16(udp[0:2], srcPort)
	binary.BigEndian.PutUint16(udp[2:4], dstPort)
	binary.BigEndian.PutUint16(udp[4:6], uint16(udpLen))
	copy(udp[8:], payload)
	setUDPChecksum(ip[:20], udp)

	return frame
}

func checksum(buf []byte, initial uint32) uint16 {
	sum := initial
	n := len(buf)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(buf[i])<<8 | uint32(buf[i+1])
	}
	if n%2 == 1 {
		sum += uint32(buf[n-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

func setIPChecksum(ip []byte) {
	ip[10], ip[11] = 0, 0
	cs := checksum(ip, 0)
	binary.BigEndian.PutUint16(ip[10:12], cs)
}

func pseudoSum(ip []byte, l4len int, proto uint8) uint32 {
	var sum uint32
	sum += uint32(ip[12])<<8 | uint32(ip[13])
	sum += uint32(ip[14])<<8 | uint32(ip[15])
	sum += uint32(ip[16])<<8 | uint32(ip[17])
	sum += uint32(ip[18])<<8 | uint32(ip[19])
	sum += uint32(proto)
	sum += uint32(l4len)
	return sum
}

func setUDPChecksum(ip, udp []byte) {
	udp[6], udp[7] = 0, 0
	cs := checksum(udp, pseudoSum(ip, len(udp), 17))
	binary.BigEndian.PutUint16(udp[6:8], cs)
}

func newTestContext(t *testing.T, now *time.Time) *Context {
	t.Helper()
	return NewContext(Config{
		CoreID:         0,
		SessionBudget:  16,
		PublicIPs:      []netip.Addr{netip.MustParseAddr("203.0.113.1")},
		CustomerPrefix: netip.MustParsePrefix("10.0.0.0/8"),
		Now:            func() time.Time { return *now },
	})
}

func TestOutboundCreatesBindingAndRewrites(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	frame := buildUDPFrame(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("8.8.8.8"), 40000, 53, []byte("q"))
	err := c.TranslateOutbound(frame)
	require.NoError(t, err)

	assert.Equal(t, 1, c.ActiveSessions())
	assert.EqualValues(t, 1, c.Counters.NATCreated.Load())

	ip := frame[14:34]
	srcIP, _ := netip.AddrFromSlice(ip[12:16])
	assert.Equal(t, netip.MustParseAddr("203.0.113.1"), srcIP)
}

func TestReturnTrafficMatchesBinding(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	out := buildUDPFrame(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("8.8.8.8"), 40000, 53, []byte("q"))
	require.NoError(t, c.TranslateOutbound(out))

	outIP := out[14:34]
	srcIP, _ := netip.AddrFromSlice(outIP[12:16])
	srcPort := binary.BigEndian.Uint16(out[14+20 : 14+20+2])

	ret := buildUDPFrame(netip.MustParseAddr("8.8.8.8"), srcIP, 53, srcPort, []byte("r"))
	err := c.TranslateInbound(ret)
	require.NoError(t, err)

	retIP := ret[14:34]
	dstIP, _ := netip.AddrFromSlice(retIP[16:20])
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), dstIP)
}

func TestUnsolicitedInboundDropped(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	frame := buildUDPFrame(netip.MustParseAddr("8.8.8.8"), netip.MustParseAddr("203.0.113.1"), 53, 9999, []byte("x"))
	err := c.TranslateInbound(frame)
	assert.ErrorIs(t, err, ErrLookupMiss)
	assert.EqualValues(t, 1, c.Counters.LookupMiss.Load())
	assert.EqualValues(t, 1, c.Counters.PacketsDrop.Load())
}

func TestPortExhaustionEndToEnd(t *testing.T) {
	now := time.Unix(1000, 0)
	c := NewContext(Config{
		CoreID:         0,
		SessionBudget:  65536,
		PublicIPs:      []netip.Addr{netip.MustParseAddr("203.0.113.1")},
		CustomerPrefix: netip.MustParsePrefix("10.0.0.0/8"),
		Now:            func() time.Time { return now },
	})

	total := int(portpool.MaxPort-portpool.MinPort) + 1
	for i := 0; i < total; i++ {
		srcPort := uint16(1024 + i)
		frame := buildUDPFrame(netip.MustParseAddr("10.1.2.3"), netip.MustParseAddr("8.8.8.8"), srcPort, 53, nil)
		require.NoError(t, c.TranslateOutbound(frame))
	}

	frame := buildUDPFrame(netip.MustParseAddr("10.1.2.3"), netip.MustParseAddr("9.9.9.9"), 1, 53, nil)
	err := c.TranslateOutbound(frame)
	assert.ErrorIs(t, err, ErrNoPorts)
	assert.EqualValues(t, 1, c.Counters.ErrNoPorts.Load())
}

func TestSweepExpiresIdleUDPAndFreesResources(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	frame := buildUDPFrame(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("8.8.8.8"), 40000, 53, nil)
	require.NoError(t, c.TranslateOutbound(frame))
	require.Equal(t, 1, c.ActiveSessions())

	now = now.Add(301 * time.Second) // past UDPActive's 300s timeout
	expired := c.Sweep()

	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, c.ActiveSessions())
	assert.Equal(t, c.arena.Capacity(), c.ArenaFree())
	assert.EqualValues(t, 0, c.PoolPopCounts()[0])
}

func TestNonExpiredEntrySurvivesSweep(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	frame := buildUDPFrame(netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("8.8.8.8"), 40000, 53, nil)
	require.NoError(t, c.TranslateOutbound(frame))

	now = now.Add(10 * time.Second)
	expired := c.Sweep()

	assert.Equal(t, 0, expired)
	assert.Equal(t, 1, c.ActiveSessions())
}

func TestInvalidPacketRejected(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	err := c.TranslateOutbound([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidPacket)
	assert.EqualValues(t, 1, c.Counters.ErrInvalid.Load())
}

func TestNonCustomerSourceRejected(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestContext(t, &now)

	frame := buildUDPFrame(netip.MustParseAddr("172.16.0.5"), netip.MustParseAddr("8.8.8.8"), 40000, 53, nil)
	err := c.TranslateOutbound(frame)
	assert.ErrorIs(t, err, ErrInvalidPacket)
}
