package flow

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestKeyReverse(t *testing.T) {
	k := Key{
		SrcAddr:  mustAddr("10.0.0.5"),
		DstAddr:  mustAddr("8.8.8.8"),
		SrcPort:  40000,
		DstPort:  53,
		Protocol: ProtocolUDP,
	}
	r := k.Reverse()
	assert.Equal(t, k.DstAddr, r.SrcAddr)
	assert.Equal(t, k.SrcAddr, r.DstAddr)
	assert.Equal(t, k.DstPort, r.SrcPort)
	assert.Equal(t, k.SrcPort, r.DstPort)
	assert.Equal(t, k.Protocol, r.Protocol)
	assert.Equal(t, k, r.Reverse())
}

func TestKeyComparable(t *testing.T) {
	a := Key{SrcAddr: mustAddr("10.0.0.1"), DstAddr: mustAddr("1.1.1.1"), SrcPort: 1, DstPort: 2, Protocol: ProtocolTCP}
	b := a
	m := map[Key]int{a: 1}
	assert.Equal(t, 1, m[b])
}

func TestProtocolString(t *testing.T) {
	assert.Equal(t, "tcp", ProtocolTCP.String())
	assert.Equal(t, "udp", ProtocolUDP.String())
	assert.Equal(t, "icmp", ProtocolICMP.String())
}
