// Package flow defines the canonical lookup token the translation engine
// indexes sessions by: the 5-tuple of source/destination address, port, and
// transport protocol.
package flow

import (
	"fmt"
	"net/netip"
)

// Protocol tags the fixed set of transport protocols this translator
// understands. Modeled as a small enum rather than a vtable, since the set
// never grows without a new release.
type Protocol uint8

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolICMP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolICMP:
		return "icmp"
	default:
		return fmt.Sprintf("proto(%d)", uint8(p))
	}
}

// Key is the 5-tuple identifying a transport-layer conversation. It is
// comparable, so Go's map implementation already gives it the "universal
// hash over the full payload" the design calls for — no bespoke hash
// function is needed.
//
// For ICMP echo request/reply, pkg/rewrite's Parse places the identifier
// field in both the SrcPort and DstPort slots.
type Key struct {
	SrcAddr  netip.Addr
	DstAddr  netip.Addr
	SrcPort  uint16
	DstPort  uint16
	Protocol Protocol
}

// Reverse builds the key that would be observed for the return direction of
// this flow as seen from the remote side: src and dst swap.
func (k Key) Reverse() Key {
	return Key{
		SrcAddr:  k.DstAddr,
		DstAddr:  k.SrcAddr,
		SrcPort:  k.DstPort,
		DstPort:  k.SrcPort,
		Protocol: k.Protocol,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%s", k.SrcAddr, k.SrcPort, k.DstAddr, k.DstPort, k.Protocol)
}
