// Package rewrite implements the Packet Rewriter (spec.md §4.E): it
// extracts the 5-tuple from an Ethernet-framed IPv4 packet, substitutes
// the translated address/port, and recomputes the IPv4 and L4 checksums
// from scratch. Header field access uses gvisor's wire-format structs
// (gvisor.dev/gvisor/pkg/tcpip/header) the same way matchlock's own
// packet-construction tests do; the checksum arithmetic itself is the
// domain algorithm this package exists to implement, so it is hand-rolled
// rather than borrowed.
package rewrite

import (
	"net/netip"

	"github.com/flowforge/cgnat/pkg/flow"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

const (
	icmpIdentOffset = 4 // byte offset of the echo identifier within an ICMPv4 header
	icmpEchoReply   = 0
	icmpEchoRequest = 8
)

// Parsed holds the slices of one frame's headers located by Parse, so a
// hit in the Translation Engine's lookup does not have to reparse the
// frame to perform the rewrite.
type Parsed struct {
	Frame []byte
	Eth   header.Ethernet
	IP    header.IPv4
	L4    []byte // TCP, UDP, or ICMPv4 header+payload, starting at the L4 header
	Key   flow.Key
}

// Parse extracts the 5-tuple from an Ethernet+IPv4 frame. It returns
// ErrNotIPv4 for non-IPv4 ethertypes and the Err* sentinels in errors.go
// for any other malformed input, exactly the "invalid-packet" cases in
// spec.md §7 — the frame is never mutated on error.
func Parse(frameBuf []byte) (*Parsed, error) {
	if len(frameBuf) < header.EthernetMinimumSize {
		return nil, ErrTruncatedEthernet
	}
	eth := header.Ethernet(frameBuf[:header.EthernetMinimumSize])
	if eth.Type() != header.IPv4ProtocolNumber {
		return nil, ErrNotIPv4
	}

	ipBuf := frameBuf[header.EthernetMinimumSize:]
	if len(ipBuf) < header.IPv4MinimumSize {
		return nil, ErrTruncatedIPv4
	}
	ip := header.IPv4(ipBuf)

	ihl := int(ip.HeaderLength())
	if ihl < header.IPv4MinimumSize || ihl > len(ipBuf) {
		return nil, ErrBadIHL
	}

	l4 := ipBuf[ihl:]
	key := flow.Key{
		SrcAddr: netip.AddrFrom4(ip.SourceAddress().As4()),
		DstAddr: netip.AddrFrom4(ip.DestinationAddress().As4()),
	}

	switch tcpip.TransportProtocolNumber(ip.Protocol()) {
	case header.TCPProtocolNumber:
		if len(l4) < header.TCPMinimumSize {
			return nil, ErrTruncatedL4
		}
		t := header.TCP(l4)
		key.Protocol = flow.ProtocolTCP
		key.SrcPort = t.SourcePort()
		key.DstPort = t.DestinationPort()
	case header.UDPProtocolNumber:
		if len(l4) < header.UDPMinimumSize {
			return nil, ErrTruncatedL4
		}
		u := header.UDP(l4)
		key.Protocol = flow.ProtocolUDP
		key.SrcPort = u.SourcePort()
		key.DstPort = u.DestinationPort()
	case header.ICMPv4ProtocolNumber:
		if len(l4) < header.ICMPv4MinimumSize {
			return nil, ErrTruncatedL4
		}
		icmp := header.ICMPv4(l4)
		if icmp.Type() != icmpEchoRequest && icmp.Type() != icmpEchoReply {
			return nil, ErrNotEchoICMP
		}
		ident := readIdent(icmp)
		key.Protocol = flow.ProtocolICMP
		key.SrcPort = ident
		key.DstPort = ident
	default:
		return nil, ErrUnsupportedProto
	}

	return &Parsed{Frame: frameBuf, Eth: eth, IP: ip, L4: l4, Key: key}, nil
}

func readIdent(icmp header.ICMPv4) uint16 {
	return uint16(icmp[icmpIdentOffset])<<8 | uint16(icmp[icmpIdentOffset+1])
}

func writeIdent(icmp header.ICMPv4, ident uint16) {
	icmp[icmpIdentOffset] = byte(ident >> 8)
	icmp[icmpIdentOffset+1] = byte(ident)
}

// RewriteOutbound substitutes the source address/port toward the public
// binding and recomputes checksums, per spec.md §4.E.
func (p *Parsed) RewriteOutbound(publicIP netip.Addr, publicPort uint16) {
	p.IP.SetSourceAddress(tcpip.AddrFrom4(publicIP.As4()))
	p.rewritePort(true, publicPort)
	p.fixChecksums()
}

// RewriteInbound substitutes the destination address/port toward the
// original private endpoint and recomputes checksums.
func (p *Parsed) RewriteInbound(privateIP netip.Addr, privatePort uint16) {
	p.IP.SetDestinationAddress(tcpip.AddrFrom4(privateIP.As4()))
	p.rewritePort(false, privatePort)
	p.fixChecksums()
}

func (p *Parsed) rewritePort(outbound bool, port uint16) {
	switch tcpip.TransportProtocolNumber(p.IP.Protocol()) {
	case header.TCPProtocolNumber:
		t := header.TCP(p.L4)
		if outbound {
			t.SetSourcePort(port)
		} else {
			t.SetDestinationPort(port)
		}
	case header.UDPProtocolNumber:
		u := header.UDP(p.L4)
		if outbound {
			u.SetSourcePort(port)
		} else {
			u.SetDestinationPort(port)
		}
	case header.ICMPv4ProtocolNumber:
		writeIdent(header.ICMPv4(p.L4), port)
	}
}

// fixChecksums recomputes the IPv4 header checksum and, for TCP/UDP, the
// pseudo-header+segment checksum, over the now-mutated headers.
func (p *Parsed) fixChecksums() {
	p.IP.SetChecksum(0)
	p.IP.SetChecksum(foldChecksum(sum16(p.IP[:p.IP.HeaderLength()], 0)))

	srcAddr := p.IP.SourceAddress().As4()
	dstAddr := p.IP.DestinationAddress().As4()

	switch tcpip.TransportProtocolNumber(p.IP.Protocol()) {
	case header.TCPProtocolNumber:
		t := header.TCP(p.L4)
		t.SetChecksum(0)
		pseudo := pseudoHeaderSum(srcAddr, dstAddr, uint8(header.TCPProtocolNumber), uint16(len(p.L4)))
		t.SetChecksum(foldChecksum(sum16(p.L4, pseudo)))
	case header.UDPProtocolNumber:
		u := header.UDP(p.L4)
		if u.Checksum() == 0 {
			// A zero checksum in the source packet means "not computed";
			// spec.md §4.E says that choice is preserved, not invented.
			return
		}
		u.SetChecksum(0)
		pseudo := pseudoHeaderSum(srcAddr, dstAddr, uint8(header.UDPProtocolNumber), uint16(len(p.L4)))
		u.SetChecksum(foldChecksum(sum16(p.L4, pseudo)))
	case header.ICMPv4ProtocolNumber:
		icmp := header.ICMPv4(p.L4)
		icmp.SetChecksum(0)
		icmp.SetChecksum(foldChecksum(sum16(p.L4, 0)))
	}
}
