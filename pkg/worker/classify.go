package worker

import "net/netip"

const (
	ethHeaderLen = 14
	ipSrcOffset  = 12
)

// peekSourceAddr reads the IPv4 source address directly out of the frame
// bytes, cheaper than a full rewrite.Parse just to pick a direction.
// Frames too short to hold a source address fall through to
// TranslateInbound; either engine path runs the real parse and returns
// ErrInvalidPacket for a malformed frame.
func peekSourceAddr(frame []byte) (netip.Addr, bool) {
	if len(frame) < ethHeaderLen+ipSrcOffset+4 {
		return netip.Addr{}, false
	}
	ip := frame[ethHeaderLen:]
	var b [4]byte
	copy(b[:], ip[ipSrcOffset:ipSrcOffset+4])
	return netip.AddrFrom4(b), true
}
