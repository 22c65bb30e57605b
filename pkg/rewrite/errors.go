package rewrite

import "errors"

var (
	ErrTruncatedEthernet = errors.New("truncated ethernet header")
	ErrNotIPv4           = errors.New("not an IPv4 frame")
	ErrTruncatedIPv4     = errors.New("truncated IPv4 header")
	ErrBadIHL            = errors.New("invalid IPv4 header length")
	ErrTruncatedL4       = errors.New("truncated L4 header")
	ErrUnsupportedProto  = errors.New("unsupported L4 protocol")
	ErrNotEchoICMP       = errors.New("unsupported ICMP message type")
)
