//go:build linux

// Package afpacket implements fabric.Queue over a raw AF_PACKET socket
// bound to one interface, the dataplane's actual rx/tx path (spec.md
// §4.K). It uses golang.org/x/sys/unix the way matchlock's own syscall
// code does, rather than the older stdlib syscall package.
package afpacket

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/flowforge/cgnat/pkg/fabric"
)

// Queue is a fabric.Queue backed by an AF_PACKET/SOCK_RAW socket bound
// to a single interface, receiving every ethertype (ETH_P_ALL).
type Queue struct {
	fd      int
	ifindex int
}

func htons(v uint16) uint16 {
	return (v << 8) | (v >> 8)
}

// Open binds a raw socket to ifaceName. Requires CAP_NET_RAW.
func Open(ifaceName string) (*Queue, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("afpacket: resolve interface %s: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("afpacket: socket: %w", err)
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("afpacket: bind to %s: %w", ifaceName, err)
	}

	// 200ms recv timeout so RxBurst can observe context cancellation
	// without blocking forever on an idle link.
	tv := unix.Timeval{Sec: 0, Usec: 200_000}
	_ = unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv)

	return &Queue{fd: fd, ifindex: iface.Index}, nil
}

// RxBurst reads up to max frames, allocating a fresh backing array per
// frame so the Translation Engine can hold on to one past the call.
func (q *Queue) RxBurst(ctx context.Context, max int) ([]fabric.Frame, error) {
	out := make([]fabric.Frame, 0, max)
	for len(out) < max {
		select {
		case <-ctx.Done():
			if len(out) > 0 {
				return out, nil
			}
			return nil, ctx.Err()
		default:
		}

		raw := make([]byte, 65536)
		m, _, err := unix.Recvfrom(q.fd, raw, 0)
		if err != nil {
			if len(out) > 0 {
				return out, nil
			}
			if isTimeout(err) {
				continue
			}
			return nil, fmt.Errorf("afpacket: recvfrom: %w", err)
		}
		out = append(out, fabric.Frame{Data: raw[:m]})
	}
	return out, nil
}

// TxBurst writes each frame with a single sendto, returning at the first
// failed send.
func (q *Queue) TxBurst(frames []fabric.Frame) (int, error) {
	addr := &unix.SockaddrLinklayer{Ifindex: q.ifindex}
	for i, f := range frames {
		if err := unix.Sendto(q.fd, f.Data, 0, addr); err != nil {
			return i, fmt.Errorf("afpacket: sendto: %w", err)
		}
	}
	return len(frames), nil
}

// Close releases the underlying file descriptor.
func (q *Queue) Close() error {
	return unix.Close(q.fd)
}

func isTimeout(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
