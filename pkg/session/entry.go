// Package session implements the Session Entry Arena (spec.md §4.C) and
// the TCP-aware state machine (§4.D) that drives a session's idle timeout.
package session

import (
	"net/netip"
	"sync/atomic"
	"time"

	"github.com/flowforge/cgnat/pkg/flow"
)

// Flag bits set on a Session Entry. FlagCreating and FlagPendingExpire are
// named directly by spec.md §3; FlagFinCustomer/FlagFinRemote are this
// implementation's bookkeeping for the "both directions sent FIN" rule in
// §4.D, never observed outside this package.
const (
	FlagCreating uint32 = 1 << iota
	FlagPendingExpire
	FlagFinCustomer
	FlagFinRemote
)

// Entry is one translation binding: spec.md §3's Session Entry.
type Entry struct {
	PrivateFlow flow.Key
	PublicIP    netip.Addr
	PublicPort  uint16
	State       State
	LastActive  int64 // unix nanoseconds, monotonic within a process run
	Packets     uint64
	Bytes       uint64
	CustomerID  uint64
	Flags       uint32

	// index is this entry's slot in the owning Arena, used by the flow
	// table to reference it without a pointer cycle (spec.md §9).
	index uint32
	inUse bool
}

// Touch refreshes LastActive and the accounting counters. Per invariant
// I4, LastActive is monotonically non-decreasing: Touch only moves it
// forward, even if called with a stale 'now' by mistake.
func (e *Entry) Touch(now time.Time, payloadBytes int) {
	ns := now.UnixNano()
	if ns > e.LastActive {
		atomic.StoreInt64(&e.LastActive, ns)
	}
	e.Packets++
	e.Bytes += uint64(payloadBytes)
}

// IdleSince returns how long it has been since LastActive, relative to now.
func (e *Entry) IdleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, atomic.LoadInt64(&e.LastActive)))
}

// Index returns the entry's arena slot.
func (e *Entry) Index() uint32 { return e.index }

// reset zeroes an entry for reuse, per spec.md §4.C ("released entries are
// zeroed before reuse").
func (e *Entry) reset() {
	idx := e.index
	*e = Entry{index: idx}
}
