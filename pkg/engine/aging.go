package engine

import (
	"net/netip"

	"github.com/flowforge/cgnat/pkg/flow"
)

// Sweep implements the Aging Subsystem (spec.md §4.G): a full scan of the
// outbound index, evicting every entry whose current state's timeout has
// elapsed since its last activity. Teardown order matches spec.md §4.G
// exactly — inbound slot, then outbound slot, then the port, then the
// arena entry — so a concurrent lookup can never observe a half-torn-down
// binding.
//
// Sweep is the only aging strategy spec.md §9 resolves on: no separate
// expiry heap, just a periodic linear scan driven by the Worker Loop.
func (c *Context) Sweep() int {
	now := c.now()
	expired := 0

	for key, idx := range c.outbound {
		entry := c.arena.At(idx)
		if entry.IdleSince(now) < entry.State.Timeout() {
			continue
		}

		reverseKey := flow.Key{
			SrcAddr:  entry.PrivateFlow.DstAddr,
			DstAddr:  entry.PublicIP,
			SrcPort:  entry.PrivateFlow.DstPort,
			DstPort:  entry.PublicPort,
			Protocol: entry.PrivateFlow.Protocol,
		}
		delete(c.inbound, reverseKey)
		delete(c.outbound, key)
		c.freePublicPort(entry.PublicIP, entry.PublicPort)
		c.arena.Release(entry)

		c.Counters.NATExpired.Add(1)
		expired++
	}

	return expired
}

func (c *Context) freePublicPort(ip netip.Addr, port uint16) {
	for _, p := range c.pools {
		if p.IP() == ip {
			p.Free(port)
			return
		}
	}
}
