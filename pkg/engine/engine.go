package engine

import (
	"github.com/flowforge/cgnat/internal/errx"
	"github.com/flowforge/cgnat/pkg/flow"
	"github.com/flowforge/cgnat/pkg/portpool"
	"github.com/flowforge/cgnat/pkg/rewrite"
	"github.com/flowforge/cgnat/pkg/session"
)

// TranslateOutbound implements spec.md §4.F's outbound path: extract,
// look up or create a binding, rewrite toward the public address, and
// on a lookup hit fold the fast-path latency sample into the core's
// counters. The frame
// is rewritten in place; callers submit it for transmission on success.
func (c *Context) TranslateOutbound(frameBuf []byte) error {
	start := c.now()

	p, err := rewrite.Parse(frameBuf)
	if err != nil {
		c.Counters.ErrInvalid.Add(1)
		c.Counters.RecordDrop()
		return errx.Wrap(ErrInvalidPacket, err)
	}
	if !c.IsCustomer(p.Key.SrcAddr) {
		c.Counters.ErrInvalid.Add(1)
		c.Counters.RecordDrop()
		return errx.With(ErrInvalidPacket, ": source not in customer prefix")
	}

	idx, hit := c.outbound[p.Key]
	var entry *session.Entry

	if hit {
		entry = c.arena.At(idx)
		c.touchAndAdvance(entry, p, true)
		c.Counters.LookupHit.Add(1)
	} else {
		entry, err = c.createOutboundBinding(p)
		if err != nil {
			return err
		}
	}

	p.RewriteOutbound(entry.PublicIP, entry.PublicPort)
	if hit {
		// A miss also pays for arena acquisition and port allocation,
		// which is not fast-path work, so only hits are sampled.
		c.Counters.RecordLatency(uint64(c.now().Sub(start)))
	}
	return nil
}

// TranslateInbound implements spec.md §4.F's inbound path: no unsolicited
// inbound traffic is ever accepted (no hairpinning, no port forwarding).
func (c *Context) TranslateInbound(frameBuf []byte) error {
	start := c.now()

	p, err := rewrite.Parse(frameBuf)
	if err != nil {
		c.Counters.ErrInvalid.Add(1)
		c.Counters.RecordDrop()
		return errx.Wrap(ErrInvalidPacket, err)
	}

	idx, hit := c.inbound[p.Key]
	if !hit {
		c.Counters.LookupMiss.Add(1)
		c.Counters.RecordDrop()
		return ErrLookupMiss
	}

	entry := c.arena.At(idx)
	c.touchAndAdvance(entry, p, false)
	c.Counters.LookupHit.Add(1)

	p.RewriteInbound(entry.PrivateFlow.SrcAddr, entry.PrivateFlow.SrcPort)
	c.Counters.RecordLatency(uint64(c.now().Sub(start)))
	return nil
}

func (c *Context) touchAndAdvance(entry *session.Entry, p *rewrite.Parsed, fromCustomer bool) {
	entry.Touch(c.now(), len(p.Frame))
	if entry.PrivateFlow.Protocol == flow.ProtocolTCP {
		session.AdvanceTCP(entry, tcpFlagsOf(p.L4), fromCustomer)
	}
}

// createOutboundBinding implements the miss branch of spec.md §4.F step 4:
// acquire an arena entry, round-robin a public IP/port, and insert both
// index slots, rolling everything back on any failure.
func (c *Context) createOutboundBinding(p *rewrite.Parsed) (*session.Entry, error) {
	entry := c.arena.Acquire()
	if entry == nil {
		c.Counters.ErrNoMemory.Add(1)
		c.Counters.RecordDrop()
		return nil, ErrNoMemory
	}

	poolIdx, publicPort, ok := c.allocatePort()
	if !ok {
		c.arena.Release(entry)
		c.Counters.ErrNoPorts.Add(1)
		c.Counters.PortAllocFail.Add(1)
		c.Counters.RecordDrop()
		return nil, ErrNoPorts
	}
	publicIP := c.pools[poolIdx].IP()

	entry.PrivateFlow = p.Key
	entry.PublicIP = publicIP
	entry.PublicPort = publicPort
	entry.State = initialState(p.Key.Protocol)
	entry.CustomerID = customerID(p.Key.SrcAddr)
	entry.Touch(c.now(), len(p.Frame))

	reverseKey := flow.Key{
		SrcAddr:  p.Key.DstAddr,
		DstAddr:  publicIP,
		SrcPort:  p.Key.DstPort,
		DstPort:  publicPort,
		Protocol: p.Key.Protocol,
	}

	if _, exists := c.inbound[reverseKey]; exists {
		c.pools[poolIdx].Free(publicPort)
		c.arena.Release(entry)
		c.Counters.RecordDrop()
		return nil, ErrCollision
	}

	c.outbound[p.Key] = entry.Index()
	c.inbound[reverseKey] = entry.Index()
	c.natCreated++
	c.Counters.NATCreated.Add(1)

	return entry, nil
}

// allocatePort scans the pool array starting at natCreated mod
// num_public_ips, per spec.md §4.F's round-robin tie-break, and returns
// the winning pool's index plus the port it allocated.
func (c *Context) allocatePort() (poolIdx int, port uint16, ok bool) {
	n := len(c.pools)
	if n == 0 {
		return 0, 0, false
	}
	start := int(c.natCreated % uint64(n))
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if p := c.pools[idx].Alloc(); p != portpool.NoPort {
			return idx, p, true
		}
	}
	return 0, 0, false
}

func initialState(proto flow.Protocol) session.State {
	switch proto {
	case flow.ProtocolTCP:
		return session.StateSynSent
	case flow.ProtocolUDP:
		return session.StateUDPActive
	default:
		return session.StateICMPActive
	}
}

func tcpFlagsOf(l4 []byte) session.TCPFlags {
	if len(l4) < 14 {
		return session.TCPFlags{}
	}
	f := l4[13]
	return session.TCPFlags{
		SYN: f&0x02 != 0,
		ACK: f&0x10 != 0,
		FIN: f&0x01 != 0,
		RST: f&0x04 != 0,
	}
}
