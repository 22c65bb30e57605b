// Package engine implements the Translation Engine (spec.md §4.F): the
// Core Context that owns one core's Flow Table, port pools, and session
// arena, and the outbound/inbound translation algorithms that tie them
// together with the Packet Rewriter and TCP state machine.
package engine

import (
	"hash/fnv"
	"net/netip"
	"time"

	"github.com/flowforge/cgnat/pkg/flow"
	"github.com/flowforge/cgnat/pkg/portpool"
	"github.com/flowforge/cgnat/pkg/session"
	"github.com/flowforge/cgnat/pkg/stats"
)

// Context is spec.md §3's Core Context: everything one worker core owns
// exclusively. Apart from the Counters block, which the Stats Aggregator
// reads with atomic loads, nothing in Context is touched by another
// goroutine, per spec.md §5.
type Context struct {
	CoreID int

	outbound map[flow.Key]uint32 // -> arena index
	inbound  map[flow.Key]uint32

	arena *session.Arena
	pools []*portpool.Pool

	Counters *stats.Block

	CustomerPrefix netip.Prefix

	natCreated uint64 // creation counter driving round-robin pool selection
	now        func() time.Time
}

// Config is the static configuration a Context is built from.
type Config struct {
	CoreID         int
	SessionBudget  int
	PublicIPs      []netip.Addr
	CustomerPrefix netip.Prefix
	Now            func() time.Time // injectable clock, defaults to time.Now
}

// NewContext preallocates the arena and one Pool per public IP, per
// spec.md §3's Core Context and Port Pool lifetimes (bound to worker
// startup/shutdown, never shared across cores).
func NewContext(cfg Config) *Context {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pools := make([]*portpool.Pool, len(cfg.PublicIPs))
	for i, ip := range cfg.PublicIPs {
		pools[i] = portpool.New(ip)
	}
	return &Context{
		CoreID:         cfg.CoreID,
		outbound:       make(map[flow.Key]uint32, cfg.SessionBudget),
		inbound:        make(map[flow.Key]uint32, cfg.SessionBudget),
		arena:          session.NewArena(cfg.SessionBudget),
		pools:          pools,
		Counters:       &stats.Block{},
		CustomerPrefix: cfg.CustomerPrefix,
		now:            now,
	}
}

// IsCustomer reports whether addr falls inside the configured customer
// prefix, the direction discriminator from spec.md §4.H step 3.
func (c *Context) IsCustomer(addr netip.Addr) bool {
	return c.CustomerPrefix.Contains(addr)
}

// customerID is the "stable hash of the private source address" spec.md
// §3 calls for, used by downstream tooling to attribute usage.
func customerID(addr netip.Addr) uint64 {
	h := fnv.New64a()
	a := addr.As4()
	h.Write(a[:])
	return h.Sum64()
}

// ActiveSessions returns the number of live entries (outbound index
// size == inbound index size is an invariant createOutboundBinding and
// Sweep maintain by inserting and deleting both slots together).
func (c *Context) ActiveSessions() int {
	return len(c.outbound)
}

// ArenaFree exposes the arena's free count, used by property tests (P5).
func (c *Context) ArenaFree() int { return c.arena.Free() }

// PoolPopCounts exposes each pool's bitmap popcount, used by property
// tests (P4, P5).
func (c *Context) PoolPopCounts() []uint {
	out := make([]uint, len(c.pools))
	for i, p := range c.pools {
		out[i] = p.PopCount()
	}
	return out
}
