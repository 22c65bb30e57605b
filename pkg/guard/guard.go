//go:build linux

// Package guard implements the Kernel Coexistence Guard (spec.md §4.L):
// the dataplane owns its public IPv4 addresses exclusively over a raw
// AF_PACKET queue, so the host kernel's own IP stack must never answer
// ARP or originate traffic on their behalf — that would race the
// Translation Engine's rewritten packets and corrupt sessions. This
// adapts matchlock's nftables-based rule installer from VM port
// forwarding to the narrower job of silencing the kernel on those
// addresses, the same way nftables.Conn/Table/Chain/Rule are used there.
package guard

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"
)

const tableName = "cgnat_guard"

// Guard installs and tears down the nftables rules that keep the kernel
// out of the way of the public IP block the dataplane owns on iface.
type Guard struct {
	iface     string
	publicIPs []netip.Addr

	conn  *nftables.Conn
	table *nftables.Table
}

// New returns a Guard for the given uplink interface and the public IPv4
// addresses the dataplane's port pools allocate out of.
func New(iface string, publicIPs []netip.Addr) *Guard {
	return &Guard{iface: iface, publicIPs: publicIPs}
}

// Setup installs one output-hook drop rule per public IP, so any packet
// the kernel tries to originate with that IPv4 source address — an ICMP
// destination-unreachable, a RST from a kernel socket nothing asked for —
// is discarded before it reaches the wire and contradicts what the
// Translation Engine just sent. The rules live in an IPv4-family table,
// so ARP is not filtered.
func (g *Guard) Setup() error {
	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNFTablesConn, err)
	}
	g.conn = conn

	g.table = conn.AddTable(&nftables.Table{
		Family: nftables.TableFamilyIPv4,
		Name:   tableName + "_" + g.iface,
	})

	outChain := conn.AddChain(&nftables.Chain{
		Name:     "output",
		Table:    g.table,
		Type:     nftables.ChainTypeFilter,
		Hooknum:  nftables.ChainHookOutput,
		Priority: nftables.ChainPriorityFilter,
	})

	for _, ip := range g.publicIPs {
		conn.AddRule(&nftables.Rule{
			Table: g.table,
			Chain: outChain,
			Exprs: g.buildDropFromSourceRule(ip),
		})
	}

	if err := conn.Flush(); err != nil {
		return fmt.Errorf("%w: %s", ErrNFTablesApply, err)
	}
	return nil
}

func (g *Guard) buildDropFromSourceRule(ip netip.Addr) []expr.Any {
	a4 := ip.As4()
	return []expr.Any{
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       12, // IPv4 source address
			Len:          4,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     a4[:],
		},
		&expr.Verdict{Kind: expr.VerdictDrop},
	}
}

// Cleanup removes the guard's table. Safe to call even if Setup never
// ran or already failed partway through.
func (g *Guard) Cleanup() error {
	if g.conn == nil {
		conn, err := nftables.New()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrNFTablesConn, err)
		}
		g.conn = conn
	}

	tables, err := g.conn.ListTables()
	if err != nil {
		return err
	}

	name := tableName + "_" + g.iface
	for _, t := range tables {
		if t.Name == name && t.Family == nftables.TableFamilyIPv4 {
			g.conn.DelTable(t)
			break
		}
	}
	return g.conn.Flush()
}

// InterfaceExists is used by config validation to fail fast on a typo'd
// uplink name before the Worker Loop ever opens a queue on it.
func InterfaceExists(name string) error {
	if _, err := net.InterfaceByName(name); err != nil {
		return fmt.Errorf("%w: %s", ErrInterface, err)
	}
	return nil
}
