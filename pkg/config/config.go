// Package config implements the Config Provider (spec.md §4.J): a YAML
// file loaded via spf13/viper, overridable by the spf13/cobra flags
// spec.md §6 names (-p, -P, -q), plus the driver-specific initialization
// prefix that precedes a bare "--" on the command line.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowforge/cgnat/internal/errx"
)

// Telemetry holds the two HTTP sink toggles/addresses spec.md §6 calls
// for.
type Telemetry struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	PrometheusAddr    string `mapstructure:"prometheus_addr"`
	JSONEnabled       bool   `mapstructure:"json_enabled"`
	JSONAddr          string `mapstructure:"json_addr"`
}

// Config is the typed contract spec.md §6's "Config provider contract"
// describes: port id, queue count, worker-core ids, public IPv4 list,
// customer subnet, protocol-timeout overrides, per-customer session cap,
// and the telemetry sink settings.
type Config struct {
	PortMask              uint32        `mapstructure:"port_mask"`
	Promiscuous           bool          `mapstructure:"promiscuous"`
	QueueCount            int           `mapstructure:"queue_count"`
	WorkerCores           []int         `mapstructure:"worker_cores"`
	Uplink                string        `mapstructure:"uplink"`
	PublicIPs             []string      `mapstructure:"public_ips"`
	CustomerCIDR          string        `mapstructure:"customer_cidr"`
	SessionBudget         int           `mapstructure:"session_budget"`
	MaxPerCustomer        int           `mapstructure:"max_sessions_per_customer"`
	TimeoutTCPEstablished time.Duration `mapstructure:"timeout_tcp_established"`
	Telemetry             Telemetry     `mapstructure:"telemetry"`
}

// PortID returns the index of the first set bit in PortMask, per spec.md
// §6's "-p <port-mask>: bitmask selecting NIC ports (first set bit is
// used)".
func (c Config) PortID() (int, error) {
	for i := 0; i < 32; i++ {
		if c.PortMask&(1<<uint(i)) != 0 {
			return i, nil
		}
	}
	return 0, errx.With(ErrNoPortSelected, "")
}

// ParsedPublicIPs converts PublicIPs to netip.Addr, validating spec.md
// §6's "≤ 10 by default" bound.
func (c Config) ParsedPublicIPs() ([]netip.Addr, error) {
	if len(c.PublicIPs) == 0 {
		return nil, errx.With(ErrNoPublicIPs, "")
	}
	if len(c.PublicIPs) > 10 {
		return nil, errx.With(ErrTooManyPublicIPs, fmt.Sprintf(": got %d, max 10", len(c.PublicIPs)))
	}
	out := make([]netip.Addr, len(c.PublicIPs))
	for i, s := range c.PublicIPs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, errx.Wrap(ErrInvalidPublicIP, err)
		}
		out[i] = addr
	}
	return out, nil
}

// CustomerPrefix parses CustomerCIDR.
func (c Config) CustomerPrefix() (netip.Prefix, error) {
	p, err := netip.ParsePrefix(c.CustomerCIDR)
	if err != nil {
		return netip.Prefix{}, errx.Wrap(ErrInvalidCustomerCIDR, err)
	}
	return p, nil
}

// Load reads path as YAML into a fresh viper instance, applies defaults,
// and unmarshals into a Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("promiscuous", true)
	v.SetDefault("queue_count", 1)
	v.SetDefault("session_budget", 1_000_000)
	v.SetDefault("telemetry.prometheus_addr", ":9100")
	v.SetDefault("telemetry.json_addr", ":9101")

	if err := v.ReadInConfig(); err != nil {
		return nil, errx.Wrap(ErrConfigRead, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errx.Wrap(ErrConfigParse, err)
	}
	return &cfg, nil
}

// BindFlags wires spec.md §6's -p/-P/-q cobra flags onto cmd and binds
// them into v so a flag value always wins over the file, matching
// matchlock's viper.BindPFlag convention (cmd/matchlock/cmd_list.go).
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().Uint32P("port-mask", "p", 0, "bitmask selecting the NIC port (first set bit is used)")
	cmd.Flags().BoolP("promiscuous", "P", true, "enable promiscuous mode")
	cmd.Flags().IntP("queues", "q", 1, "number of RX/TX queues (and worker cores)")

	v.BindPFlag("port_mask", cmd.Flags().Lookup("port-mask"))
	v.BindPFlag("promiscuous", cmd.Flags().Lookup("promiscuous"))
	v.BindPFlag("queue_count", cmd.Flags().Lookup("queues"))
}

// SplitDriverPrefix separates a driver-specific initialization prefix
// from the arguments cobra should parse, per spec.md §6: everything
// before the first bare "--" is the prefix, returned untouched and never
// parsed here; everything after is this application's own flags.
func SplitDriverPrefix(args []string) (prefix, rest []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return nil, args
}
