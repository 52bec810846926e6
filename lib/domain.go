package lib

import (
	"log/slog"
	"net"
)

// Verdict is the outcome the translation engine hands back to the host
// network stack for a single packet pass.
type Verdict int

const (
	// Accept lets the packet continue through the host's normal path,
	// translated or not.
	Accept Verdict = iota
	// Drop discards the packet; the engine has either consumed it (e.g. to
	// answer it with a synthesized reply) or rejected it outright.
	Drop
)

func (v Verdict) String() string {
	if v == Drop {
		return "drop"
	}
	return "accept"
}

// Packet is the in-place mutable view the translation engine operates on
// for the duration of a single pass: the engine borrows the buffer, no
// aliasing, no ownership transfer.
type Packet struct {
	// Data holds the full packet starting at the IPv6 header.
	Data []byte
	// Iface is the ingress interface name.
	Iface string
	// SrcMAC is the observed link-layer source address, when known; it is
	// used as the destination MAC of any synthesized reply.
	SrcMAC net.HardwareAddr
	// Tagged is the "already translated in this pass" marker. The engine
	// refuses to re-enter a packet that already carries it.
	Tagged bool
}

// Domain is the explicit per-isolation-domain handle: a MappingTable plus
// the domain's interface classification and shared engine state, passed
// explicitly to every engine invocation. There is no process-wide state.
type Domain struct {
	Name     string
	Table    *MappingTable
	Stats    *EngineStats
	Logger   *slog.Logger
	Hosts    InterfaceDirectory
	Transmit FrameTransmitter
}

// NewDomain creates a Domain for a newly appeared isolation domain. hosts
// and transmit may be nil; a nil InterfaceDirectory makes the hop-limit
// guard and Time Exceeded path act as if no global address were configured
// (ErrNoSrcAddr), and a nil FrameTransmitter makes synthesized replies be
// built and counted but discarded; they are not handed back to the caller.
func NewDomain(name string, hosts InterfaceDirectory, transmit FrameTransmitter, logger *slog.Logger) *Domain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Domain{
		Name:     name,
		Table:    NewMappingTable(),
		Stats:    NewEngineStats(),
		Logger:   logger.With("domain", name),
		Hosts:    hosts,
		Transmit: transmit,
	}
}

// IsExternal reports whether iface is external for this domain: named by
// at least one Mapping. All other interfaces are internal.
func (d *Domain) IsExternal(iface string) bool {
	return d.Table.OwnsInterface(iface)
}
