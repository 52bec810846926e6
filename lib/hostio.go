package lib

import (
	"fmt"
	"net"
)

// EtherTypeIPv6 is the Ethernet frame type for IPv6, used when tagging
// synthesized replies for transmission.
const EtherTypeIPv6 = 0x86DD

// SynthesizedFrame is a fully formed L2+L3+L4 frame produced by the proxy
// NDP responder or the Time Exceeded generator, ready to hand to the host's
// send-queue entry point. It carries the link-layer framing so a
// transmitter doesn't need to re-derive it.
type SynthesizedFrame struct {
	DstMAC    net.HardwareAddr
	SrcMAC    net.HardwareAddr
	EtherType uint16
	// Payload is the IPv6 packet (header + body), already carrying the tag
	// that makes it bypass translation on its way out.
	Payload []byte
}

// InterfaceDirectory is the host-stack collaborator that knows about the
// configured interfaces: their link-layer address and their eligible global
// IPv6 source address. Routing, forwarding, and interface enumeration stay
// with the host; this is the minimal surface the translation engine needs.
type InterfaceDirectory interface {
	// GlobalAddress returns the first configured address on iface that is
	// global scope, not tentative, not deprecated, and not link-local. It
	// reports false if no such address exists.
	GlobalAddress(iface string) (Address, bool)
	// MAC returns the link-layer address of iface.
	MAC(iface string) (net.HardwareAddr, bool)
}

// FrameTransmitter hands a fully formed frame to the host's transmit path.
// Failures are logged by the caller, not retried.
type FrameTransmitter interface {
	Transmit(frame SynthesizedFrame) error
}

// OSInterfaceDirectory is a reference InterfaceDirectory backed by the
// standard library's net package.
//
// Go's net package does not expose the kernel's tentative/deprecated
// address flags (those require netlink, out of scope for this reference
// implementation); this directory approximates the filter as "global
// unicast, not link-local", which is the best a portable
// net.Interface.Addrs() call can do.
type OSInterfaceDirectory struct{}

// GlobalAddress implements InterfaceDirectory.
func (OSInterfaceDirectory) GlobalAddress(iface string) (Address, bool) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return Address{}, false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return Address{}, false
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipn.IP
		if ip.To4() != nil {
			continue
		}
		if !ip.IsGlobalUnicast() || ip.IsLinkLocalUnicast() {
			continue
		}
		var a16 [16]byte
		copy(a16[:], ip.To16())
		return Address(a16), true
	}
	return Address{}, false
}

// MAC implements InterfaceDirectory.
func (OSInterfaceDirectory) MAC(iface string) (net.HardwareAddr, bool) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil || len(ifi.HardwareAddr) == 0 {
		return nil, false
	}
	return ifi.HardwareAddr, true
}

// StaticInterfaceDirectory is an in-process InterfaceDirectory for tests and
// for environments (like cmd/nptv6mon) where interfaces are
// configured rather than discovered from the OS.
type StaticInterfaceDirectory struct {
	Globals map[string]Address
	MACs    map[string]net.HardwareAddr
}

// NewStaticInterfaceDirectory returns an empty StaticInterfaceDirectory.
func NewStaticInterfaceDirectory() *StaticInterfaceDirectory {
	return &StaticInterfaceDirectory{
		Globals: make(map[string]Address),
		MACs:    make(map[string]net.HardwareAddr),
	}
}

// Set registers iface's global address and MAC.
func (s *StaticInterfaceDirectory) Set(iface string, global Address, mac net.HardwareAddr) {
	s.Globals[iface] = global
	s.MACs[iface] = mac
}

// GlobalAddress implements InterfaceDirectory.
func (s *StaticInterfaceDirectory) GlobalAddress(iface string) (Address, bool) {
	a, ok := s.Globals[iface]
	return a, ok
}

// MAC implements InterfaceDirectory.
func (s *StaticInterfaceDirectory) MAC(iface string) (net.HardwareAddr, bool) {
	m, ok := s.MACs[iface]
	return m, ok
}

// RecordingTransmitter is a FrameTransmitter that records every frame handed
// to it, for use in tests and by cmd/nptv6mon, which has no real transmit
// path.
type RecordingTransmitter struct {
	Frames []SynthesizedFrame
}

// Transmit implements FrameTransmitter.
func (r *RecordingTransmitter) Transmit(frame SynthesizedFrame) error {
	r.Frames = append(r.Frames, frame)
	return nil
}

// String renders a SynthesizedFrame for logging/display purposes.
func (f SynthesizedFrame) String() string {
	return fmt.Sprintf("%s -> %s ethertype=0x%04x len=%d", f.SrcMAC, f.DstMAC, f.EtherType, len(f.Payload))
}
