package lib

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// SnifferConfig configures a Sniffer. A nil Logger defaults to
// slog.Default(); Stats is optional and, when set, routes observed traffic into a PeerTracker instead of
// logging each message individually.
type SnifferConfig struct {
	ListenAddr string // e.g. "::"
	Interface  string // optional; best-effort restriction by ifindex
	Logger     *slog.Logger
	Stats      *PeerTracker
}

// Sniffer is a raw-socket diagnostic listener independent of the
// translation engine: it observes Neighbor Discovery and Multicast
// Listener Discovery traffic on the wire for operator visibility (the
// "what is actually happening out there" complement to a Domain's
// EngineStats, which only sees packets the engine itself processes).
//
// The listener is narrowed to message-type classification, source tracking,
// link-layer address extraction, and MLD group membership; router-
// advertisement option detail is not needed by anything in the translation
// engine's scope.
type Sniffer struct {
	cfg SnifferConfig
}

// NewSniffer returns a Sniffer. A zero-value ListenAddr defaults to "::".
func NewSniffer(cfg SnifferConfig) *Sniffer {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "::"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Sniffer{cfg: cfg}
}

// Run opens an ICMPv6 socket and observes NDP/MLD traffic until ctx is
// canceled. It requires CAP_NET_RAW.
func (s *Sniffer) Run(ctx context.Context) error {
	pc, err := icmp.ListenPacket("ip6:ipv6-icmp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen icmpv6: %w", err)
	}
	defer pc.Close()

	p := pc.IPv6PacketConn()
	if p == nil {
		return fmt.Errorf("pc.IPv6PacketConn() returned nil (unexpected for ip6:ipv6-icmp)")
	}
	if err := p.SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagInterface|ipv6.FlagDst, true); err != nil {
		s.cfg.Logger.Warn("failed to enable ipv6 control messages; continuing", "err", err)
	}

	var wantIfIndex int
	if s.cfg.Interface != "" {
		ifi, e := net.InterfaceByName(s.cfg.Interface)
		if e != nil {
			s.cfg.Logger.Warn("interface not found; continuing without restriction", "iface", s.cfg.Interface, "err", e)
		} else {
			wantIfIndex = ifi.Index
		}
	}

	buf := make([]byte, 64*1024)
	const readTimeout = 800 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_ = pc.SetReadDeadline(time.Now().Add(readTimeout))

		n, cm, src, err := p.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		srcIP := sourceIP(src)

		if wantIfIndex != 0 {
			if cm == nil || cm.IfIndex != wantIfIndex {
				continue
			}
		}

		msg, perr := icmp.ParseMessage(ipv6.ICMPTypeEchoReply.Protocol(), buf[:n])
		if perr != nil {
			s.cfg.Logger.Warn("failed to parse icmpv6", "src", srcIP, "len", n, "err", perr)
			continue
		}

		ndpKind := classifyICMPv6(msg.Type)
		if ndpKind == "" {
			continue
		}

		opts := ndpOptions(buf[:n])
		var mac net.HardwareAddr
		switch ndpKind {
		case "router_solicitation", "router_advertisement", "neighbor_solicitation":
			mac = linkLayerAddr(opts, ndOptionSourceLinkLayer)
		case "neighbor_advertisement":
			mac = linkLayerAddr(opts, ndOptionTargetLinkLayer)
		}

		var groups []string
		if ndpKind == "mld_report" || ndpKind == "mld_done" {
			groups = mldGroups(buf[:n])
		}

		if s.cfg.Stats != nil {
			s.cfg.Stats.Observe(srcIP, ndpKind)
			if mac != nil {
				s.cfg.Stats.ObserveMAC(srcIP, mac.String())
			}
			for _, group := range groups {
				s.cfg.Stats.ObserveGroup(srcIP, group)
			}
			continue
		}

		fields := []any{"type", msg.Type, "code", msg.Code, "ndp", ndpKind, "src", srcIP, "len", n}
		if mac != nil {
			fields = append(fields, "mac", mac.String())
		}
		if len(groups) > 0 {
			fields = append(fields, "groups", groups)
		}
		if cm != nil {
			if cm.HopLimit != 0 {
				fields = append(fields, "hoplimit", cm.HopLimit)
			}
			if cm.IfIndex != 0 {
				if ifi, e := net.InterfaceByIndex(cm.IfIndex); e == nil {
					fields = append(fields, "iface", ifi.Name)
				}
			}
		}
		s.cfg.Logger.Info("ndp event", fields...)
	}
}

// sourceIP renders the sender of a raw ICMPv6 read as a PeerTracker key. A
// raw socket reports *net.IPAddr; anything else falls back to its String.
func sourceIP(a net.Addr) string {
	if a == nil {
		return ""
	}
	if ip, ok := a.(*net.IPAddr); ok {
		return ip.IP.String()
	}
	return a.String()
}

// ndpKindByType names the NDP and MLD message types the sniffer tracks;
// anything absent is ignored. Both MLDv1 and MLDv2 reports count as
// "mld_report" so a peer's report rate is one number regardless of which
// protocol revision it speaks.
var ndpKindByType = map[ipv6.ICMPType]string{
	ipv6.ICMPTypeRouterSolicitation:              "router_solicitation",
	ipv6.ICMPTypeRouterAdvertisement:             "router_advertisement",
	ipv6.ICMPTypeNeighborSolicitation:            "neighbor_solicitation",
	ipv6.ICMPTypeNeighborAdvertisement:           "neighbor_advertisement",
	ipv6.ICMPTypeDuplicateAddressRequest:         "duplicate_address_request",
	ipv6.ICMPTypeDuplicateAddressConfirmation:    "duplicate_address_confirmation",
	ipv6.ICMPTypeRedirect:                        "redirect",
	ipv6.ICMPTypeMulticastListenerQuery:          "mld_query",
	ipv6.ICMPTypeMulticastListenerReport:         "mld_report",
	ipv6.ICMPTypeMulticastListenerDone:           "mld_done",
	ipv6.ICMPTypeVersion2MulticastListenerReport: "mld_report",
}

// classifyICMPv6 maps an ICMPv6 message type to the sniffer's kind string,
// or "" for any type it doesn't track.
func classifyICMPv6(t icmp.Type) string {
	it, ok := t.(ipv6.ICMPType)
	if !ok {
		return ""
	}
	return ndpKindByType[it]
}

// ndpOptionsStart gives the offset of the options block within each
// option-bearing NDP message type: the 4-byte ICMPv6 header plus the
// type-specific fixed fields.
var ndpOptionsStart = map[byte]int{
	133: 8,  // RS: reserved
	134: 16, // RA: hop limit, flags, lifetimes
	135: 24, // NS: reserved + target
	136: 24, // NA: flags + target
	137: 40, // Redirect: reserved + target + destination
}

// ndpOption is one TLV from an NDP message's options block, with the
// type/length bytes stripped off data.
type ndpOption struct {
	typ  byte
	data []byte
}

// ndpOptions walks msg's TLV options block and returns every well-formed
// option. A zero-length or truncated option cuts the walk short rather
// than erroring: the sniffer takes what it can read. Returns nil for
// message types that carry no options block.
func ndpOptions(msg []byte) []ndpOption {
	if len(msg) == 0 {
		return nil
	}
	off, ok := ndpOptionsStart[msg[0]]
	if !ok {
		return nil
	}
	var opts []ndpOption
	for off+2 <= len(msg) {
		length := int(msg[off+1]) * 8 // length field is in 8-byte units
		if length == 0 || off+length > len(msg) {
			break
		}
		opts = append(opts, ndpOption{typ: msg[off], data: msg[off+2 : off+length]})
		off += length
	}
	return opts
}

// linkLayerAddr returns the MAC carried by the first option of the wanted
// type (Source or Target Link-Layer Address), or nil if absent.
func linkLayerAddr(opts []ndpOption, want byte) net.HardwareAddr {
	for _, opt := range opts {
		if opt.typ == want && len(opt.data) >= 6 {
			return net.HardwareAddr(opt.data[:6])
		}
	}
	return nil
}

// mldGroups extracts the multicast group addresses named by an MLD
// message: the single group of an MLDv1 Report/Done (types 131/132), or
// every record's group in an MLDv2 Report (type 143). Unspecified groups
// and malformed trailing records are skipped.
func mldGroups(msg []byte) []string {
	if len(msg) < ICMPv6HeaderLen {
		return nil
	}
	switch msg[0] {
	case 131, 132:
		// header + max-response-delay + reserved, then the group address
		if len(msg) < 24 {
			return nil
		}
		group := netip.AddrFrom16([16]byte(msg[8:24]))
		if group.IsUnspecified() {
			return nil
		}
		return []string{group.String()}

	case 143:
		// header + reserved + record count, then the records
		if len(msg) < 8 {
			return nil
		}
		records := int(binary.BigEndian.Uint16(msg[6:8]))
		var groups []string
		off := 8
		for i := 0; i < records && off+20 <= len(msg); i++ {
			auxWords := int(msg[off+1])
			sources := int(binary.BigEndian.Uint16(msg[off+2 : off+4]))
			group := netip.AddrFrom16([16]byte(msg[off+4 : off+20]))
			if !group.IsUnspecified() {
				groups = append(groups, group.String())
			}
			// fixed record header + per-source addresses + aux data
			off += 20 + sources*16 + auxWords*4
		}
		return groups
	}
	return nil
}
