package lib

import (
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// ndOptionSourceLinkLayer and ndOptionTargetLinkLayer are the ND option
// types for the Source and Target Link-Layer Address options (RFC 4861
// §4.6.1).
const (
	ndOptionSourceLinkLayer = 1
	ndOptionTargetLinkLayer = 2
)

// naFlagRouter, naFlagSolicited and naFlagOverride are the high three bits
// of the first reserved/flags word of a Neighbor Advertisement (RFC 4861
// §4.4).
const (
	naFlagRouter    = 0x80
	naFlagSolicited = 0x40
	naFlagOverride  = 0x20
)

// handleNeighborSolicitation implements the proxy Neighbor Discovery
// responder.
//
// On an external interface, it answers on behalf of the internal host
// currently mapped to the solicited target (the owning Mapping must be
// bound to the arrival interface). On an internal interface, it answers on
// behalf of any Mapping's external_prefix, regardless of which interface
// that Mapping names, since an internal host has no other way to resolve an
// address that only exists on the far side of the translation.
//
// It reports Drop when it has answered (so the host's own ND logic does not
// also reply) and Accept when no Mapping covers the solicited target, to
// let the host's stack handle the packet normally.
func handleNeighborSolicitation(d *Domain, pkt *Packet) Verdict {
	data := pkt.Data
	icmpBytes := Upper(data)
	// type(1) + code(1) + checksum(2) + reserved(4) + target(16)
	if len(icmpBytes) < 24 {
		d.Stats.TruncatedPassthrough.Add(1)
		return Accept
	}

	var target Address
	copy(target[:], icmpBytes[8:24])

	var m *Mapping
	if d.IsExternal(pkt.Iface) {
		m = d.Table.LookupExternal(target, pkt.Iface)
	} else {
		m = d.Table.LookupExternalAny(target)
	}
	if m == nil {
		return Accept
	}

	if d.Hosts == nil {
		return Accept
	}
	mac, ok := d.Hosts.MAC(pkt.Iface)
	if !ok {
		d.Logger.Warn("proxy NDP: no link-layer address for responding interface", "iface", pkt.Iface)
		return Accept
	}

	solicitor := SrcAddr(data)
	reply, err := buildNeighborAdvertisement(target, solicitor, mac)
	if err != nil {
		d.Logger.Error("proxy NDP: failed to build advertisement", "error", err)
		d.Stats.DroppedNoMemory.Add(1)
		return Drop
	}

	dstMAC := net.HardwareAddr(pkt.SrcMAC)
	if len(dstMAC) == 0 {
		dstMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	frame := SynthesizedFrame{
		DstMAC:    dstMAC,
		SrcMAC:    mac,
		EtherType: EtherTypeIPv6,
		Payload:   reply,
	}
	if d.Transmit != nil {
		if err := d.Transmit.Transmit(frame); err != nil {
			d.Logger.Error("proxy NDP: transmit failed", "error", err)
		}
	}
	d.Stats.NSProxied.Add(1)
	return Drop
}

// buildNeighborAdvertisement constructs a solicited, overriding, non-router
// Neighbor Advertisement for target, sent from target to solicitor, carrying
// respondingMAC as the Target Link-Layer Address option.
func buildNeighborAdvertisement(target, solicitor Address, respondingMAC net.HardwareAddr) ([]byte, error) {
	body := make([]byte, 4+16+8)
	body[0] = naFlagSolicited | naFlagOverride
	copy(body[4:20], target[:])
	body[20] = ndOptionTargetLinkLayer
	body[21] = 1 // option length in units of 8 bytes
	copy(body[22:28], respondingMAC[:min(6, len(respondingMAC))])

	msg := icmp.Message{
		Type: ipv6.ICMPTypeNeighborAdvertisement,
		Code: 0,
		Body: &icmp.RawBody{Data: body},
	}
	icmpBytes, err := msg.Marshal(icmp.IPv6PseudoHeader(target.NetIP().AsSlice(), solicitor.NetIP().AsSlice()))
	if err != nil {
		return nil, err
	}

	pkt := make([]byte, IPv6HeaderLen+len(icmpBytes))
	pkt[0] = 0x60 // version 6
	SetPayloadLen(pkt, uint16(len(icmpBytes)))
	SetNextHeader(pkt, ProtocolICMPv6)
	SetHopLimit(pkt, 255)
	SetSrcAddr(pkt, target)
	SetDstAddr(pkt, solicitor)
	copy(pkt[IPv6HeaderLen:], icmpBytes)
	return pkt, nil
}
