package lib

import (
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv6"
)

// icmpv6CodeHopLimitExceeded is RFC 4443's Time Exceeded code 0: "hop limit
// exceeded in transit".
const icmpv6CodeHopLimitExceeded = 0

// minIPv6PathMTU is the smallest IPv6 path MTU every link must support
// (RFC 8200 §5); the generated reply's total size is bounded by it.
const minIPv6PathMTU = 1280

// sendTimeExceeded implements the hop-limit guard's reply generation: a
// packet arriving on an external interface with hop_limit <= 1 is never
// forwarded, and, when the ingress interface has an eligible global
// address, is answered with an ICMPv6 Time Exceeded message quoting as much
// of the original packet as fits within the minimum IPv6 path MTU.
//
// It always reports Drop: the original packet that triggered the guard is
// never forwarded, whether or not a reply could be built.
func sendTimeExceeded(d *Domain, pkt *Packet) Verdict {
	if d.Hosts == nil {
		d.Stats.DroppedNoSrcAddr.Add(1)
		return Drop
	}
	global, ok := d.Hosts.GlobalAddress(pkt.Iface)
	if !ok {
		d.Stats.DroppedNoSrcAddr.Add(1)
		return Drop
	}

	origSrc := SrcAddr(pkt.Data)

	// Quote as much of the original packet as fits in the minimum path MTU,
	// but never less than the invoking IPv6 header plus 8 bytes of transport
	// header, which traceroute/MTR need to match replies to probes.
	capLen := minIPv6PathMTU - IPv6HeaderLen - ICMPv6ErrorHeaderLen
	quoteLen := len(pkt.Data)
	if quoteLen > capLen {
		quoteLen = capLen
	}
	if quoteLen < IPv6HeaderLen+8 {
		quoteLen = IPv6HeaderLen + 8
	}

	body := make([]byte, 4+quoteLen)
	copy(body[4:], pkt.Data[:min(quoteLen, len(pkt.Data))])

	msg := icmp.Message{
		Type: ipv6.ICMPTypeTimeExceeded,
		Code: icmpv6CodeHopLimitExceeded,
		Body: &icmp.RawBody{Data: body},
	}
	icmpBytes, err := msg.Marshal(icmp.IPv6PseudoHeader(global.NetIP().AsSlice(), origSrc.NetIP().AsSlice()))
	if err != nil {
		d.Logger.Error("time exceeded: failed to build reply", "error", err)
		d.Stats.DroppedNoMemory.Add(1)
		return Drop
	}

	reply := make([]byte, IPv6HeaderLen+len(icmpBytes))
	reply[0] = 0x60
	SetPayloadLen(reply, uint16(len(icmpBytes)))
	SetNextHeader(reply, ProtocolICMPv6)
	SetHopLimit(reply, 64)
	SetSrcAddr(reply, global)
	SetDstAddr(reply, origSrc)
	copy(reply[IPv6HeaderLen:], icmpBytes)

	var mac net.HardwareAddr
	if d.Hosts != nil {
		mac, _ = d.Hosts.MAC(pkt.Iface)
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
			d.Logger.Error("time exceeded: transmit failed", "error", err)
		}
	}
	d.Stats.TimeExceededSent.Add(1)
	return Drop
}
