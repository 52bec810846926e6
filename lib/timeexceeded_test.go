package lib

import "testing"

func TestSendTimeExceededRespectsMinimumQuoteFloor(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 1)
	origLen := len(pkt)

	Process(domain, &Packet{Data: pkt, Iface: externalIface})

	transmit := domain.Transmit.(*RecordingTransmitter)
	reply := transmit.Frames[0].Payload
	icmpBody := Upper(reply)
	quoted := icmpBody[ICMPv6ErrorHeaderLen:]

	if len(quoted) != origLen {
		t.Fatalf("quoted length = %d, want %d (original packet fits well under the 1280 cap)", len(quoted), origLen)
	}
	if len(quoted) < IPv6HeaderLen+8 {
		t.Fatalf("quoted length %d is below the RFC 4443 floor of IPv6+8", len(quoted))
	}
}

func TestSendTimeExceededPadsShortPacketToFloor(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")

	// A bare IPv6 header with no transport bytes at all: shorter than the
	// IPv6+8 floor, so the quote must be padded out to it.
	pkt := make([]byte, IPv6HeaderLen)
	pkt[0] = 0x60
	SetNextHeader(pkt, ProtocolUDP)
	SetHopLimit(pkt, 1)
	SetSrcAddr(pkt, src)
	SetDstAddr(pkt, dst)

	Process(domain, &Packet{Data: pkt, Iface: externalIface})

	transmit := domain.Transmit.(*RecordingTransmitter)
	if len(transmit.Frames) != 1 {
		t.Fatalf("expected one synthesized frame, got %d", len(transmit.Frames))
	}
	quoted := Upper(transmit.Frames[0].Payload)[ICMPv6ErrorHeaderLen:]
	if len(quoted) != IPv6HeaderLen+8 {
		t.Fatalf("quoted length = %d, want padded floor %d", len(quoted), IPv6HeaderLen+8)
	}
}

func TestSendTimeExceededCapsAtPathMTU(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 1)
	// Pad well past the minimum IPv6 path MTU.
	pkt = append(pkt, make([]byte, 2000)...)
	SetPayloadLen(pkt, uint16(len(pkt)-IPv6HeaderLen))

	Process(domain, &Packet{Data: pkt, Iface: externalIface})

	transmit := domain.Transmit.(*RecordingTransmitter)
	reply := transmit.Frames[0].Payload
	if len(reply) > minIPv6PathMTU {
		t.Fatalf("reply length %d exceeds the minimum IPv6 path MTU %d", len(reply), minIPv6PathMTU)
	}
}
