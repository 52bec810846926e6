package lib

import (
	"encoding/binary"
	"net"
	"testing"
)

// buildIPv6TCP constructs a minimal IPv6 packet carrying an empty TCP
// segment (header only, no payload) with a correctly computed TCP checksum
// over the IPv6 pseudo-header, for use as translation engine test fixtures.
func buildIPv6TCP(t *testing.T, src, dst Address, hopLimit uint8) []byte {
	t.Helper()
	const tcpLen = 20
	pkt := make([]byte, IPv6HeaderLen+tcpLen)
	pkt[0] = 0x60
	SetPayloadLen(pkt, tcpLen)
	SetNextHeader(pkt, ProtocolTCP)
	SetHopLimit(pkt, hopLimit)
	SetSrcAddr(pkt, src)
	SetDstAddr(pkt, dst)

	tcp := pkt[IPv6HeaderLen:]
	binary.BigEndian.PutUint16(tcp[0:2], 1234) // src port
	binary.BigEndian.PutUint16(tcp[2:4], 80)   // dst port
	tcp[12] = 5 << 4                           // data offset

	binary.BigEndian.PutUint16(tcp[16:18], 0)
	cksum := tcpUDPPseudoChecksum(src, dst, ProtocolTCP, tcp)
	binary.BigEndian.PutUint16(tcp[16:18], cksum)
	return pkt
}

// tcpUDPPseudoChecksum computes the from-scratch internet checksum over the
// IPv6 pseudo-header followed by segment, the reference the translation
// engine's incremental update must agree with after any address rewrite.
func tcpUDPPseudoChecksum(src, dst Address, nextHeader uint8, segment []byte) uint16 {
	var buf []byte
	buf = append(buf, src[:]...)
	buf = append(buf, dst[:]...)
	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(segment)))
	buf = append(buf, lenField[:]...)
	buf = append(buf, 0, 0, 0, nextHeader)
	buf = append(buf, segment...)
	return rfc1071Sum(buf)
}

func newTestDomain(t *testing.T) (*Domain, string, string) {
	t.Helper()
	hosts := lib_newHostsFixture()
	domain := NewDomain("test", hosts, &RecordingTransmitter{}, nil)
	const internalIface, externalIface = "inA", "outA"
	addMapping(t, domain.Table, externalIface, "2001:db8:1::", "2001:db8:2::", 64)
	return domain, internalIface, externalIface
}

func lib_newHostsFixture() *StaticInterfaceDirectory {
	hosts := NewStaticInterfaceDirectory()
	hosts.Set("outA", mustParseNoT("2001:db8:ff::1"), net.HardwareAddr{0x02, 0, 0, 0, 0, 0xaa})
	hosts.Set("inA", mustParseNoT("2001:db8:1::ff"), net.HardwareAddr{0x02, 0, 0, 0, 0, 0xbb})
	return hosts
}

func mustParseNoT(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestProcessInternalToExternalForward(t *testing.T) {
	domain, internalIface, _ := newTestDomain(t)

	src := mustParse(t, "2001:db8:1::a")
	dst := mustParse(t, "2001:db8:1::b")
	pkt := buildIPv6TCP(t, src, dst, 64)
	before := append([]byte(nil), pkt...)

	verdict := Process(domain, &Packet{Data: pkt, Iface: internalIface})
	if verdict != Accept {
		t.Fatalf("verdict = %v, want Accept", verdict)
	}

	wantSrc := mustParse(t, "2001:db8:2::a")
	wantDst := mustParse(t, "2001:db8:2::b")
	if SrcAddr(pkt) != wantSrc {
		t.Fatalf("src = %s, want %s", SrcAddr(pkt), wantSrc)
	}
	if DstAddr(pkt) != wantDst {
		t.Fatalf("dst = %s, want %s", DstAddr(pkt), wantDst)
	}
	if HopLimit(pkt) != HopLimit(before) {
		t.Fatalf("hop limit must be unchanged")
	}

	gotCksum := binary.BigEndian.Uint16(pkt[IPv6HeaderLen+16 : IPv6HeaderLen+18])
	wantCksum := tcpUDPPseudoChecksum(wantSrc, wantDst, ProtocolTCP, withZeroChecksum(pkt[IPv6HeaderLen:]))
	if gotCksum != wantCksum {
		t.Fatalf("TCP checksum = %#04x, want from-scratch %#04x", gotCksum, wantCksum)
	}
}

// withZeroChecksum returns a copy of segment with its TCP checksum field
// zeroed, for recomputing a reference checksum from scratch.
func withZeroChecksum(segment []byte) []byte {
	out := append([]byte(nil), segment...)
	binary.BigEndian.PutUint16(out[16:18], 0)
	return out
}

func TestProcessExternalToInternalReverse(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 64)

	verdict := Process(domain, &Packet{Data: pkt, Iface: externalIface})
	if verdict != Accept {
		t.Fatalf("verdict = %v, want Accept", verdict)
	}

	wantSrc := mustParse(t, "2001:db8:1::b")
	wantDst := mustParse(t, "2001:db8:1::a")
	if SrcAddr(pkt) != wantSrc || DstAddr(pkt) != wantDst {
		t.Fatalf("got src=%s dst=%s, want src=%s dst=%s", SrcAddr(pkt), DstAddr(pkt), wantSrc, wantDst)
	}
}

func TestProcessRoundTrip(t *testing.T) {
	domain, internalIface, externalIface := newTestDomain(t)

	origSrc := mustParse(t, "2001:db8:1::a")
	origDst := mustParse(t, "2001:db8:1::b")
	pkt := buildIPv6TCP(t, origSrc, origDst, 64)

	if verdict := Process(domain, &Packet{Data: pkt, Iface: internalIface}); verdict != Accept {
		t.Fatalf("forward verdict = %v", verdict)
	}

	// Feed the translated packet back in on the external interface: the tag
	// only prevents re-translation within the same pass, and a fresh Packet
	// struct on the return path models arrival back from the peer.
	returned := append([]byte(nil), pkt...)
	if verdict := Process(domain, &Packet{Data: returned, Iface: externalIface}); verdict != Accept {
		t.Fatalf("reverse verdict = %v", verdict)
	}
	if SrcAddr(returned) != origSrc || DstAddr(returned) != origDst {
		t.Fatalf("round trip did not restore original addresses: got src=%s dst=%s", SrcAddr(returned), DstAddr(returned))
	}
}

func TestProcessIdempotentOnTaggedPacket(t *testing.T) {
	domain, internalIface, _ := newTestDomain(t)

	src := mustParse(t, "2001:db8:1::a")
	dst := mustParse(t, "2001:db8:1::b")
	pkt := buildIPv6TCP(t, src, dst, 64)
	p := &Packet{Data: pkt, Iface: internalIface}

	Process(domain, p)
	translated := append([]byte(nil), pkt...)

	// Second pass: tag already set, must be untouched.
	verdict := Process(domain, p)
	if verdict != Accept {
		t.Fatalf("verdict = %v, want Accept", verdict)
	}
	for i := range translated {
		if pkt[i] != translated[i] {
			t.Fatalf("tagged packet mutated on re-entry at byte %d", i)
		}
	}
}

func TestPostRoutingClearsTag(t *testing.T) {
	domain, internalIface, _ := newTestDomain(t)

	src := mustParse(t, "2001:db8:1::a")
	dst := mustParse(t, "2001:db8:1::b")
	p := &Packet{Data: buildIPv6TCP(t, src, dst, 64), Iface: internalIface}

	Process(domain, p)
	if !p.Tagged {
		t.Fatalf("expected the pre-routing pass to tag the translated packet")
	}

	if verdict := PostRouting(domain, p); verdict != Accept {
		t.Fatalf("post-routing verdict = %v, want Accept", verdict)
	}
	if p.Tagged {
		t.Fatalf("tag must not survive the post-routing pass")
	}
}

func TestProcessNoMatchPassesThroughUnchanged(t *testing.T) {
	domain, internalIface, _ := newTestDomain(t)

	src := mustParse(t, "2001:db8:99::1")
	dst := mustParse(t, "2001:db8:99::2")
	pkt := buildIPv6TCP(t, src, dst, 64)
	before := append([]byte(nil), pkt...)

	Process(domain, &Packet{Data: pkt, Iface: internalIface})
	for i := range before {
		if pkt[i] != before[i] {
			t.Fatalf("unmatched packet mutated at byte %d", i)
		}
	}
}

func TestProcessLinkLocalSkipped(t *testing.T) {
	domain, internalIface, _ := newTestDomain(t)

	src := mustParse(t, "fe80::1")
	dst := mustParse(t, "fe80::2")
	pkt := buildIPv6TCP(t, src, dst, 64)
	before := append([]byte(nil), pkt...)

	Process(domain, &Packet{Data: pkt, Iface: internalIface})
	for i := range before {
		if pkt[i] != before[i] {
			t.Fatalf("link-local packet mutated at byte %d", i)
		}
	}
}

func TestProcessHopLimitExpiryOnExternal(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 1)

	verdict := Process(domain, &Packet{Data: pkt, Iface: externalIface})
	if verdict != Drop {
		t.Fatalf("verdict = %v, want Drop", verdict)
	}
	if domain.Stats.Snapshot().TimeExceededSent != 1 {
		t.Fatalf("expected one Time Exceeded reply recorded")
	}

	transmit := domain.Transmit.(*RecordingTransmitter)
	if len(transmit.Frames) != 1 {
		t.Fatalf("expected one synthesized frame, got %d", len(transmit.Frames))
	}
	reply := transmit.Frames[0].Payload
	if SrcAddr(reply) != mustParse(t, "2001:db8:ff::1") {
		t.Fatalf("reply src = %s, want interface global address", SrcAddr(reply))
	}
	if DstAddr(reply) != src {
		t.Fatalf("reply dst = %s, want original src %s", DstAddr(reply), src)
	}
}

func TestProcessHopLimitExpiryWithNilHostsDrops(t *testing.T) {
	domain := NewDomain("test", nil, nil, nil)
	addMapping(t, domain.Table, "outA", "2001:db8:1::", "2001:db8:2::", 64)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 1)

	verdict := Process(domain, &Packet{Data: pkt, Iface: "outA"})
	if verdict != Drop {
		t.Fatalf("verdict = %v, want Drop", verdict)
	}
}

func TestProcessHopLimitExpiryWithoutGlobalAddrDrops(t *testing.T) {
	hosts := NewStaticInterfaceDirectory() // no global address configured
	domain := NewDomain("test", hosts, &RecordingTransmitter{}, nil)
	addMapping(t, domain.Table, "outA", "2001:db8:1::", "2001:db8:2::", 64)

	src := mustParse(t, "2001:db8:2::b")
	dst := mustParse(t, "2001:db8:2::a")
	pkt := buildIPv6TCP(t, src, dst, 1)

	verdict := Process(domain, &Packet{Data: pkt, Iface: "outA"})
	if verdict != Drop {
		t.Fatalf("verdict = %v, want Drop", verdict)
	}
	if domain.Stats.Snapshot().DroppedNoSrcAddr != 1 {
		t.Fatalf("expected DroppedNoSrcAddr to be recorded")
	}
}
