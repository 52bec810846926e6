package lib

import "testing"

// buildICMPv6DestUnreach constructs an outer ICMPv6 Destination Unreachable
// message (type 1, code 0) from outerSrc to outerDst, carrying a minimal
// embedded inner IPv6 header (innerSrc -> innerDst) as its payload.
func buildICMPv6DestUnreach(t *testing.T, outerSrc, outerDst, innerSrc, innerDst Address) []byte {
	t.Helper()
	inner := make([]byte, IPv6HeaderLen)
	inner[0] = 0x60
	SetNextHeader(inner, ProtocolUDP)
	SetHopLimit(inner, 64)
	SetSrcAddr(inner, innerSrc)
	SetDstAddr(inner, innerDst)

	icmpLen := ICMPv6ErrorHeaderLen + len(inner)
	outer := make([]byte, IPv6HeaderLen+icmpLen)
	outer[0] = 0x60
	SetPayloadLen(outer, uint16(icmpLen))
	SetNextHeader(outer, ProtocolICMPv6)
	SetHopLimit(outer, 64)
	SetSrcAddr(outer, outerSrc)
	SetDstAddr(outer, outerDst)

	icmp := outer[IPv6HeaderLen:]
	icmp[0] = 1 // Destination Unreachable
	icmp[1] = 0
	// bytes 4..8 are the unused field, left zero
	copy(icmp[ICMPv6ErrorHeaderLen:], inner)

	cksum := tcpUDPPseudoChecksum(outerSrc, outerDst, ProtocolICMPv6, withZeroChecksumAt(icmp, 2))
	icmp[2] = byte(cksum >> 8)
	icmp[3] = byte(cksum)
	return outer
}

func withZeroChecksumAt(b []byte, offset int) []byte {
	out := append([]byte(nil), b...)
	out[offset] = 0
	out[offset+1] = 0
	return out
}

func TestProcessICMPv6ErrorRecursion(t *testing.T) {
	domain, _, externalIface := newTestDomain(t)

	outerSrc := mustParse(t, "2001:db8:f::9")   // unmapped, passes through untouched
	outerDst := mustParse(t, "2001:db8:2::a")   // mapped external -> rewritten to internal
	innerSrc := mustParse(t, "2001:db8:2::a")   // embedded: originally sent by internal side
	innerDst := mustParse(t, "2001:db8:f::9")

	pkt := buildICMPv6DestUnreach(t, outerSrc, outerDst, innerSrc, innerDst)

	verdict := Process(domain, &Packet{Data: pkt, Iface: externalIface})
	if verdict != Accept {
		t.Fatalf("verdict = %v, want Accept", verdict)
	}

	wantOuterDst := mustParse(t, "2001:db8:1::a")
	if DstAddr(pkt) != wantOuterDst {
		t.Fatalf("outer dst = %s, want %s", DstAddr(pkt), wantOuterDst)
	}
	if SrcAddr(pkt) != outerSrc {
		t.Fatalf("outer src must be unchanged (unmapped): got %s", SrcAddr(pkt))
	}

	inner := Upper(pkt)[ICMPv6ErrorHeaderLen:]
	wantInnerSrc := mustParse(t, "2001:db8:1::a")
	if SrcAddr(inner) != wantInnerSrc {
		t.Fatalf("inner src = %s, want %s", SrcAddr(inner), wantInnerSrc)
	}
	if DstAddr(inner) != innerDst {
		t.Fatalf("inner dst must be unchanged (unmapped): got %s", DstAddr(inner))
	}

	if domain.Stats.Snapshot().ICMPErrorsTranslated != 1 {
		t.Fatalf("expected ICMPErrorsTranslated to be recorded")
	}

	icmpBytes := Upper(pkt)
	gotCksum := uint16(icmpBytes[2])<<8 | uint16(icmpBytes[3])
	wantCksum := tcpUDPPseudoChecksum(outerSrc, wantOuterDst, ProtocolICMPv6, withZeroChecksumAt(icmpBytes, 2))
	if gotCksum != wantCksum {
		t.Fatalf("outer ICMPv6 checksum = %#04x, want from-scratch %#04x", gotCksum, wantCksum)
	}
}
