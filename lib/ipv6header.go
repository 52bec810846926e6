package lib

import "encoding/binary"

// IPv6HeaderLen is the fixed IPv6 header length. The engine does not walk
// IPv6 extension headers; the upper-layer header is taken to start
// immediately after the fixed header.
const IPv6HeaderLen = 40

// ICMPv6HeaderLen is the fixed ICMPv6 message header length (type, code,
// checksum); the body follows immediately.
const ICMPv6HeaderLen = 4

// ICMPv6ErrorHeaderLen is the header length of an ICMPv6 error message:
// type, code, checksum, plus the 4-byte unused/MTU/pointer field that
// precedes the quoted invoking packet (RFC 4443 §3).
const ICMPv6ErrorHeaderLen = 8

const (
	offNextHeader = 6
	offHopLimit   = 7
	offSrcAddr    = 8
	offDstAddr    = 24
)

// looksLikeIPv6 reports whether pkt is at least long enough to hold a fixed
// IPv6 header and has the version nibble set to 6.
func looksLikeIPv6(pkt []byte) bool {
	return len(pkt) >= IPv6HeaderLen && pkt[0]>>4 == 6
}

// NextHeader returns the IPv6 next_header field.
func NextHeader(pkt []byte) uint8 { return pkt[offNextHeader] }

// SetNextHeader sets the IPv6 next_header field.
func SetNextHeader(pkt []byte, v uint8) { pkt[offNextHeader] = v }

// HopLimit returns the IPv6 hop_limit field.
func HopLimit(pkt []byte) uint8 { return pkt[offHopLimit] }

// SetHopLimit sets the IPv6 hop_limit field.
func SetHopLimit(pkt []byte, v uint8) { pkt[offHopLimit] = v }

// SrcAddr returns the IPv6 source address.
func SrcAddr(pkt []byte) Address {
	var a Address
	copy(a[:], pkt[offSrcAddr:offSrcAddr+16])
	return a
}

// SetSrcAddr overwrites the IPv6 source address in place.
func SetSrcAddr(pkt []byte, a Address) {
	copy(pkt[offSrcAddr:offSrcAddr+16], a[:])
}

// DstAddr returns the IPv6 destination address.
func DstAddr(pkt []byte) Address {
	var a Address
	copy(a[:], pkt[offDstAddr:offDstAddr+16])
	return a
}

// SetDstAddr overwrites the IPv6 destination address in place.
func SetDstAddr(pkt []byte, a Address) {
	copy(pkt[offDstAddr:offDstAddr+16], a[:])
}

// PayloadLen returns the IPv6 payload_len field.
func PayloadLen(pkt []byte) uint16 {
	return binary.BigEndian.Uint16(pkt[4:6])
}

// SetPayloadLen sets the IPv6 payload_len field.
func SetPayloadLen(pkt []byte, n uint16) {
	binary.BigEndian.PutUint16(pkt[4:6], n)
}

// Upper returns the bytes immediately following the fixed IPv6 header: the
// upper-layer header and body.
func Upper(pkt []byte) []byte {
	if len(pkt) < IPv6HeaderLen {
		return nil
	}
	return pkt[IPv6HeaderLen:]
}

// ICMPv6Type returns the message type byte of an ICMPv6 payload.
func ICMPv6Type(icmp []byte) uint8 { return icmp[0] }

// ICMPv6Code returns the message code byte of an ICMPv6 payload.
func ICMPv6Code(icmp []byte) uint8 { return icmp[1] }
