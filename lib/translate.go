package lib

import "golang.org/x/net/ipv6"

// Process runs a single packet through the translation engine for Domain d
// and reports the verdict the host network stack should act on, mutating
// pkt.Data in place when a translation applies. It is the pre-routing hook;
// PostRouting is its terminal counterpart.
//
// The pipeline is: skip conditions (tagged, non-IPv6, link-local), ICMPv6
// pre-screen, hop-limit guard, mapping lookup, rewrite, tagging.
func Process(d *Domain, pkt *Packet) Verdict {
	data := pkt.Data

	if pkt.Tagged {
		d.Stats.PassedThrough.Add(1)
		return Accept
	}
	if !looksLikeIPv6(data) {
		d.Stats.PassedThrough.Add(1)
		return Accept
	}

	src := SrcAddr(data)
	dst := DstAddr(data)
	if IsLinkLocal(src) && IsLinkLocal(dst) {
		d.Stats.PassedThrough.Add(1)
		return Accept
	}

	isError := false
	nextHeader := NextHeader(data)
	if nextHeader == ProtocolICMPv6 {
		icmpBytes := Upper(data)
		if len(icmpBytes) < ICMPv6HeaderLen {
			d.Stats.TruncatedPassthrough.Add(1)
			return Accept
		}
		switch ipv6.ICMPType(ICMPv6Type(icmpBytes)) {
		case ipv6.ICMPTypeNeighborSolicitation:
			return handleNeighborSolicitation(d, pkt)
		case ipv6.ICMPTypeNeighborAdvertisement,
			ipv6.ICMPTypeRouterSolicitation,
			ipv6.ICMPTypeRouterAdvertisement,
			ipv6.ICMPTypeRedirect:
			d.Stats.PassedThrough.Add(1)
			return Accept
		case ipv6.ICMPTypeDestinationUnreachable,
			ipv6.ICMPTypePacketTooBig,
			ipv6.ICMPTypeTimeExceeded,
			ipv6.ICMPTypeParameterProblem:
			isError = true
		case ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply:
			// fall through to normal translation
		default:
			d.Stats.PassedThrough.Add(1)
			return Accept
		}
	}

	isExternal := d.IsExternal(pkt.Iface)

	if isExternal && HopLimit(data) <= 1 {
		return sendTimeExceeded(d, pkt)
	}

	var mSrc, mDst *Mapping
	if isExternal {
		mSrc = d.Table.LookupExternal(src, pkt.Iface)
		mDst = d.Table.LookupExternal(dst, pkt.Iface)
	} else {
		mSrc = d.Table.LookupInternal(src)
		mDst = d.Table.LookupInternal(dst)
	}

	switch {
	case isExternal && !isError:
		if mDst != nil && Match(dst, mDst.ExternalPrefix, mDst.PrefixLen) {
			rewriteDst(data, mDst, true)
			if mSrc != nil && Match(src, mSrc.ExternalPrefix, mSrc.PrefixLen) {
				rewriteSrc(data, mSrc, true)
			}
			pkt.Tagged = true
			d.Stats.TranslatedExternalToInternal.Add(1)
			return Accept
		}

	case isExternal && isError:
		if mDst != nil && Match(dst, mDst.ExternalPrefix, mDst.PrefixLen) {
			recurseICMPError(d, pkt, isExternal)
			rewriteDst(data, mDst, true)
			pkt.Tagged = true
			d.Stats.ICMPErrorsTranslated.Add(1)
			return Accept
		}

	case !isExternal && !isError:
		if mSrc != nil && mDst != nil &&
			Match(src, mSrc.InternalPrefix, mSrc.PrefixLen) &&
			Match(dst, mDst.InternalPrefix, mDst.PrefixLen) {
			rewriteSrc(data, mSrc, false)
			rewriteDst(data, mDst, false)
			pkt.Tagged = true
			d.Stats.TranslatedInternalToExternal.Add(1)
			return Accept
		}

	case !isExternal && isError:
		if mSrc != nil && mDst != nil &&
			Match(src, mSrc.InternalPrefix, mSrc.PrefixLen) &&
			Match(dst, mDst.InternalPrefix, mDst.PrefixLen) {
			recurseICMPError(d, pkt, isExternal)
			rewriteSrc(data, mSrc, false)
			rewriteDst(data, mDst, false)
			pkt.Tagged = true
			d.Stats.ICMPErrorsTranslated.Add(1)
			return Accept
		}
	}

	d.Stats.PassedThrough.Add(1)
	return Accept
}

// PostRouting is the terminal post-routing pass: it clears the per-packet
// translation tag so it does not leak out of the host, and always accepts.
// Together with Process's tag check it bounds the tag's lifetime to a single
// traversal of the hook chain.
func PostRouting(d *Domain, pkt *Packet) Verdict {
	pkt.Tagged = false
	return Accept
}

// rewriteDst rewrites data's destination address through m, toward the
// internal prefix if toInternal, otherwise toward the external prefix, and
// folds the address substitution into the upper-layer checksum.
func rewriteDst(data []byte, m *Mapping, toInternal bool) {
	old := DstAddr(data)
	target := m.ExternalPrefix
	if toInternal {
		target = m.InternalPrefix
	}
	updated := Rewrite(old, target, m.PrefixLen)
	SetDstAddr(data, updated)
	_ = UpdateUpperLayerChecksum(Upper(data), NextHeader(data), old, updated)
}

// rewriteSrc is rewriteDst's source-address counterpart.
func rewriteSrc(data []byte, m *Mapping, toInternal bool) {
	old := SrcAddr(data)
	target := m.ExternalPrefix
	if toInternal {
		target = m.InternalPrefix
	}
	updated := Rewrite(old, target, m.PrefixLen)
	SetSrcAddr(data, updated)
	_ = UpdateUpperLayerChecksum(Upper(data), NextHeader(data), old, updated)
}

// recurseICMPError translates the inner, embedded IPv6 packet carried by an
// ICMPv6 error message, in the opposite direction sense implied by
// isExternal, and folds every address substitution into the outer ICMPv6
// checksum (the inner bytes are part of the outer ICMPv6 payload).
//
// It is a best-effort pass: a too-short or unmapped inner packet is left
// untouched.
func recurseICMPError(d *Domain, pkt *Packet, isExternal bool) {
	data := pkt.Data
	if len(data) < IPv6HeaderLen+ICMPv6ErrorHeaderLen+IPv6HeaderLen {
		return
	}
	icmpBytes := Upper(data)
	inner := icmpBytes[ICMPv6ErrorHeaderLen:]

	innerSrc := SrcAddr(inner)
	innerDst := DstAddr(inner)

	var mSrc, mDst *Mapping
	if isExternal {
		mSrc = d.Table.LookupExternal(innerSrc, pkt.Iface)
		mDst = d.Table.LookupExternal(innerDst, pkt.Iface)
	} else {
		mSrc = d.Table.LookupInternal(innerSrc)
		mDst = d.Table.LookupInternal(innerDst)
	}

	if mSrc != nil {
		matchPrefix, target := mSrc.InternalPrefix, mSrc.ExternalPrefix
		if isExternal {
			matchPrefix, target = mSrc.ExternalPrefix, mSrc.InternalPrefix
		}
		if Match(innerSrc, matchPrefix, mSrc.PrefixLen) {
			updated := Rewrite(innerSrc, target, mSrc.PrefixLen)
			SetSrcAddr(inner, updated)
			_ = UpdateICMPv6ChecksumField(icmpBytes, innerSrc, updated)
		}
	}
	if mDst != nil {
		matchPrefix, target := mDst.InternalPrefix, mDst.ExternalPrefix
		if isExternal {
			matchPrefix, target = mDst.ExternalPrefix, mDst.InternalPrefix
		}
		if Match(innerDst, matchPrefix, mDst.PrefixLen) {
			updated := Rewrite(innerDst, target, mDst.PrefixLen)
			SetDstAddr(inner, updated)
			_ = UpdateICMPv6ChecksumField(icmpBytes, innerDst, updated)
		}
	}
}
