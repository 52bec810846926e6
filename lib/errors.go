package lib

import "errors"

// Sentinel errors for the mapping store and translation engine.
var (
	// ErrInvalid is returned when a configuration line or operation names a
	// malformed prefix, a length outside [0,128], or a length mismatch
	// between an internal and external prefix.
	ErrInvalid = errors.New("nptv6: invalid mapping")

	// ErrExists is returned by Add when (interface, internal_prefix,
	// prefix_len) duplicates an existing Mapping.
	ErrExists = errors.New("nptv6: mapping already exists")

	// ErrNotFound is returned by Remove (the "del" command) when no matching
	// Mapping exists.
	ErrNotFound = errors.New("nptv6: mapping not found")

	// ErrNoMemory names the condition where a synthesized reply (NA, Time
	// Exceeded) could not be built. The engine does not return it; it counts
	// the case in EngineStats.DroppedNoMemory.
	ErrNoMemory = errors.New("nptv6: allocation failed for reply synthesis")

	// ErrTruncated is returned when a packet is shorter than the headers
	// required to process it.
	ErrTruncated = errors.New("nptv6: packet truncated")

	// ErrNoSrcAddr names the condition where an interface has no eligible
	// global IPv6 source address for a synthesized reply. The engine does not
	// return it; it counts the case in EngineStats.DroppedNoSrcAddr.
	ErrNoSrcAddr = errors.New("nptv6: interface has no eligible global address")
)
