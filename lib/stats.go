package lib

import "sync/atomic"

// EngineStats accumulates translation-engine counters for a Domain.
//
// It is touched on every packet in a no-blocking, no-allocation hot path,
// so each counter is an independent atomic.Int64 rather than a
// mutex-guarded map like PeerTracker's (whose occasional-write, UI-read
// workload tolerates locking).
type EngineStats struct {
	TranslatedInternalToExternal atomic.Int64
	TranslatedExternalToInternal atomic.Int64
	ICMPErrorsTranslated         atomic.Int64
	NSProxied                    atomic.Int64
	TimeExceededSent             atomic.Int64
	PassedThrough                atomic.Int64
	TruncatedPassthrough         atomic.Int64
	DroppedNoMemory              atomic.Int64
	DroppedNoSrcAddr             atomic.Int64
}

// NewEngineStats returns a zeroed EngineStats.
func NewEngineStats() *EngineStats {
	return &EngineStats{}
}

// Snapshot is a point-in-time copy of EngineStats suitable for display.
type Snapshot struct {
	TranslatedInternalToExternal int64
	TranslatedExternalToInternal int64
	ICMPErrorsTranslated         int64
	NSProxied                    int64
	TimeExceededSent             int64
	PassedThrough                int64
	TruncatedPassthrough         int64
	DroppedNoMemory              int64
	DroppedNoSrcAddr             int64
}

// Snapshot returns a consistent-enough point-in-time copy of the counters
// for display; individual fields may be read a fraction of a packet apart
// under concurrent load, which is acceptable for a stats dashboard.
func (s *EngineStats) Snapshot() Snapshot {
	return Snapshot{
		TranslatedInternalToExternal: s.TranslatedInternalToExternal.Load(),
		TranslatedExternalToInternal: s.TranslatedExternalToInternal.Load(),
		ICMPErrorsTranslated:         s.ICMPErrorsTranslated.Load(),
		NSProxied:                    s.NSProxied.Load(),
		TimeExceededSent:             s.TimeExceededSent.Load(),
		PassedThrough:                s.PassedThrough.Load(),
		TruncatedPassthrough:         s.TruncatedPassthrough.Load(),
		DroppedNoMemory:              s.DroppedNoMemory.Load(),
		DroppedNoSrcAddr:             s.DroppedNoSrcAddr.Load(),
	}
}

// Total returns the sum of all counters, shown by the dashboard as
// total_processed.
func (s Snapshot) Total() int64 {
	return s.TranslatedInternalToExternal + s.TranslatedExternalToInternal +
		s.ICMPErrorsTranslated + s.NSProxied + s.TimeExceededSent +
		s.PassedThrough + s.TruncatedPassthrough + s.DroppedNoMemory + s.DroppedNoSrcAddr
}
