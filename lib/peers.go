package lib

import (
	"sort"
	"sync"
	"time"
)

// PeerTracker accumulates the Sniffer's view of on-link peers: which
// addresses are sending NDP/MLD traffic, how often, and with what link-layer
// address. Counts are reported over a sliding window so a peer that went
// quiet ages out of the picture.
//
// Its purpose here is configuration guidance: Report feeds
// ClassifyAgainstMappings, which tells the operator which observed peers are
// already covered by a mapping and which are candidates for the next add.
type PeerTracker struct {
	mu     sync.RWMutex
	peers  map[string]*peerRecord
	window time.Duration
}

// peerEvent is one observed message from a peer.
type peerEvent struct {
	at   time.Time
	kind string
}

type peerRecord struct {
	firstSeen time.Time
	lastSeen  time.Time
	events    []peerEvent
	// groups maps a multicast group address to the last MLD report time.
	groups map[string]time.Time
	mac    string
}

// PeerReport is a point-in-time summary of one peer for display, with
// per-kind message counts restricted to the tracker's window.
type PeerReport struct {
	Address   string
	FirstSeen time.Time
	LastSeen  time.Time
	Counts    map[string]int
	Total     int
	Groups    []string
	MAC       string
}

// NewPeerTracker returns a PeerTracker whose counts cover the trailing
// window duration.
func NewPeerTracker(window time.Duration) *PeerTracker {
	return &PeerTracker{
		peers:  make(map[string]*peerRecord),
		window: window,
	}
}

// Window returns the tracker's sliding window duration.
func (p *PeerTracker) Window() time.Duration {
	return p.window
}

func (p *PeerTracker) record(ip string) *peerRecord {
	rec, ok := p.peers[ip]
	if !ok {
		rec = &peerRecord{
			firstSeen: time.Now(),
			groups:    make(map[string]time.Time),
		}
		p.peers[ip] = rec
	}
	return rec
}

// Observe records one NDP/MLD message of the given kind from ip.
func (p *PeerTracker) Observe(ip, kind string) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.record(ip)
	rec.lastSeen = now
	rec.events = append(rec.events, peerEvent{at: now, kind: kind})
}

// ObserveMAC records the link-layer address extracted from ip's NDP options.
func (p *PeerTracker) ObserveMAC(ip, mac string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(ip).mac = mac
}

// ObserveGroup records that ip reported membership in a multicast group.
func (p *PeerTracker) ObserveGroup(ip, group string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.record(ip).groups[group] = time.Now()
}

// Report summarizes every tracked peer, counting only events inside the
// window, sorted by in-window total descending (chattiest first).
func (p *PeerTracker) Report() []PeerReport {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cutoff := time.Now().Add(-p.window)
	reports := make([]PeerReport, 0, len(p.peers))

	for addr, rec := range p.peers {
		r := PeerReport{
			Address:   addr,
			FirstSeen: rec.firstSeen,
			LastSeen:  rec.lastSeen,
			Counts:    make(map[string]int),
			MAC:       rec.mac,
		}
		for _, ev := range rec.events {
			if ev.at.After(cutoff) {
				r.Counts[ev.kind]++
				r.Total++
			}
		}
		for group, last := range rec.groups {
			if last.After(cutoff) {
				r.Groups = append(r.Groups, group)
			}
		}
		sort.Strings(r.Groups)
		reports = append(reports, r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Total > reports[j].Total
	})
	return reports
}

// Prune discards events and group memberships older than the window, and
// forgets peers with nothing left inside it.
func (p *PeerTracker) Prune() {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-p.window)

	for addr, rec := range p.peers {
		kept := rec.events[:0]
		for _, ev := range rec.events {
			if ev.at.After(cutoff) {
				kept = append(kept, ev)
			}
		}
		rec.events = kept

		for group, last := range rec.groups {
			if !last.After(cutoff) {
				delete(rec.groups, group)
			}
		}

		if len(rec.events) == 0 {
			delete(p.peers, addr)
		}
	}
}

// MappedPeerReport extends PeerReport with a cross-reference against a
// domain's MappingTable: whether the peer's address already falls under a
// configured internal or external prefix, and which interface would treat it
// as external.
type MappedPeerReport struct {
	PeerReport
	InInternalPrefix bool
	InExternalPrefix bool
	ExternalIface    string
}

// ClassifyAgainstMappings cross-references observed peers against table.
// Entries with neither flag set are the addresses an operator would
// plausibly want to add a mapping for next.
func ClassifyAgainstMappings(peers []PeerReport, table *MappingTable) []MappedPeerReport {
	out := make([]MappedPeerReport, 0, len(peers))
	for _, p := range peers {
		classified := MappedPeerReport{PeerReport: p}
		addr, err := ParseAddress(p.Address)
		if err == nil && table != nil {
			if table.LookupInternal(addr) != nil {
				classified.InInternalPrefix = true
			}
			if m := table.LookupExternalAny(addr); m != nil {
				classified.InExternalPrefix = true
				classified.ExternalIface = m.Interface
			}
		}
		out = append(out, classified)
	}
	return out
}
