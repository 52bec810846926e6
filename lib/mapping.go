package lib

import (
	"fmt"
	"sync"
)

// Mapping binds an interface and a prefix length to an (internal, external)
// address-prefix pair, defining a bijection between the two prefix's
// address sets per Rewrite.
type Mapping struct {
	Interface      string
	InternalPrefix Address
	ExternalPrefix Address
	PrefixLen      int
}

func (m Mapping) String() string {
	return fmt.Sprintf("%s %s -> %s", m.Interface, FormatPrefix(m.InternalPrefix, m.PrefixLen), FormatPrefix(m.ExternalPrefix, m.PrefixLen))
}

// MappingTable is the per-isolation-domain set of Mappings. Lookups are a
// linear scan over a flat slice: mapping counts are expected in the tens to
// low thousands, where a scan is simpler and fast enough.
//
// Concurrency is a single RWMutex with short critical sections around both
// lookups and mutations, the usual discipline for read-mostly shared state.
type MappingTable struct {
	mu       sync.RWMutex
	mappings []*Mapping
}

// NewMappingTable returns an empty MappingTable for a newly created
// isolation domain.
func NewMappingTable() *MappingTable {
	return &MappingTable{}
}

// Add inserts a new Mapping. It fails with ErrInvalid if internalLen and
// externalLen disagree or either is outside [0,128], and with ErrExists if
// (iface, internalPrefix, prefixLen) duplicates an existing Mapping.
func (t *MappingTable) Add(iface string, internalPrefix Address, internalLen int, externalPrefix Address, externalLen int) error {
	if internalLen != externalLen {
		return fmt.Errorf("%w: internal prefix length %d != external prefix length %d", ErrInvalid, internalLen, externalLen)
	}
	if internalLen < 0 || internalLen > 128 {
		return fmt.Errorf("%w: prefix length %d out of [0,128]", ErrInvalid, internalLen)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, m := range t.mappings {
		if m.Interface == iface && m.PrefixLen == internalLen && Match(m.InternalPrefix, internalPrefix, internalLen) {
			return fmt.Errorf("%w: %s %s", ErrExists, iface, FormatPrefix(internalPrefix, internalLen))
		}
	}

	t.mappings = append(t.mappings, &Mapping{
		Interface:      iface,
		InternalPrefix: internalPrefix,
		ExternalPrefix: externalPrefix,
		PrefixLen:      internalLen,
	})
	return nil
}

// Remove deletes the Mapping identified by (iface, internalPrefix,
// prefixLen). It fails with ErrNotFound if no such Mapping exists.
func (t *MappingTable) Remove(iface string, internalPrefix Address, prefixLen int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, m := range t.mappings {
		if m.Interface == iface && m.PrefixLen == prefixLen && Match(m.InternalPrefix, internalPrefix, prefixLen) {
			t.mappings = append(t.mappings[:i], t.mappings[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s", ErrNotFound, iface, FormatPrefix(internalPrefix, prefixLen))
}

// Drop removes all Mappings bound to iface and returns the count removed.
func (t *MappingTable) Drop(iface string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.mappings[:0:0]
	dropped := 0
	for _, m := range t.mappings {
		if m.Interface == iface {
			dropped++
			continue
		}
		kept = append(kept, m)
	}
	t.mappings = kept
	return dropped
}

// DropAll removes every Mapping in the table and returns the count removed.
func (t *MappingTable) DropAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	dropped := len(t.mappings)
	t.mappings = nil
	return dropped
}

// LookupInternal returns the Mapping whose internal_prefix/prefix_len
// matches addr, interface-agnostically. It returns nil if no Mapping
// matches; the result is undefined (any one of them) if more than one
// Mapping matches, per the data model's lookup contract.
func (t *MappingTable) LookupInternal(addr Address) *Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if Match(addr, m.InternalPrefix, m.PrefixLen) {
			return m
		}
	}
	return nil
}

// LookupExternal returns the Mapping bound to iface whose external_prefix/
// prefix_len matches addr. It returns nil if no Mapping matches.
func (t *MappingTable) LookupExternal(addr Address, iface string) *Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if m.Interface == iface && Match(addr, m.ExternalPrefix, m.PrefixLen) {
			return m
		}
	}
	return nil
}

// LookupExternalAny returns a Mapping, bound to any interface, whose
// external_prefix/prefix_len matches addr. Used by the proxy NDP responder
// on internal ingress, where an internal host may resolve an
// external-looking address regardless of which interface the matching
// Mapping names.
func (t *MappingTable) LookupExternalAny(addr Address) *Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if Match(addr, m.ExternalPrefix, m.PrefixLen) {
			return m
		}
	}
	return nil
}

// OwnsInterface reports whether iface is named by at least one Mapping,
// i.e. whether iface is "external" for this domain.
func (t *MappingTable) OwnsInterface(iface string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.mappings {
		if m.Interface == iface {
			return true
		}
	}
	return false
}

// Enumerate returns a snapshot copy of the current Mappings. Ordering
// matches insertion order but is not a guaranteed stable property.
func (t *MappingTable) Enumerate() []Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Mapping, len(t.mappings))
	for i, m := range t.mappings {
		out[i] = *m
	}
	return out
}
