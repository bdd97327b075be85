package ecsforge

import "github.com/TheBitDrifter/mask"

// WorldId identifies a single World instance. Entities carry the id of the
// world that created them so that handles from different worlds never
// compare equal by accident.
type WorldId uint16

// WorldVersion is a monotonically increasing tick stamped on archetype
// chunks to drive change-detection. It only ever grows for the lifetime of
// a World.
type WorldVersion uint32

// ComponentId is a process-wide dense integer assigned on first
// registration of a component type. Values are handed out 0, 1, 2, ... in
// first-seen order by the component registry.
type ComponentId uint32

// SharedComponentId lives in a namespace parallel to ComponentId with
// identical densification semantics but distinct backing storage.
type SharedComponentId uint32

// ArchetypeIndex identifies an archetype within a World's archetype table.
type ArchetypeIndex uint32

// ArchetypeEntityIndex is the position of an entity within its archetype's
// dense entity array (and, by construction, within every component column).
type ArchetypeEntityIndex uint32

// ComponentIndex is the position of a component within one archetype's
// column list. It is archetype-local: the same ComponentId maps to
// different ComponentIndex values in different archetypes.
type ComponentIndex uint32

// InvalidComponentIndex marks "this archetype does not have the component".
const InvalidComponentIndex ComponentIndex = ^ComponentIndex(0)

// ComponentIdMask is an unordered set of ComponentIds. Two masks are equal
// (via ==) iff they contain the same ids, which is exactly the identity an
// archetype lookup table needs from its key, so ComponentIdMask is safe to
// use as a map key.
type ComponentIdMask struct {
	bits mask.Mask256
}

// NewComponentIdMask builds a mask containing exactly the given ids.
func NewComponentIdMask(ids ...ComponentId) ComponentIdMask {
	var m ComponentIdMask
	for _, id := range ids {
		m.Add(id)
	}
	return m
}

// Add inserts id into the mask.
func (m *ComponentIdMask) Add(id ComponentId) {
	m.bits.Mark(uint32(id))
}

// Remove deletes id from the mask, if present.
func (m *ComponentIdMask) Remove(id ComponentId) {
	m.bits.Unmark(uint32(id))
}

// Contains reports whether id is a member of the mask.
func (m ComponentIdMask) Contains(id ComponentId) bool {
	var single ComponentIdMask
	single.Add(id)
	return m.bits.ContainsAll(single.bits)
}

// IsEmpty reports whether the mask has no members.
func (m ComponentIdMask) IsEmpty() bool {
	return m.bits.IsEmpty()
}

// IsSubsetOf reports whether every id in m is also in other: m ⊆ other.
func (m ComponentIdMask) IsSubsetOf(other ComponentIdMask) bool {
	return other.bits.ContainsAll(m.bits)
}

// Union returns a new mask containing the members of both m and other.
func (m ComponentIdMask) Union(other ComponentIdMask) ComponentIdMask {
	out := m
	for _, id := range other.ids() {
		out.Add(id)
	}
	return out
}

// Intersect returns a new mask containing only ids present in both masks.
func (m ComponentIdMask) Intersect(other ComponentIdMask) ComponentIdMask {
	var out ComponentIdMask
	for _, id := range m.ids() {
		if other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// Difference returns a new mask containing the members of m that are not in
// other: m \ other.
func (m ComponentIdMask) Difference(other ComponentIdMask) ComponentIdMask {
	var out ComponentIdMask
	for _, id := range m.ids() {
		if !other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// ContainsAny reports whether m and other share at least one member.
func (m ComponentIdMask) ContainsAny(other ComponentIdMask) bool {
	return m.bits.ContainsAny(other.bits)
}

// ContainsNone reports whether m and other share no members.
func (m ComponentIdMask) ContainsNone(other ComponentIdMask) bool {
	return m.bits.ContainsNone(other.bits)
}

// Equals reports whether m and other contain exactly the same ids.
func (m ComponentIdMask) Equals(other ComponentIdMask) bool {
	return m == other
}

// maxTrackedComponentID bounds the bit-by-bit scans Union/Intersect/
// Difference/ids fall back to, since mask.Mask256 exposes set-membership
// and boolean combinators but no bit iterator.
const maxTrackedComponentID = 256

// ids returns the sorted, dense list of ComponentIds set in m.
func (m ComponentIdMask) ids() []ComponentId {
	out := make([]ComponentId, 0, 8)
	for i := 0; i < maxTrackedComponentID; i++ {
		if m.Contains(ComponentId(i)) {
			out = append(out, ComponentId(i))
		}
	}
	return out
}
