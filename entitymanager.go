package ecsforge

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/TheBitDrifter/bark"
)

// EntityManager owns the archetype table, the mask->archetype lookup, and
// the entity slot table (plus its free list), covering the full
// create/destroy/assign/remove contract an entity's lifecycle needs.
type EntityManager struct {
	world *World

	mu             sync.RWMutex
	slots          []entitySlot
	freeHead       uint32
	freeCount      uint32
	archetypes     []*archetype
	lookup         map[ComponentIdMask]ArchetypeIndex
	emptyArchetype ArchetypeIndex

	dispatchDepth int32 // guards StructuralChangeDuringIterationError
}

const noFreeSlot = ^uint32(0)

func newEntityManager(world *World) *EntityManager {
	em := &EntityManager{
		world:    world,
		freeHead: noFreeSlot,
		lookup:   make(map[ComponentIdMask]ArchetypeIndex),
	}
	empty, err := newArchetypeBuilder().WithWorld(world).WithIndex(0).WithComponents().Build()
	if err != nil {
		panic(bark.AddTrace(err))
	}
	em.archetypes = append(em.archetypes, empty)
	em.lookup[ComponentIdMask{}] = 0
	em.emptyArchetype = 0
	return em
}

// beginDispatch/endDispatch bracket a running job so structural changes can
// be refused fail-fast instead of hidden behind a command buffer.
func (em *EntityManager) beginDispatch() { atomic.AddInt32(&em.dispatchDepth, 1) }
func (em *EntityManager) endDispatch()   { atomic.AddInt32(&em.dispatchDepth, -1) }
func (em *EntityManager) dispatching() bool {
	return atomic.LoadInt32(&em.dispatchDepth) > 0
}

func (em *EntityManager) guardStructuralChange(e Entity) error {
	if em.dispatching() {
		return StructuralChangeDuringIterationError{Entity: e}
	}
	return nil
}

// archetypeFor returns (creating if necessary) the archetype for exactly
// the given component set.
func (em *EntityManager) archetypeFor(mask ComponentIdMask, ids []ComponentId) (*archetype, error) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if idx, ok := em.lookup[mask]; ok {
		return em.archetypes[idx], nil
	}
	idx := ArchetypeIndex(len(em.archetypes))
	arch, err := newArchetypeBuilder().WithWorld(em.world).WithIndex(idx).WithComponents(ids...).Build()
	if err != nil {
		return nil, err
	}
	em.archetypes = append(em.archetypes, arch)
	em.lookup[mask] = idx
	return arch, nil
}

func (em *EntityManager) allocSlot() uint32 {
	em.mu.Lock()
	defer em.mu.Unlock()
	if em.freeHead != noFreeSlot {
		id := em.freeHead
		em.freeHead = em.slots[id].nextFreeID
		em.freeCount--
		return id
	}
	em.slots = append(em.slots, entitySlot{})
	return uint32(len(em.slots) - 1)
}

func (em *EntityManager) freeSlot(id uint32) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.slots[id].alive = false
	em.slots[id].version++
	em.slots[id].nextFreeID = em.freeHead
	em.freeHead = id
	em.freeCount++
}

func (em *EntityManager) setLocation(id uint32, archetype ArchetypeIndex, index ArchetypeEntityIndex) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.slots[id].archetype = archetype
	em.slots[id].index = index
}

func (em *EntityManager) slotOf(e Entity) (entitySlot, bool) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	if e.world != em.world.id || int(e.id) >= len(em.slots) {
		return entitySlot{}, false
	}
	s := em.slots[e.id]
	if !s.alive || s.version != e.version {
		return entitySlot{}, false
	}
	return s, true
}

// IsAlive reports whether e still names a live entity.
func (em *EntityManager) IsAlive(e Entity) bool {
	if e.world != em.world.id {
		return false
	}
	_, ok := em.slotOf(e)
	return ok
}

// Create allocates a new entity into the empty archetype, then runs cb (if
// non-nil) against a Builder that coalesces any assigned components into a
// single archetype transition.
func (em *EntityManager) Create(cb func(*Builder)) (Entity, error) {
	if err := em.guardStructuralChange(NullEntity); err != nil {
		return Entity{}, err
	}
	id := em.allocSlot()
	em.mu.RLock()
	version := em.slots[id].version
	em.mu.RUnlock()

	entity := Entity{id: id, version: version, world: em.world.id}

	em.mu.Lock()
	em.slots[id].alive = true
	em.slots[id].archetype = em.emptyArchetype
	em.mu.Unlock()

	empty, err := em.archetypeAt(em.emptyArchetype)
	if err != nil {
		return Entity{}, err
	}
	idx, err := empty.insert(entity, ComponentIdMask{})
	if err != nil {
		return Entity{}, err
	}
	em.setLocation(id, em.emptyArchetype, idx)

	if cb != nil {
		b := newBuilder(em, entity)
		cb(b)
		if err := b.end(); err != nil {
			return Entity{}, err
		}
	}
	return entity, nil
}

func (em *EntityManager) archetypeAt(idx ArchetypeIndex) (*archetype, error) {
	em.mu.RLock()
	defer em.mu.RUnlock()
	if int(idx) >= len(em.archetypes) {
		return nil, ArchetypeAllocationError{Err: InvalidEntityError{}}
	}
	return em.archetypes[idx], nil
}

// Destroy removes entity from its archetype and recycles its slot.
func (em *EntityManager) Destroy(e Entity) error {
	if err := em.guardStructuralChange(e); err != nil {
		return err
	}
	slot, ok := em.slotOf(e)
	if !ok {
		return InvalidEntityError{Entity: e}
	}
	arch, err := em.archetypeAt(slot.archetype)
	if err != nil {
		return err
	}
	moved, movedOccurred, err := arch.remove(e, slot.index)
	if err != nil {
		return err
	}
	if movedOccurred {
		em.setLocation(moved.id, slot.archetype, slot.index)
	}
	em.freeSlot(e.id)
	return nil
}

// transition moves e into the archetype for exactly newMask, creating that
// archetype if needed, with one externalMove — the mechanism both single
// Assign/RemoveComponent calls and Builder.end() share.
func (em *EntityManager) transition(e Entity, newMask ComponentIdMask, skipCtor ComponentIdMask) error {
	if err := em.guardStructuralChange(e); err != nil {
		return err
	}
	slot, ok := em.slotOf(e)
	if !ok {
		return InvalidEntityError{Entity: e}
	}
	prev, err := em.archetypeAt(slot.archetype)
	if err != nil {
		return err
	}
	if prev.mask.Equals(newMask) {
		return nil
	}
	dest, err := em.archetypeFor(newMask, newMask.ids())
	if err != nil {
		return err
	}
	newIdx, moved, movedOccurred, err := dest.externalMove(e, prev, slot.index, skipCtor)
	if err != nil {
		return err
	}
	if movedOccurred {
		em.setLocation(moved.id, slot.archetype, slot.index)
	}
	em.setLocation(e.id, dest.id, newIdx)
	return nil
}

// ArchetypeOf returns the ArchetypeIndex entity currently lives in, failing
// with InvalidEntityError if the handle is stale. Callers that pre-warmed a
// shape via RegisterArchetype use this to confirm an entity landed there.
func (em *EntityManager) ArchetypeOf(e Entity) (ArchetypeIndex, error) {
	slot, ok := em.slotOf(e)
	if !ok {
		return 0, InvalidEntityError{Entity: e}
	}
	return slot.archetype, nil
}

// locate resolves entity's current (archetype, index), failing with
// InvalidEntityError if the handle is stale.
func (em *EntityManager) locate(e Entity) (*archetype, ArchetypeEntityIndex, error) {
	slot, ok := em.slotOf(e)
	if !ok {
		return nil, 0, InvalidEntityError{Entity: e}
	}
	arch, err := em.archetypeAt(slot.archetype)
	if err != nil {
		return nil, 0, err
	}
	return arch, slot.index, nil
}

// componentPointer resolves entity's pointer for a single registered
// component, or nil (ok=false) if the entity's archetype doesn't carry it.
func (em *EntityManager) componentPointer(e Entity, id ComponentId) (ptr unsafe.Pointer, ok bool, err error) {
	arch, index, err := em.locate(e)
	if err != nil {
		return nil, false, err
	}
	ci, present := arch.componentIndexOf(id)
	if !present {
		return nil, false, nil
	}
	return arch.getComponentPtr(Safe, ci, index), true, nil
}
