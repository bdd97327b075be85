package ecsforge

import (
	"reflect"
	"unsafe"
)

// archetype owns every entity whose live component set equals mask: one
// chunked SoA dataStorage instance, plus the dense entity array addressed by
// ArchetypeEntityIndex.
type archetype struct {
	world          *World
	id             ArchetypeIndex
	mask           ComponentIdMask
	componentIds   []ComponentId
	componentIndex map[ComponentId]ComponentIndex
	entities       []Entity
	storage        *dataStorage
	sharedValues   map[SharedComponentId]int // index into the owning World's per-id SimpleCache
}

// archetypeBuilder is a fluent constructor for an archetype's fixed shape:
// the world it belongs to, its index, and the component set it stores.
type archetypeBuilder struct {
	world *World
	id    ArchetypeIndex
	ids   []ComponentId
}

func newArchetypeBuilder() *archetypeBuilder { return &archetypeBuilder{} }

func (b *archetypeBuilder) WithWorld(w *World) *archetypeBuilder {
	b.world = w
	return b
}

func (b *archetypeBuilder) WithIndex(id ArchetypeIndex) *archetypeBuilder {
	b.id = id
	return b
}

func (b *archetypeBuilder) WithComponents(ids ...ComponentId) *archetypeBuilder {
	b.ids = append([]ComponentId(nil), ids...)
	return b
}

func (b *archetypeBuilder) Build() (*archetype, error) {
	types := make([]reflect.Type, len(b.ids))
	index := make(map[ComponentId]ComponentIndex, len(b.ids))
	var mask ComponentIdMask
	for i, id := range b.ids {
		info, ok := InfoOf(id)
		if !ok {
			return nil, ArchetypeAllocationError{Mask: mask, Err: MissingLifecycleFnError{Component: componentTypeLabel(id), Function: "registration"}}
		}
		// Component payload types are opaque to the core: columns are sized
		// from the registered ComponentInfo rather than a concrete Go type,
		// so the backing array element is a byte (or uint64, for
		// 8-byte-aligned components) array of the right width.
		types[i] = byteArrayType(info.Size, info.Align)
		index[id] = ComponentIndex(i)
		mask.Add(id)
	}

	return &archetype{
		world:          b.world,
		id:             b.id,
		mask:           mask,
		componentIds:   b.ids,
		componentIndex: index,
		storage:        newDataStorage(types),
		sharedValues:   make(map[SharedComponentId]int),
	}, nil
}

// byteArrayType builds a reflect.Type representing a component's raw
// storage cell: an array of `size` bytes. Go can't express arbitrary
// alignment directly; components with an alignment of 8 or more get a
// uint64 array (size rounded up to a multiple of 8), which covers every
// alignment a Go component payload needs.
func byteArrayType(size, align uintptr) reflect.Type {
	if size == 0 {
		return reflect.ArrayOf(0, reflect.TypeOf(byte(0)))
	}
	if align >= 8 {
		n := (size + 7) / 8
		return reflect.ArrayOf(int(n), reflect.TypeOf(uint64(0)))
	}
	return reflect.ArrayOf(int(size), reflect.TypeOf(byte(0)))
}

// ID returns the archetype's own index.
func (a *archetype) ID() ArchetypeIndex { return a.id }

// Size returns how many live entities the archetype currently holds.
func (a *archetype) Size() int { return len(a.entities) }

// Mask returns the archetype's component set.
func (a *archetype) Mask() ComponentIdMask { return a.mask }

// IsMatch reports whether mask ⊆ a.mask, the rule a query uses to resolve
// its required component set against each archetype.
func (a *archetype) IsMatch(required ComponentIdMask) bool {
	return required.IsSubsetOf(a.mask)
}

func (a *archetype) componentIndexOf(id ComponentId) (ComponentIndex, bool) {
	ci, ok := a.componentIndex[id]
	return ci, ok
}

// ComponentIndexOf resolves id to this archetype's column index, for
// callers (job callbacks) that only hold an ElementView/archetype
// reference and need to translate a ComponentId once per archetype.
func (a *archetype) ComponentIndexOf(id ComponentId) (ComponentIndex, bool) {
	return a.componentIndexOf(id)
}

// insert appends entity to the archetype. Every component in
// mask \ skipCtor has Create and AfterAssign invoked on its zeroed (or
// default-valued) storage cell; components in skipCtor are left to the
// caller to populate and finalize — the core still calls AfterAssign except
// when the caller opts out via skipCtor.
func (a *archetype) insert(entity Entity, skipCtor ComponentIdMask) (ArchetypeEntityIndex, error) {
	idx := a.storage.pushBack()
	a.entities = append(a.entities, entity)
	aei := ArchetypeEntityIndex(idx)

	for ci, id := range a.componentIds {
		info, _ := InfoOf(id)
		col := a.storage.columns[ci]
		chunkIdx, offset := a.storage.locate(idx)
		if len(info.Default) > 0 {
			col.writeDefault(Unsafe, chunkIdx, offset, info.Default)
		} else {
			col.zero(Unsafe, chunkIdx, offset)
		}
		if skipCtor.Contains(id) {
			continue
		}
		ptr := col.at(Unsafe, chunkIdx, offset)
		if info.Create != nil {
			info.Create(ptr, a.world, entity)
		}
		if info.AfterAssign != nil {
			info.AfterAssign(ptr, a.world, entity)
		}
	}
	return aei, nil
}

// externalMove transfers entity from prev[prevIndex] into this archetype.
// Components present in both archetypes are Move-transferred; components
// newly present here are Create'd (unless skipCtor); components only in
// prev are Destroy'd as part of prev's swap-remove.
func (a *archetype) externalMove(entity Entity, prev *archetype, prevIndex ArchetypeEntityIndex, skipCtor ComponentIdMask) (ArchetypeEntityIndex, Entity, bool, error) {
	idx := a.storage.pushBack()
	a.entities = append(a.entities, entity)
	aei := ArchetypeEntityIndex(idx)

	for ci, id := range a.componentIds {
		chunkIdx, offset := a.storage.locate(idx)
		col := a.storage.columns[ci]
		dst := col.at(Unsafe, chunkIdx, offset)

		if prevCI, ok := prev.componentIndexOf(id); ok {
			src := prev.storage.getData(Unsafe, prevCI, uint32(prevIndex))
			info, _ := InfoOf(id)
			switch {
			case info.Move != nil:
				info.Move(dst, src)
			case info.trivial:
				col.copyPointers(dst, src)
			default:
				return 0, Entity{}, false, MissingLifecycleFnError{Component: info.Name, Function: "Move"}
			}
			continue
		}

		info, _ := InfoOf(id)
		if len(info.Default) > 0 {
			col.writeDefault(Unsafe, chunkIdx, offset, info.Default)
		} else {
			col.zero(Unsafe, chunkIdx, offset)
		}
		if skipCtor.Contains(id) {
			continue
		}
		if info.Create != nil {
			info.Create(dst, a.world, entity)
		}
		if info.AfterAssign != nil {
			info.AfterAssign(dst, a.world, entity)
		}
	}

	destroyMask := prev.mask.Difference(a.mask)
	moved, movedOccurred, err := prev.removeForExternalMove(prevIndex, destroyMask)
	if err != nil {
		return 0, Entity{}, false, err
	}
	return aei, moved, movedOccurred, nil
}

// callDestructor runs Destroy for every component in `which` at index, in
// registered-id order, so destructor order is deterministic across runs.
func (a *archetype) callDestructor(index ArchetypeEntityIndex, which ComponentIdMask) {
	entity := a.entities[index]
	for ci, id := range a.componentIds {
		if !which.Contains(id) {
			continue
		}
		info, _ := InfoOf(id)
		if info.Destroy == nil {
			continue
		}
		ptr := a.storage.getData(Unsafe, ComponentIndex(ci), uint32(index))
		info.Destroy(ptr, a.world, entity)
	}
}

// swapRemoveRow performs an O(1) swap-with-last: the last live entity's
// component values are moved into index, then the archetype shrinks by one.
func (a *archetype) swapRemoveRow(index ArchetypeEntityIndex) (moved Entity, movedOccurred bool, err error) {
	lastIdx := ArchetypeEntityIndex(len(a.entities) - 1)
	if index != lastIdx {
		for ci, id := range a.componentIds {
			info, _ := InfoOf(id)
			col := a.storage.columns[ci]
			dst := a.storage.getData(Unsafe, ComponentIndex(ci), uint32(index))
			src := a.storage.getData(Unsafe, ComponentIndex(ci), uint32(lastIdx))
			switch {
			case info.Move != nil:
				info.Move(dst, src)
			case info.trivial:
				col.copyPointers(dst, src)
			default:
				return Entity{}, false, MissingLifecycleFnError{Component: info.Name, Function: "Move"}
			}
		}
		a.entities[index] = a.entities[lastIdx]
		moved = a.entities[index]
		movedOccurred = true
	}
	a.entities = a.entities[:lastIdx]
	a.storage.popBack()
	return moved, movedOccurred, nil
}

// remove destroys then swap-removes the entity at index; it is a
// precondition that a.entities[index] == entity.
func (a *archetype) remove(entity Entity, index ArchetypeEntityIndex) (Entity, bool, error) {
	if a.entities[index] != entity {
		return Entity{}, false, InvalidEntityError{Entity: entity}
	}
	a.callDestructor(index, a.mask)
	return a.swapRemoveRow(index)
}

// removeForExternalMove is remove's sibling for a structural move: it only
// destroys the components that are NOT transferred to the destination
// archetype (those were already Move'd out by the caller).
func (a *archetype) removeForExternalMove(index ArchetypeEntityIndex, destroyMask ComponentIdMask) (Entity, bool, error) {
	a.callDestructor(index, destroyMask)
	return a.swapRemoveRow(index)
}

// getComponentPtr returns a pointer to the component at componentIndex for
// the entity at index, without stamping a version (the read-only path).
func (a *archetype) getComponentPtr(safety Safety, componentIndex ComponentIndex, index ArchetypeEntityIndex) unsafe.Pointer {
	return a.storage.getData(safety, componentIndex, uint32(index))
}

// ElementView is a sequential-scan cursor over one archetype's entities. It
// deliberately does not bump versions; the job dispatcher (job.go) stamps a
// task's chunk once after the task completes instead of on every individual
// access.
type ElementView struct {
	arch  *archetype
	index ArchetypeEntityIndex
}

func (a *archetype) elementView(index ArchetypeEntityIndex) ElementView {
	return ElementView{arch: a, index: index}
}

// Entity returns the entity at this view's position.
func (v ElementView) Entity() Entity {
	return v.arch.entities[v.index]
}

// Archetype returns the archetype this view belongs to, so job callbacks
// can resolve ComponentId -> ComponentIndex once per archetype.
func (v ElementView) Archetype() *archetype {
	return v.arch
}

// Component returns a read-only pointer to the component at componentIndex
// for this view's entity, or nil if the archetype has no such column.
func (v ElementView) Component(componentIndex ComponentIndex) unsafe.Pointer {
	return v.arch.storage.getData(Safe, componentIndex, uint32(v.index))
}
