package ecsforge

import "unsafe"

// Builder coalesces a sequence of component assign/remove calls into a
// single archetype transition: it computes the final mask first, then
// performs one external move, so fewer intermediate archetypes are visited
// and no intermediate create/destroy pairs run for transient components. Go
// methods can't introduce their own type parameters, so the fluent
// `.Assign<C>(v)` chain becomes a set of package-level generic functions
// that take and return *Builder.
type Builder struct {
	em       *EntityManager
	entity   Entity
	base     ComponentIdMask
	addMask  ComponentIdMask
	delMask  ComponentIdMask
	pending  map[ComponentId]func(unsafe.Pointer)
	buildErr error
}

func newBuilder(em *EntityManager, entity Entity) *Builder {
	base := ComponentIdMask{}
	if arch, _, err := em.locate(entity); err == nil {
		base = arch.mask
	}
	return &Builder{
		em:      em,
		entity:  entity,
		base:    base,
		pending: make(map[ComponentId]func(unsafe.Pointer)),
	}
}

// Builder starts a coalesced structural-change sequence for an existing
// entity: stage assigns/removes on the returned *Builder, then call End.
func (em *EntityManager) Builder(e Entity) (*Builder, error) {
	if !em.IsAlive(e) {
		return nil, InvalidEntityError{Entity: e}
	}
	return newBuilder(em, e), nil
}

// WithComponent stages T as an assigned component: on End() it will be
// created in the destination archetype (skipping the registered Create
// hook, since the builder writes the payload directly) and set to value.
func WithComponent[T any](b *Builder, value T) *Builder {
	id := Register[T]()
	b.addMask.Add(id)
	b.delMask.Remove(id)
	v := value
	b.pending[id] = func(ptr unsafe.Pointer) { *(*T)(ptr) = v }
	return b
}

// WithoutComponent stages T for removal.
func WithoutComponent[T any](b *Builder) *Builder {
	id := Register[T]()
	b.delMask.Add(id)
	b.addMask.Remove(id)
	delete(b.pending, id)
	return b
}

// end applies every staged change as one archetype transition.
func (b *Builder) end() error {
	if b.buildErr != nil {
		return b.buildErr
	}
	finalMask := b.base.Union(b.addMask).Difference(b.delMask)
	if err := b.em.transition(b.entity, finalMask, b.addMask); err != nil {
		return err
	}
	if len(b.pending) == 0 {
		return nil
	}
	arch, index, err := b.em.locate(b.entity)
	if err != nil {
		return err
	}
	for id, write := range b.pending {
		ci, ok := arch.componentIndexOf(id)
		if !ok {
			continue
		}
		ptr := arch.getComponentPtr(Unsafe, ci, index)
		if ptr != nil {
			write(ptr)
		}
	}
	return nil
}

// End finalizes a Builder obtained from EntityManager.Builder. Create's own
// callback form calls end() automatically.
func (b *Builder) End() error {
	return b.end()
}
