package ecsforge

import "fmt"

// This file is the typed front-end: a set of generic helpers that
// monomorphize over concrete component types while the archetype/
// data-storage layers underneath stay byte-level.

// Get returns a pointer to entity's T component, or ComponentNotFoundError
// if it doesn't carry one.
func Get[T any](em *EntityManager, e Entity) (*T, error) {
	id := Register[T]()
	ptr, ok, err := em.componentPointer(e, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ComponentNotFoundError{Entity: e, Component: id}
	}
	return (*T)(ptr), nil
}

// Has reports whether entity currently carries a T component.
func Has[T any](em *EntityManager, e Entity) bool {
	id := Register[T]()
	arch, _, err := em.locate(e)
	if err != nil {
		return false
	}
	_, ok := arch.componentIndexOf(id)
	return ok
}

// Assign attaches value as entity's T component, moving it into the
// archetype for (current mask ∪ {T}) if it doesn't already carry one, or
// overwriting the existing value in place otherwise.
func Assign[T any](em *EntityManager, e Entity, value T) error {
	id := Register[T]()
	arch, index, err := em.locate(e)
	if err != nil {
		return err
	}
	if ci, ok := arch.componentIndexOf(id); ok {
		ptr := arch.getComponentPtr(Unsafe, ci, index)
		*(*T)(ptr) = value
		return nil
	}

	newMask := arch.mask
	newMask.Add(id)
	var skip ComponentIdMask
	skip.Add(id)
	if err := em.transition(e, newMask, skip); err != nil {
		return err
	}
	ptr, ok, err := em.componentPointer(e, id)
	if err != nil {
		return err
	}
	if ok {
		*(*T)(ptr) = value
	}
	return nil
}

// SharedAssign interns value as the shared component T for the archetype
// entity currently lives in: every entity sharing that archetype observes
// the same value. Values are interned through the world's per-
// SharedComponentId SimpleCache (cache.go), so two archetypes that assign
// an equal value share one backing slot instead of each holding a private
// copy.
func SharedAssign[T any](em *EntityManager, e Entity, value T) error {
	id := SharedRegister[T]()
	arch, _, err := em.locate(e)
	if err != nil {
		return err
	}
	cache := sharedCacheFor[T](em.world, id)
	key := fmt.Sprintf("%+v", value)
	idx, err := cache.Register(key, value)
	if err != nil {
		return err
	}
	arch.sharedValues[id] = idx
	return nil
}

// SharedGet returns the shared T component interned on entity's archetype,
// or ok=false if none was set.
func SharedGet[T any](em *EntityManager, e Entity) (value *T, ok bool) {
	id := SharedRegister[T]()
	arch, _, err := em.locate(e)
	if err != nil {
		return nil, false
	}
	idx, present := arch.sharedValues[id]
	if !present {
		return nil, false
	}
	cache := sharedCacheFor[T](em.world, id)
	return cache.GetItem(idx), true
}

// RemoveComponent detaches entity's T component, if present.
func RemoveComponent[T any](em *EntityManager, e Entity) error {
	id := Register[T]()
	arch, _, err := em.locate(e)
	if err != nil {
		return err
	}
	if _, ok := arch.componentIndexOf(id); !ok {
		return nil
	}
	newMask := arch.mask.Difference(NewComponentIdMask(id))
	return em.transition(e, newMask, ComponentIdMask{})
}
