package ecsforge

import "reflect"

// Resources is a small type-keyed singleton store for host-owned state that
// doesn't belong on any entity (a renderer handle, a random seed, frame
// timing). It does not recycle ids: resources are added once at world setup
// and rarely removed.
type Resources struct {
	items map[reflect.Type]any
}

func newResources() *Resources {
	return &Resources{items: make(map[reflect.Type]any)}
}

// AddResource stores res, keyed by its concrete type. Panics if a resource
// of that type is already present — resources are meant to be singletons.
func AddResource[T any](r *Resources, res *T) {
	t := reflect.TypeOf(res).Elem()
	if _, ok := r.items[t]; ok {
		panic("ecsforge: resource of type " + t.String() + " already added")
	}
	r.items[t] = res
}

// GetResource returns the resource of type T, or nil if none was added.
func GetResource[T any](r *Resources) *T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	v, ok := r.items[t]
	if !ok {
		return nil
	}
	return v.(*T)
}

// HasResource reports whether a resource of type T is present.
func HasResource[T any](r *Resources) bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	_, ok := r.items[t]
	return ok
}

// RemoveResource deletes the resource of type T, if present.
func RemoveResource[T any](r *Resources) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	delete(r.items, t)
}
