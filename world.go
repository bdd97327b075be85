package ecsforge

import "sync"
import "sync/atomic"

// World binds an EntityManager, the process-wide registry it shares with
// every other world, and its own monotonic WorldVersion clock and Resources
// slot. Two worlds never interact: each gets its own EntityManager and
// version counter.
type World struct {
	id        WorldId
	entities  *EntityManager
	version   uint32 // atomic; advanced by Update
	paused    int32  // atomic bool
	resources *Resources

	sharedCachesMu sync.Mutex
	sharedCaches   map[SharedComponentId]any // SharedComponentId -> *SimpleCache[T]
}

var nextWorldID uint32

// NewWorld constructs an empty World. If id is zero it is assigned the next
// process-wide sequential WorldId from a package-level counter.
func NewWorld(id WorldId) *World {
	if id == 0 {
		id = WorldId(atomic.AddUint32(&nextWorldID, 1))
	}
	w := &World{id: id, resources: newResources(), sharedCaches: make(map[SharedComponentId]any)}
	w.entities = newEntityManager(w)
	return w
}

// ID returns this world's identifier.
func (w *World) ID() WorldId { return w.id }

// Entities returns the EntityManager owning this world's archetype table.
func (w *World) Entities() *EntityManager { return w.entities }

// Version returns the current WorldVersion tick.
func (w *World) Version() WorldVersion {
	return WorldVersion(atomic.LoadUint32(&w.version))
}

// Update advances the world's version by one. Hosts call this once per
// simulation step, before dispatching jobs that need a fresh last_version
// baseline.
func (w *World) Update() WorldVersion {
	return WorldVersion(atomic.AddUint32(&w.version, 1))
}

// Pause marks the world as paused. It is advisory: the core itself never
// consults it, since job dispatch and structural changes are the host's to
// gate; it exists so hosts built against this package share one flag
// instead of inventing their own.
func (w *World) Pause() { atomic.StoreInt32(&w.paused, 1) }

// Resume clears the paused flag set by Pause.
func (w *World) Resume() { atomic.StoreInt32(&w.paused, 0) }

// Paused reports whether Pause was called more recently than Resume.
func (w *World) Paused() bool { return atomic.LoadInt32(&w.paused) != 0 }

// Resources returns the world's singleton resource store.
func (w *World) Resources() *Resources { return w.resources }

// defaultSharedCacheCapacity bounds the number of distinct interned values
// per shared component id; SimpleCache requires a fixed maxCapacity at
// construction (cache.go), so this picks a generous ceiling rather than an
// unbounded growth policy.
const defaultSharedCacheCapacity = 1 << 16

// sharedCacheFor returns (creating if necessary) the per-world SimpleCache
// interning values for SharedComponentId id. Every SharedComponentId is
// registered for exactly one T (SharedRegister[T]), so the any stored here
// is always safe to assert back to *SimpleCache[T] at the call site.
func sharedCacheFor[T any](w *World, id SharedComponentId) *SimpleCache[T] {
	w.sharedCachesMu.Lock()
	defer w.sharedCachesMu.Unlock()
	if c, ok := w.sharedCaches[id]; ok {
		return c.(*SimpleCache[T])
	}
	c := NewCache[T](defaultSharedCacheCapacity)
	w.sharedCaches[id] = c
	return c
}
