package ecsforge

// WorldStats is an introspection snapshot of a World. It exists for
// debugging and tests, not for anything the core itself consults.
type WorldStats struct {
	Entities       EntityStats
	ComponentCount int
	Archetypes     []ArchetypeStats
}

// EntityStats summarizes a World's entity slot table.
type EntityStats struct {
	Used     int
	Capacity int
	Recycled int
}

// ArchetypeStats summarizes one archetype.
type ArchetypeStats struct {
	Size         int
	ChunkCount   int
	Capacity     int
	Components   int
	ComponentIDs []ComponentId
}

// Stats builds a WorldStats snapshot of w's current state. It takes the
// EntityManager's read lock for the duration, so callers should not invoke
// it from inside a running job.
func (w *World) Stats() WorldStats {
	em := w.entities
	em.mu.RLock()
	defer em.mu.RUnlock()

	s := WorldStats{
		ComponentCount: RegisteredComponentCount(),
		Entities: EntityStats{
			Used:     len(em.slots) - int(em.freeCount),
			Capacity: len(em.slots),
			Recycled: int(em.freeCount),
		},
	}
	for _, a := range em.archetypes {
		s.Archetypes = append(s.Archetypes, ArchetypeStats{
			Size:         a.Size(),
			ChunkCount:   a.storage.chunkCount,
			Capacity:     int(a.storage.chunkCapacity) * a.storage.chunkCount,
			Components:   len(a.componentIds),
			ComponentIDs: append([]ComponentId(nil), a.componentIds...),
		})
	}
	return s
}
