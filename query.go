package ecsforge

// FilterResult is a (required_mask, check_mask, update_mask, last_version)
// tuple: everything the dispatcher needs to resolve a job's matching
// archetypes, skip unchanged chunks, and know which columns to stamp once
// a task completes. Built around masks rather than a predicate tree, since
// the query language here is a single conjunctive mask plus a
// change-detection window rather than boolean composition.
type FilterResult struct {
	Required    ComponentIdMask
	CheckMask   ComponentIdMask
	UpdateMask  ComponentIdMask
	LastVersion WorldVersion
}

// NewFilter starts a FilterResult requiring exactly the given components.
func NewFilter(required ...ComponentId) FilterResult {
	return FilterResult{Required: NewComponentIdMask(required...)}
}

// WithCheck returns a copy of fr that additionally only visits chunks whose
// version on any column in the given set is ≥ since. An empty check mask
// (the zero value) means "all chunks match".
func (fr FilterResult) WithCheck(since WorldVersion, columns ...ComponentId) FilterResult {
	fr.CheckMask = NewComponentIdMask(columns...)
	fr.LastVersion = since
	return fr
}

// WithUpdate returns a copy of fr whose dispatcher will stamp the given
// columns with the dispatching world's version once a task finishes.
func (fr FilterResult) WithUpdate(columns ...ComponentId) FilterResult {
	fr.UpdateMask = NewComponentIdMask(columns...)
	return fr
}

// Task is one contiguous, chunk-aligned entity range within a single
// archetype: the unit of work handed to the dispatcher.
type Task struct {
	arch  *archetype
	first ArchetypeEntityIndex
	count uint32
}

// Archetype exposes the owning archetype, mostly useful for tests and
// introspection.
func (t Task) Archetype() *archetype { return t.arch }

// Count returns how many entities this task covers.
func (t Task) Count() uint32 { return t.count }

// chunkMatches reports whether chunkIdx should be visited under fr's
// check_mask: empty check_mask always matches; otherwise at least one
// column in the mask must have version ≥ fr.LastVersion in this chunk.
func chunkMatches(a *archetype, fr FilterResult, chunkIdx int) bool {
	if fr.CheckMask.IsEmpty() {
		return true
	}
	for _, id := range fr.CheckMask.ids() {
		ci, ok := a.componentIndexOf(id)
		if !ok {
			continue
		}
		if a.storage.versions.get(int(ci), chunkIdx) >= fr.LastVersion {
			return true
		}
	}
	return false
}

// resolveTasks resolves a filter into tasks: every archetype with
// required_mask ⊆ archetype.mask contributes one Task per matching,
// chunk-aligned sub-range, in archetype-then-storage order.
func resolveTasks(em *EntityManager, fr FilterResult) []Task {
	em.mu.RLock()
	archetypes := append([]*archetype(nil), em.archetypes...)
	em.mu.RUnlock()

	var tasks []Task
	for _, a := range archetypes {
		size := a.Size()
		if size == 0 || !a.IsMatch(fr.Required) {
			continue
		}
		cap := a.storage.chunkCapacity
		chunkCount := (uint32(size) + cap - 1) / cap
		for chunkIdx := uint32(0); chunkIdx < chunkCount; chunkIdx++ {
			if !chunkMatches(a, fr, int(chunkIdx)) {
				continue
			}
			first := chunkIdx * cap
			count := cap
			if first+count > uint32(size) {
				count = uint32(size) - first
			}
			tasks = append(tasks, Task{arch: a, first: ArchetypeEntityIndex(first), count: count})
		}
	}
	return tasks
}

// partitionTasks splits tasks into at most taskCount groups, greedily
// balancing total entity count per group (longest-processing-time-first),
// so parallel dispatch is partitioned evenly by entity count.
func partitionTasks(tasks []Task, taskCount int) [][]int {
	if taskCount < 1 {
		taskCount = 1
	}
	if taskCount > len(tasks) {
		taskCount = len(tasks)
	}
	if taskCount == 0 {
		return nil
	}
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	// simple descending sort by count, stable enough for our purposes.
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && tasks[order[j]].count > tasks[order[j-1]].count; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
	groups := make([][]int, taskCount)
	loads := make([]uint32, taskCount)
	for _, idx := range order {
		min := 0
		for g := 1; g < taskCount; g++ {
			if loads[g] < loads[min] {
				min = g
			}
		}
		groups[min] = append(groups[min], idx)
		loads[min] += tasks[idx].count
	}
	return groups
}
