package ecsforge

import (
	"sync"
	"sync/atomic"
)

// InvocationIndex identifies one per-entity invocation within a dispatch:
// (task_index, entity_index_in_task, thread_id, global entity index).
type InvocationIndex struct {
	TaskIndex         int
	EntityIndexInTask int
	ThreadID          int
	GlobalIndex       int
}

// RunMode selects current-thread or parallel(task_count) dispatch for a
// job's run(world, run_mode) call.
type RunMode struct {
	parallel  bool
	taskCount int
}

// CurrentThread runs a job's tasks sequentially on the calling goroutine.
func CurrentThread() RunMode { return RunMode{} }

// Parallel runs a job's tasks across up to taskCount workers, using stdlib
// goroutines + WaitGroup for the fixed-size pool.
func Parallel(taskCount int) RunMode { return RunMode{parallel: true, taskCount: taskCount} }

// JobFunc is the per-entity callable a Job fans across matching tasks.
// ElementView gives read access to every component column of the
// archetype the entity lives in; callers resolve their required/optional
// ComponentIndex values via view.Archetype().ComponentIndexOf.
type JobFunc func(entity Entity, view ElementView, inv InvocationIndex)

// Job binds a FilterResult to a per-entity callable, plus the two hooks
// UpdateMask()/CheckMask() that describe which columns it reads and writes.
type Job struct {
	filter FilterResult
	fn     JobFunc
}

// NewJob constructs a job from a filter and a per-entity callback.
func NewJob(filter FilterResult, fn JobFunc) *Job {
	return &Job{filter: filter, fn: fn}
}

// CheckMask returns the job's change-detection read set.
func (j *Job) CheckMask() ComponentIdMask { return j.filter.CheckMask }

// UpdateMask returns the columns this job's dispatch will stamp.
func (j *Job) UpdateMask() ComponentIdMask { return j.filter.UpdateMask }

// Run resolves j's FilterResult against world's current archetype table
// and fans fn across the resulting tasks in mode. Structural changes are
// refused for the duration via EntityManager's dispatch guard: no command
// buffer hides mutation during iteration.
func (j *Job) Run(world *World, mode RunMode) error {
	em := world.Entities()
	em.beginDispatch()
	defer em.endDispatch()

	tasks := resolveTasks(em, j.filter)
	if len(tasks) == 0 {
		return nil
	}
	version := world.Version()

	offsets := make([]int, len(tasks))
	running := 0
	for i, t := range tasks {
		offsets[i] = running
		running += int(t.count)
	}

	runOne := func(taskIndex, threadID int) {
		t := tasks[taskIndex]
		for i := uint32(0); i < t.count; i++ {
			idx := t.first + ArchetypeEntityIndex(i)
			entity := t.arch.entities[idx]
			inv := InvocationIndex{
				TaskIndex:         taskIndex,
				EntityIndexInTask: int(i),
				ThreadID:          threadID,
				GlobalIndex:       offsets[taskIndex] + int(i),
			}
			j.fn(entity, t.arch.elementView(idx), inv)
		}
		stampUpdateMask(t, j.filter.UpdateMask, version)
	}

	if !mode.parallel || mode.taskCount <= 1 {
		for ti := range tasks {
			runOne(ti, 0)
		}
		return nil
	}

	// Parallel dispatch: a task's per-entity function panicking must not take
	// down the whole process. The first observed failure is re-surfaced to
	// the caller once every task has finished; later failures are recorded
	// (Additional) but do not produce a second error, matching spec §7's
	// wait_for_parallel_finish propagation rule.
	var failureCount int32
	var firstFailure atomic.Value // holds ParallelTaskError

	safeRunOne := func(taskIndex, threadID int) {
		defer func() {
			if r := recover(); r != nil {
				if atomic.AddInt32(&failureCount, 1) == 1 {
					firstFailure.Store(ParallelTaskError{TaskIndex: taskIndex, ThreadID: threadID, Recovered: r})
				}
			}
		}()
		runOne(taskIndex, threadID)
	}

	groups := partitionTasks(tasks, mode.taskCount)
	var wg sync.WaitGroup
	for threadID, group := range groups {
		if len(group) == 0 {
			continue
		}
		wg.Add(1)
		go func(threadID int, group []int) {
			defer wg.Done()
			for _, ti := range group {
				safeRunOne(ti, threadID)
			}
		}(threadID, group)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&failureCount); n > 0 {
		failure := firstFailure.Load().(ParallelTaskError)
		failure.Additional = int(n) - 1
		return failure
	}
	return nil
}

// stampUpdateMask advances the version of task t's single chunk, for every
// column in updateMask, to `version`. Chunk versions are non-decreasing.
func stampUpdateMask(t Task, updateMask ComponentIdMask, version WorldVersion) {
	if updateMask.IsEmpty() {
		return
	}
	chunkIdx := int(t.first / t.arch.storage.chunkCapacity)
	for _, id := range updateMask.ids() {
		ci, ok := t.arch.componentIndexOf(id)
		if !ok {
			continue
		}
		t.arch.storage.versions.stamp(int(ci), chunkIdx, version)
	}
}
