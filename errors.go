package ecsforge

import "fmt"

// InvalidEntityError reports that a handle's (id, version, world) does not
// match a currently live slot.
type InvalidEntityError struct {
	Entity Entity
}

func (e InvalidEntityError) Error() string {
	return fmt.Sprintf("invalid entity: %+v is not a live handle", e.Entity)
}

// InvalidDefaultError reports a component registered with a default-value
// byte string whose length does not equal the component's size.
type InvalidDefaultError struct {
	Name       string
	DefaultLen int
	Size       uintptr
}

func (e InvalidDefaultError) Error() string {
	return fmt.Sprintf("invalid default value for component %s: len=%d, want %d", e.Name, e.DefaultLen, e.Size)
}

// MissingLifecycleFnError reports that Copy or Move was invoked on a
// component descriptor that does not define it.
type MissingLifecycleFnError struct {
	Component string
	Function  string
}

func (e MissingLifecycleFnError) Error() string {
	return fmt.Sprintf("component %s has no %s function", e.Component, e.Function)
}

// ArchetypeAllocationError reports that a chunk allocation failed.
type ArchetypeAllocationError struct {
	Mask ComponentIdMask
	Err  error
}

func (e ArchetypeAllocationError) Error() string {
	return fmt.Sprintf("archetype allocation failed: %v", e.Err)
}

func (e ArchetypeAllocationError) Unwrap() error { return e.Err }

// StructuralChangeDuringIterationError reports that a structural mutation
// (assign/remove/destroy) was attempted while the world's dispatcher has a
// job in flight. The core refuses these outright rather than queuing them
// behind a command buffer.
type StructuralChangeDuringIterationError struct {
	Entity Entity
}

func (e StructuralChangeDuringIterationError) Error() string {
	return fmt.Sprintf("structural change on %+v attempted while a job is running", e.Entity)
}

// ComponentNotFoundError reports that an entity does not carry the queried
// component.
type ComponentNotFoundError struct {
	Entity    Entity
	Component ComponentId
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("entity %+v has no component %s", e.Entity, componentTypeLabel(e.Component))
}

// ParallelTaskError reports that a job's per-entity function panicked while
// running on a worker goroutine during a parallel dispatch. Per spec, the
// first observed failure is re-surfaced to the caller at the parallel-run
// barrier; later failures from other tasks are recorded (see Additional) but
// do not produce a second error.
type ParallelTaskError struct {
	TaskIndex  int
	ThreadID   int
	Recovered  any
	Additional int // count of further task panics swallowed after the first
}

func (e ParallelTaskError) Error() string {
	if e.Additional == 0 {
		return fmt.Sprintf("job task %d panicked on worker %d: %v", e.TaskIndex, e.ThreadID, e.Recovered)
	}
	return fmt.Sprintf("job task %d panicked on worker %d: %v (+%d more task failures)", e.TaskIndex, e.ThreadID, e.Recovered, e.Additional)
}

// UnregisteredParameterTypeError reports that ForEach's callback takes a
// parameter whose pointee type has no registered ComponentId, so no query
// mask can be derived from the function's signature.
type UnregisteredParameterTypeError struct {
	TypeName string
}

func (e UnregisteredParameterTypeError) Error() string {
	return fmt.Sprintf("for_each: parameter type %s has no registered component id", e.TypeName)
}
