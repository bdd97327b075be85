package ecsforge

import (
	"reflect"

	"github.com/TheBitDrifter/bark"
)

var (
	entityType          = reflect.TypeOf(Entity{})
	invocationIndexType = reflect.TypeOf(InvocationIndex{})
)

// ForEach builds a transient Job from fn's parameter types instead of
// requiring the caller to name a FilterResult and write ElementView/
// ComponentIndex plumbing by hand.
//
// fn must be a func whose parameters are drawn from: Entity, InvocationIndex,
// and pointers to registered component types (in any order, any subset).
// Every pointer parameter becomes part of the job's required/update mask —
// for_each always both reads and writes the components it asks for, since
// it hands the callback a live pointer into storage.
func (em *EntityManager) ForEach(fn any, mode RunMode) error {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return bark.AddTrace(UnregisteredParameterTypeError{TypeName: ft.String()})
	}

	type paramBinding struct {
		kind int // 0 = entity, 1 = invocation index, 2 = component
		id   ComponentId
		elem reflect.Type
	}

	numIn := ft.NumIn()
	bindings := make([]paramBinding, numIn)
	var required ComponentIdMask

	for i := 0; i < numIn; i++ {
		pt := ft.In(i)
		switch {
		case pt == entityType:
			bindings[i] = paramBinding{kind: 0}
		case pt == invocationIndexType:
			bindings[i] = paramBinding{kind: 1}
		case pt.Kind() == reflect.Ptr:
			elem := pt.Elem()
			id, ok := componentIdForType(elem)
			if !ok {
				return bark.AddTrace(UnregisteredParameterTypeError{TypeName: elem.String()})
			}
			bindings[i] = paramBinding{kind: 2, id: id, elem: elem}
			required.Add(id)
		default:
			return bark.AddTrace(UnregisteredParameterTypeError{TypeName: pt.String()})
		}
	}

	filter := NewFilter(required.ids()...).WithUpdate(required.ids()...)

	job := NewJob(filter, func(entity Entity, view ElementView, inv InvocationIndex) {
		arch := view.Archetype()
		args := make([]reflect.Value, numIn)
		for i, b := range bindings {
			switch b.kind {
			case 0:
				args[i] = reflect.ValueOf(entity)
			case 1:
				args[i] = reflect.ValueOf(inv)
			case 2:
				// Resolved per archetype, not cached on bindings: a query can
				// match archetypes with extra components, so the same
				// required ComponentId can sit at a different column index
				// depending on which archetype the current entity lives in.
				ci, _ := arch.ComponentIndexOf(b.id)
				args[i] = reflect.NewAt(b.elem, view.Component(ci))
			}
		}
		fv.Call(args)
	})

	return job.Run(em.world, mode)
}

// RegisterArchetype returns (creating if necessary) the ArchetypeIndex for
// exactly the component set in mask. Callers that know their archetype
// shapes ahead of time use this to pre-warm storage before any entity is
// created with that shape.
func (em *EntityManager) RegisterArchetype(mask ComponentIdMask) (ArchetypeIndex, error) {
	arch, err := em.archetypeFor(mask, mask.ids())
	if err != nil {
		return 0, err
	}
	return arch.ID(), nil
}
