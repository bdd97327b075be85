package ecsforge_test

import (
	"testing"

	"github.com/driftcore/ecsforge"
)

type foreachPos struct{ X, Y float64 }
type foreachVel struct{ X, Y float64 }

func TestForEachDerivesFilterFromSignature(t *testing.T) {
	world := ecsforge.NewWorld(0)
	em := world.Entities()

	posID := ecsforge.Register[foreachPos]()
	velID := ecsforge.Register[foreachVel]()

	const n = 64
	entities := make([]ecsforge.Entity, n)
	for i := 0; i < n; i++ {
		e, err := em.Create(func(b *ecsforge.Builder) {
			ecsforge.WithComponent(b, foreachPos{})
			ecsforge.WithComponent(b, foreachVel{X: 1, Y: 2})
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		entities[i] = e
	}

	visited := 0
	err := em.ForEach(func(pos *foreachPos, vel *foreachVel) {
		pos.X += vel.X
		pos.Y += vel.Y
		visited++
	}, ecsforge.CurrentThread())
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if visited != n {
		t.Fatalf("visited = %d, want %d", visited, n)
	}

	for _, e := range entities {
		pos, err := ecsforge.Get[foreachPos](em, e)
		if err != nil {
			t.Fatalf("entity missing position after ForEach: %v", err)
		}
		if pos.X != 1 || pos.Y != 2 {
			t.Fatalf("pos = %+v, want {1 2}", pos)
		}
	}
	_ = posID
	_ = velID
}

func TestForEachAcceptsEntityAndInvocationIndex(t *testing.T) {
	world := ecsforge.NewWorld(0)
	em := world.Entities()
	ecsforge.Register[foreachPos]()

	e, err := em.Create(func(b *ecsforge.Builder) {
		ecsforge.WithComponent(b, foreachPos{})
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var seen ecsforge.Entity
	var seenGlobal = -1
	err = em.ForEach(func(ent ecsforge.Entity, inv ecsforge.InvocationIndex, pos *foreachPos) {
		seen = ent
		seenGlobal = inv.GlobalIndex
		pos.X = 42
	}, ecsforge.CurrentThread())
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if seen != e {
		t.Fatalf("seen entity = %+v, want %+v", seen, e)
	}
	if seenGlobal != 0 {
		t.Fatalf("seenGlobal = %d, want 0", seenGlobal)
	}
	pos, _ := ecsforge.Get[foreachPos](em, e)
	if pos.X != 42 {
		t.Fatalf("pos.X = %v, want 42", pos.X)
	}
}

func TestForEachRejectsUnregisteredParameterType(t *testing.T) {
	world := ecsforge.NewWorld(0)
	em := world.Entities()

	type neverRegistered struct{ V int }
	err := em.ForEach(func(v *neverRegistered) {}, ecsforge.CurrentThread())
	if err == nil {
		t.Fatalf("expected an error for an unregistered parameter type")
	}
}

func TestRegisterArchetypeIsIdempotentByMask(t *testing.T) {
	world := ecsforge.NewWorld(0)
	em := world.Entities()

	posID := ecsforge.Register[foreachPos]()
	velID := ecsforge.Register[foreachVel]()
	mask := ecsforge.NewComponentIdMask(posID, velID)

	idx1, err := em.RegisterArchetype(mask)
	if err != nil {
		t.Fatalf("RegisterArchetype: %v", err)
	}
	idx2, err := em.RegisterArchetype(mask)
	if err != nil {
		t.Fatalf("RegisterArchetype: %v", err)
	}
	if idx1 != idx2 {
		t.Fatalf("RegisterArchetype for the same mask returned different indices: %v vs %v", idx1, idx2)
	}

	e, err := em.Create(func(b *ecsforge.Builder) {
		ecsforge.WithComponent(b, foreachPos{})
		ecsforge.WithComponent(b, foreachVel{})
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	arch, err := em.ArchetypeOf(e)
	if err != nil {
		t.Fatalf("locating entity archetype: %v", err)
	}
	if arch != idx1 {
		t.Fatalf("entity landed in archetype %v, want the pre-registered %v", arch, idx1)
	}
}
