package ecsforge_test

import (
	"testing"

	"github.com/driftcore/ecsforge"
)

type genTestPosition struct{ X, Y float64 }
type genTestVelocity struct{ X, Y float64 }
type genTestTag struct{}

func TestAssignGetRoundTrip(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	e, err := em.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	want := genTestPosition{X: 1, Y: 2}
	if err := ecsforge.Assign(em, e, want); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	got, err := ecsforge.Get[genTestPosition](em, e)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != want {
		t.Fatalf("got %+v, want %+v", *got, want)
	}
}

func TestAssignRemoveAssignRoundTrip(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	e, err := em.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	v := genTestVelocity{X: 3, Y: 4}
	if err := ecsforge.Assign(em, e, v); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := ecsforge.RemoveComponent[genTestVelocity](em, e); err != nil {
		t.Fatalf("RemoveComponent: %v", err)
	}
	if ecsforge.Has[genTestVelocity](em, e) {
		t.Fatalf("expected component removed")
	}
	if err := ecsforge.Assign(em, e, v); err != nil {
		t.Fatalf("second Assign: %v", err)
	}
	got, err := ecsforge.Get[genTestVelocity](em, e)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if *got != v {
		t.Fatalf("got %+v, want %+v", *got, v)
	}
}

func TestAssignRemoveSequencePreservesUntouchedComponents(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	e, err := em.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pos := genTestPosition{X: 9, Y: 9}
	if err := ecsforge.Assign(em, e, pos); err != nil {
		t.Fatalf("Assign Position: %v", err)
	}

	if err := ecsforge.Assign(em, e, genTestTag{}); err != nil {
		t.Fatalf("Assign Tag: %v", err)
	}
	if err := ecsforge.RemoveComponent[genTestTag](em, e); err != nil {
		t.Fatalf("RemoveComponent Tag: %v", err)
	}

	got, err := ecsforge.Get[genTestPosition](em, e)
	if err != nil {
		t.Fatalf("Get Position after unrelated assign/remove: %v", err)
	}
	if *got != pos {
		t.Fatalf("Position mutated by unrelated assign/remove cycle: got %+v, want %+v", *got, pos)
	}
}

func TestBuilderCoalescesIntoOneTransition(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	pos := genTestPosition{X: 1, Y: 1}
	vel := genTestVelocity{X: 2, Y: 2}

	e, err := em.Create(func(b *ecsforge.Builder) {
		ecsforge.WithComponent(b, pos)
		ecsforge.WithComponent(b, vel)
	})
	if err != nil {
		t.Fatalf("Create with builder: %v", err)
	}
	// Only the empty archetype and {Position, Velocity} exist: no
	// intermediate {Position} archetype was visited.
	if n := len(w.Stats().Archetypes); n != 2 {
		t.Fatalf("archetype count = %d, want 2 (empty + final)", n)
	}

	gotPos, err := ecsforge.Get[genTestPosition](em, e)
	if err != nil {
		t.Fatalf("Get Position: %v", err)
	}
	if *gotPos != pos {
		t.Fatalf("got %+v, want %+v", *gotPos, pos)
	}
	gotVel, err := ecsforge.Get[genTestVelocity](em, e)
	if err != nil {
		t.Fatalf("Get Velocity: %v", err)
	}
	if *gotVel != vel {
		t.Fatalf("got %+v, want %+v", *gotVel, vel)
	}
}

func TestBuilderOnExistingEntityCoalescesAssignAndRemove(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	pos := genTestPosition{X: 1, Y: 1}
	e, err := em.Create(func(b *ecsforge.Builder) {
		ecsforge.WithComponent(b, pos)
		ecsforge.WithComponent(b, genTestTag{})
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b, err := em.Builder(e)
	if err != nil {
		t.Fatalf("Builder: %v", err)
	}
	vel := genTestVelocity{X: 2, Y: 3}
	ecsforge.WithComponent(b, vel)
	ecsforge.WithoutComponent[genTestTag](b)
	if err := b.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	// empty, {Position, Tag} and {Position, Velocity}: no intermediate
	// {Position, Tag, Velocity} archetype was created.
	if n := len(w.Stats().Archetypes); n != 3 {
		t.Fatalf("archetype count = %d, want 3", n)
	}

	if ecsforge.Has[genTestTag](em, e) {
		t.Fatalf("expected Tag removed by the builder's single transition")
	}
	gotVel, err := ecsforge.Get[genTestVelocity](em, e)
	if err != nil {
		t.Fatalf("Get Velocity: %v", err)
	}
	if *gotVel != vel {
		t.Fatalf("got %+v, want %+v", *gotVel, vel)
	}
	gotPos, err := ecsforge.Get[genTestPosition](em, e)
	if err != nil {
		t.Fatalf("Get Position: %v", err)
	}
	if *gotPos != pos {
		t.Fatalf("Position untouched by the builder's add/remove of other components: got %+v, want %+v", *gotPos, pos)
	}

	if _, err := em.Builder(ecsforge.Entity{}); err == nil {
		t.Fatalf("expected InvalidEntityError from Builder on a stale handle")
	}
}

func TestSharedComponentIsPerArchetype(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	e1, _ := em.Create(func(b *ecsforge.Builder) { ecsforge.WithComponent(b, genTestTag{}) })
	e2, _ := em.Create(func(b *ecsforge.Builder) { ecsforge.WithComponent(b, genTestTag{}) })

	if err := ecsforge.SharedAssign(em, e1, genTestPosition{X: 5, Y: 5}); err != nil {
		t.Fatalf("SharedAssign: %v", err)
	}
	got, ok := ecsforge.SharedGet[genTestPosition](em, e2)
	if !ok {
		t.Fatalf("expected shared value visible to archetype-mate")
	}
	if got.X != 5 || got.Y != 5 {
		t.Fatalf("got %+v", *got)
	}
}
