package ecsforge_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/driftcore/ecsforge"
)

type jobTestPosition struct{ X, Y, Z float64 }
type jobTestVelocity struct{ X, Y, Z float64 }
type jobTestTagA struct{}
type jobTestTagB struct{}
type jobTestTagC struct{}

func TestParallelJobMovesEveryEntity(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	posID := ecsforge.Register[jobTestPosition]()
	velID := ecsforge.Register[jobTestVelocity]()

	const n = 10000
	for i := 0; i < n; i++ {
		x := float64(i)
		_, err := em.Create(func(b *ecsforge.Builder) {
			ecsforge.WithComponent(b, jobTestPosition{X: x})
			ecsforge.WithComponent(b, jobTestVelocity{X: 1})
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	filter := ecsforge.NewFilter(posID, velID)
	dt := 0.5
	job := ecsforge.NewJob(filter, func(e ecsforge.Entity, view ecsforge.ElementView, inv ecsforge.InvocationIndex) {
		posCI, _ := view.Archetype().ComponentIndexOf(posID)
		velCI, _ := view.Archetype().ComponentIndexOf(velID)
		pos := (*jobTestPosition)(view.Component(posCI))
		vel := (*jobTestVelocity)(view.Component(velCI))
		pos.X += vel.X * dt
	})

	if err := job.Run(w, ecsforge.Parallel(4)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	count := 0
	verify := ecsforge.NewJob(filter, func(e ecsforge.Entity, view ecsforge.ElementView, inv ecsforge.InvocationIndex) {
		posCI, _ := view.Archetype().ComponentIndexOf(posID)
		pos := (*jobTestPosition)(view.Component(posCI))
		count++
		want := float64(inv.GlobalIndex) + 0.5
		if pos.X != want {
			t.Errorf("entity %d: got position.X=%v, want %v", inv.GlobalIndex, pos.X, want)
		}
	})
	if err := verify.Run(w, ecsforge.CurrentThread()); err != nil {
		t.Fatalf("verify Run: %v", err)
	}
	if count != n {
		t.Fatalf("visited %d entities, want %d", count, n)
	}
}

func TestChangeDetectionSkipsUnmodifiedChunks(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	aID := ecsforge.Register[jobTestTagA]()
	for i := 0; i < 100; i++ {
		if _, err := em.Create(func(b *ecsforge.Builder) { ecsforge.WithComponent(b, jobTestTagA{}) }); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	stampAt := w.Update()
	countVisits := func(filter ecsforge.FilterResult) int {
		var visits int32
		job := ecsforge.NewJob(filter, func(ecsforge.Entity, ecsforge.ElementView, ecsforge.InvocationIndex) {
			atomic.AddInt32(&visits, 1)
		})
		if err := job.Run(w, ecsforge.CurrentThread()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return int(visits)
	}

	// Stamp every chunk's A column to stampAt via an update_mask job.
	stampJob := countVisits(ecsforge.NewFilter(aID).WithUpdate(aID))
	if stampJob != 100 {
		t.Fatalf("stamping pass should visit every entity, got %d", stampJob)
	}

	// A check_mask whose last_version equals the stamp should still match
	// (version >= last_version).
	if got := countVisits(ecsforge.NewFilter(aID).WithCheck(stampAt, aID)); got != 100 {
		t.Fatalf("expected all chunks to match at the stamped version, got %d visits", got)
	}

	// Without any intervening mutation, a check_mask asking for versions
	// strictly after the stamp must visit 0 chunks.
	if got := countVisits(ecsforge.NewFilter(aID).WithCheck(stampAt+1, aID)); got != 0 {
		t.Fatalf("expected 0 visits with no intervening mutation, got %d", got)
	}
}

func TestParallelJobPanicSurfacesFirstFailureOnly(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	aID := ecsforge.Register[jobTestTagA]()
	for i := 0; i < 40; i++ {
		if _, err := em.Create(func(b *ecsforge.Builder) { ecsforge.WithComponent(b, jobTestTagA{}) }); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	job := ecsforge.NewJob(ecsforge.NewFilter(aID), func(ecsforge.Entity, ecsforge.ElementView, ecsforge.InvocationIndex) {
		panic("boom")
	})

	err := job.Run(w, ecsforge.Parallel(4))
	if err == nil {
		t.Fatalf("expected a panic from a parallel task to surface as an error")
	}
	var taskErr ecsforge.ParallelTaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected a ParallelTaskError, got %T: %v", err, err)
	}
	if taskErr.Recovered != "boom" {
		t.Fatalf("Recovered = %v, want %q", taskErr.Recovered, "boom")
	}

	// The world must remain usable after a panicking job: dispatch depth was
	// unwound by Run's deferred endDispatch even though tasks failed.
	if _, err := em.Create(func(b *ecsforge.Builder) { ecsforge.WithComponent(b, jobTestTagA{}) }); err != nil {
		t.Fatalf("Create after failed job: %v", err)
	}
}

func TestQueryMatchesSupersetArchetypes(t *testing.T) {
	w := ecsforge.NewWorld(0)
	em := w.Entities()

	aID := ecsforge.Register[jobTestTagA]()
	bID := ecsforge.Register[jobTestTagB]()
	cID := ecsforge.Register[jobTestTagC]()

	for i := 0; i < 5; i++ {
		if _, err := em.Create(func(b *ecsforge.Builder) {
			ecsforge.WithComponent(b, jobTestTagA{})
			ecsforge.WithComponent(b, jobTestTagB{})
		}); err != nil {
			t.Fatalf("Create AB: %v", err)
		}
	}
	for i := 0; i < 7; i++ {
		if _, err := em.Create(func(b *ecsforge.Builder) {
			ecsforge.WithComponent(b, jobTestTagA{})
			ecsforge.WithComponent(b, jobTestTagB{})
			ecsforge.WithComponent(b, jobTestTagC{})
		}); err != nil {
			t.Fatalf("Create ABC: %v", err)
		}
	}

	var abCount, abcCount int32
	abJob := ecsforge.NewJob(ecsforge.NewFilter(aID, bID), func(ecsforge.Entity, ecsforge.ElementView, ecsforge.InvocationIndex) {
		atomic.AddInt32(&abCount, 1)
	})
	abcJob := ecsforge.NewJob(ecsforge.NewFilter(aID, bID, cID), func(ecsforge.Entity, ecsforge.ElementView, ecsforge.InvocationIndex) {
		atomic.AddInt32(&abcCount, 1)
	})

	if err := abJob.Run(w, ecsforge.CurrentThread()); err != nil {
		t.Fatalf("ab Run: %v", err)
	}
	if err := abcJob.Run(w, ecsforge.CurrentThread()); err != nil {
		t.Fatalf("abc Run: %v", err)
	}

	if abCount != 12 {
		t.Fatalf("{A,B} job should visit both archetypes: got %d, want 12", abCount)
	}
	if abcCount != 7 {
		t.Fatalf("{A,B,C} job should visit only the triple archetype: got %d, want 7", abcCount)
	}
}
