package scoring

import (
	"sync"
	"testing"
)

func TestDirtyTracker_MarkAndClear(t *testing.T) {
	tracker := NewDirtyTracker()

	if tracker.IsDirty("p-1") {
		t.Error("new tracker should have no dirty people")
	}
	if tracker.DirtyCount() != 0 {
		t.Errorf("DirtyCount() = %d, want 0", tracker.DirtyCount())
	}

	tracker.MarkDirty("p-1")
	tracker.MarkDirty("p-2")

	if !tracker.IsDirty("p-1") {
		t.Error("p-1 should be dirty")
	}
	if !tracker.IsDirty("p-2") {
		t.Error("p-2 should be dirty")
	}
	if tracker.DirtyCount() != 2 {
		t.Errorf("DirtyCount() = %d, want 2", tracker.DirtyCount())
	}

	tracker.ClearDirty("p-1")

	if tracker.IsDirty("p-1") {
		t.Error("p-1 should be clear after ClearDirty")
	}
	if !tracker.IsDirty("p-2") {
		t.Error("p-2 should remain dirty")
	}
}

func TestDirtyTracker_MarkDirtyIdempotent(t *testing.T) {
	tracker := NewDirtyTracker()

	tracker.MarkDirty("p-1")
	tracker.MarkDirty("p-1")
	tracker.MarkDirty("p-1")

	if tracker.DirtyCount() != 1 {
		t.Errorf("DirtyCount() = %d, want 1", tracker.DirtyCount())
	}
}

func TestDirtyTracker_GetDirtyPeople(t *testing.T) {
	tracker := NewDirtyTracker()

	tracker.MarkDirty("p-1")
	tracker.MarkDirty("p-2")
	tracker.MarkDirty("p-3")

	people := tracker.GetDirtyPeople()
	if len(people) != 3 {
		t.Fatalf("expected 3 dirty people, got %d", len(people))
	}

	seen := make(map[string]bool)
	for _, id := range people {
		seen[id] = true
	}
	for _, want := range []string{"p-1", "p-2", "p-3"} {
		if !seen[want] {
			t.Errorf("missing dirty person %s", want)
		}
	}
}

func TestDirtyTracker_Concurrent(t *testing.T) {
	tracker := NewDirtyTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			tracker.MarkDirty("p-shared")
		}(i)
		go func(n int) {
			defer wg.Done()
			tracker.IsDirty("p-shared")
		}(i)
	}
	wg.Wait()

	if !tracker.IsDirty("p-shared") {
		t.Error("p-shared should be dirty after concurrent marks")
	}
}
