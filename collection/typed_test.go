package collection_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mickamy/ormcoll/collection"
)

func TestElementsAs(t *testing.T) {
	t.Parallel()

	s := collection.NewSession()
	role := newRole("User.Scores", collection.List)
	it := joined(t, role, collection.NewColumns(0, 2).WithIndex(1), "User.Scores")
	runStatement(t, s, []collection.Row{{1, 0, int64(10)}, {1, 1, int32(20)}}, it)

	got, err := collection.ElementsAs[int](mustFind(t, s, role, 1))
	if err != nil {
		t.Fatalf("ElementsAs: %v", err)
	}
	if diff := cmp.Diff([]int{10, 20}, got); diff != "" {
		t.Errorf("ElementsAs mismatch (-want +got):\n%s", diff)
	}

	if _, err := collection.ElementsAs[string](mustFind(t, s, role, 1)); err == nil {
		t.Error("ElementsAs[string] of integers succeeded")
	}
}

func TestEntriesAs(t *testing.T) {
	t.Parallel()

	type setting string

	s := collection.NewSession()
	role := newRole("User.Settings", collection.Map)
	it := joined(t, role, collection.NewColumns(0, 2).WithIndex(1), "User.Settings")
	runStatement(t, s, []collection.Row{{1, []byte("theme"), "dark"}, {1, "lang", nil}}, it)

	got, err := collection.EntriesAs[string, setting](mustFind(t, s, role, 1))
	if err != nil {
		t.Fatalf("EntriesAs: %v", err)
	}
	want := map[string]setting{"theme": "dark", "lang": ""}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EntriesAs mismatch (-want +got):\n%s", diff)
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	type status string

	if got, err := collection.Convert[bool](int64(1)); err != nil || !got {
		t.Errorf("Convert[bool](1) = %v, %v", got, err)
	}
	if got, err := collection.Convert[status]("active"); err != nil || got != "active" {
		t.Errorf("Convert[status] = %q, %v", got, err)
	}
	got, err := collection.Convert[*int](int64(7))
	if err != nil || got == nil || *got != 7 {
		t.Errorf("Convert[*int](7) = %v, %v", got, err)
	}
	if got, err := collection.Convert[*int](nil); err != nil || got != nil {
		t.Errorf("Convert[*int](nil) = %v, %v", got, err)
	}
	if _, err := collection.Convert[int]("7"); err == nil {
		t.Error("Convert[int] of a string succeeded")
	}
}
