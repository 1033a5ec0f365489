package order

import (
	"reflect"
	"sort"
	"testing"
)

func TestSaveGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	s.Save([]string{"b", "a", "c"})

	if got := s.Get(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("Get = %v", got)
	}

	// A fresh store reads the same file.
	if got := NewStore(dir).Get(); !reflect.DeepEqual(got, []string{"b", "a", "c"}) {
		t.Fatalf("reread Get = %v", got)
	}
}

func TestSaveDropsDuplicates(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Save([]string{"a", "b", "a", "", "b"})
	if got := s.Get(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Get = %v", got)
	}
}

func TestApplyOrdersKnownFirst(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Save([]string{"c", "a", "ghost"})

	got := s.Apply([]string{"a", "b", "c"})
	if !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Fatalf("Apply = %v", got)
	}
}

func TestApplyIsPermutation(t *testing.T) {
	s := NewStore(t.TempDir())
	s.Save([]string{"z", "x"})

	in := []string{"m", "x", "n", "z", "m2"}
	got := s.Apply(in)
	if len(got) != len(in) {
		t.Fatalf("Apply dropped names: %v", got)
	}
	a, b := append([]string{}, in...), append([]string{}, got...)
	sort.Strings(a)
	sort.Strings(b)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Apply not a permutation: in=%v out=%v", in, got)
	}
}

func TestApplyEmptySaved(t *testing.T) {
	s := NewStore(t.TempDir())
	in := []string{"a", "b"}
	if got := s.Apply(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("Apply = %v, want server order", got)
	}
}

func TestGetMissingFile(t *testing.T) {
	s := NewStore(t.TempDir())
	if got := s.Get(); len(got) != 0 {
		t.Fatalf("Get = %v, want empty", got)
	}
}
