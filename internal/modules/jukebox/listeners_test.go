package jukebox

import "testing"

func TestRegistryIdentifyIsOneWay(t *testing.T) {
	r := NewRegistry()
	l := r.Touch("sig-1")
	if l.Identified {
		t.Fatalf("new listener should be unidentified")
	}
	r.Touch("sig-2")
	r.Identify("sig-1", "u1", "frans")
	r.Touch("sig-1")

	got, ok := r.Get("sig-1")
	if !ok || !got.Identified || got.UserName != "frans" {
		t.Fatalf("unexpected listener %+v", got)
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 listeners, got %d", r.Len())
	}
	identified := r.Identified()
	if len(identified) != 1 || identified[0].Signature != "sig-1" {
		t.Fatalf("unexpected identified listeners %+v", identified)
	}
}
