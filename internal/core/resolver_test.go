package core

import (
	"context"
	"testing"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

func TestResolverAlias(t *testing.T) {
	presence := []rrp.Presence{{NodeID: "jukebox-1", Kind: KindJukebox, Name: "Living Room"}}
	resolver := Resolver{
		Presence: &stubBroker{presence: presence},
		Config: Config{
			Aliases: map[string]string{"livingroom": "jukebox-1"},
		},
	}
	got, err := resolver.ResolveJukebox(context.Background(), "livingroom")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "jukebox-1" {
		t.Fatalf("expected alias resolution")
	}
}

func TestResolverAmbiguous(t *testing.T) {
	presence := []rrp.Presence{
		{NodeID: "jukebox-1", Kind: KindJukebox, Name: "Living Room"},
		{NodeID: "jukebox-2", Kind: KindJukebox, Name: "Living Room"},
	}
	resolver := Resolver{Presence: &stubBroker{presence: presence}}
	_, err := resolver.ResolveJukebox(context.Background(), "Living Room")
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	if _, err := resolver.ResolveJukebox(context.Background(), ""); ExitCode(err) != ExitUsage {
		t.Fatalf("expected node required error, got %v", err)
	}
}

func TestResolverDefaults(t *testing.T) {
	presence := []rrp.Presence{
		{NodeID: "jukebox-1", Kind: KindJukebox, Name: "Den"},
		{NodeID: "other", Kind: "renderer", Name: "Den"},
	}
	resolver := Resolver{Presence: &stubBroker{presence: presence}}
	got, err := resolver.ResolveJukebox(context.Background(), "")
	if err != nil || got.NodeID != "jukebox-1" {
		t.Fatalf("expected single jukebox, got %+v %v", got, err)
	}

	resolver.Config.Node = "missing"
	if _, err := resolver.ResolveJukebox(context.Background(), ""); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	empty := Resolver{Presence: &stubBroker{}}
	if _, err := empty.ResolveJukebox(context.Background(), ""); ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not found with no jukebox, got %v", err)
	}
}
