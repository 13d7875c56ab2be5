package rules

import (
	"fmt"
	"testing"
	"time"
)

func TestSetBannedOnlyConsidersBans(t *testing.T) {
	now := time.Now()
	up, _ := New("frans", TagUpvote, "/music:abba:waterloo.mp3", nil, now)
	set := NewSet("party", []Rule{up})
	if set.Banned("/music/abba", "waterloo.mp3") {
		t.Fatalf("upvote should not ban")
	}
	if set.Dirty() {
		t.Fatalf("loaded set should be clean")
	}

	ban, _ := New("frans", TagBan, "abba", nil, now)
	set.Add(ban)
	if !set.Dirty() {
		t.Fatalf("expected dirty after add")
	}
	if !set.Banned("/music/ABBA", "waterloo.mp3") {
		t.Fatalf("expected ban match")
	}
	recent := set.Recent()
	if len(recent) != 1 || recent[0].Folder != "/music/ABBA" || recent[0].Rule != "abba" {
		t.Fatalf("unexpected diagnostics %+v", recent)
	}
	set.MarkClean()
	if set.Dirty() {
		t.Fatalf("expected clean")
	}
}

func TestSetRecentIsBounded(t *testing.T) {
	ban, _ := New("frans", TagBan, "x", nil, time.Now())
	set := NewSet("unspecified", []Rule{ban})
	for i := 0; i < recentMatches+5; i++ {
		set.Banned("x", fmt.Sprintf("%d.mp3", i))
	}
	recent := set.Recent()
	if len(recent) != recentMatches {
		t.Fatalf("expected %d entries, got %d", recentMatches, len(recent))
	}
	if recent[0].File != "5.mp3" || recent[len(recent)-1].File != fmt.Sprintf("%d.mp3", recentMatches+4) {
		t.Fatalf("unexpected ring order: first=%s last=%s", recent[0].File, recent[len(recent)-1].File)
	}
}
