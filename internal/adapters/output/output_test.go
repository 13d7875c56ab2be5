package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/rrplayer/internal/core"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

func init() {
	pterm.DisableStyling()
}

func TestHumanStatus(t *testing.T) {
	pos, length := 65.0, 200.0
	var buf bytes.Buffer
	err := HumanPrinter{Out: &buf}.Print(core.StatusResult{Hello: rrp.HelloReply{
		Server:          "den",
		Version:         "dev",
		ActiveSmartlist: "party",
		CurrentTrack:    "/music:abba:waterloo.mp3",
		CurrentPos:      &pos,
		TrackLength:     &length,
	}})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"den", "[party]", "abba/waterloo.mp3", "1:05/3:20"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
}

func TestHumanStatusIdle(t *testing.T) {
	var buf bytes.Buffer
	if err := (HumanPrinter{Out: &buf}).Print(core.StatusResult{Hello: rrp.HelloReply{Server: "den"}}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), "idle") {
		t.Fatalf("expected idle, got %q", buf.String())
	}
}

func TestHumanSearchTable(t *testing.T) {
	var buf bytes.Buffer
	err := HumanPrinter{Out: &buf}.Print(core.SearchResult{Query: "abba", Items: []rrp.SearchItem{
		{Item: "/music:abba:waterloo.mp3", Folder: "abba", File: "waterloo.mp3", Score: 1},
	}})
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), "SCORE") || !strings.Contains(buf.String(), "waterloo.mp3") {
		t.Fatalf("unexpected table %q", buf.String())
	}

	buf.Reset()
	if err := (HumanPrinter{Out: &buf}).Print(core.SearchResult{Query: "zzz"}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if !strings.Contains(buf.String(), "no matches") {
		t.Fatalf("unexpected empty output %q", buf.String())
	}
}

func TestHumanEvent(t *testing.T) {
	var buf bytes.Buffer
	p := HumanPrinter{Out: &buf}
	if err := p.Print(core.EventResult{Event: rrp.Event{Type: rrp.EventNowPlaying, CurrentTrack: "/music:.:intro.mp3", Artist: "ABBA", Title: "Waterloo"}}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if err := p.Print(core.EventResult{Event: rrp.Event{Type: rrp.EventPlayerError, What: "vlc unreachable"}}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if err := p.Print(core.EventResult{Event: rrp.Event{Type: rrp.EventNowPlaying}}); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ABBA - Waterloo") || !strings.Contains(out, "vlc unreachable") || !strings.HasSuffix(out, "idle\n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestHumanDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := (HumanPrinter{Out: &buf}).Print(struct{}{}); err != nil {
		t.Fatalf("print: %v", err)
	}
	if buf.String() != "ok\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestJSONPrinter(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONPrinter{Out: &buf}).Print(core.SmartlistsResult{Active: "party", Smartlists: []string{"party"}}); err != nil {
		t.Fatalf("print: %v", err)
	}
	var decoded core.SmartlistsResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Active != "party" {
		t.Fatalf("unexpected decoded %+v", decoded)
	}
}

func TestFormatPosition(t *testing.T) {
	pos := 7.4
	if got := formatPosition(&pos, nil); got != "0:07" {
		t.Fatalf("unexpected %q", got)
	}
	if got := formatPosition(nil, nil); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
