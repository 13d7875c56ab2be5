package rules

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

func TestBanMatching(t *testing.T) {
	now := time.Unix(1700000000, 0)
	pathBan, err := New("frans", TagBan, "folder/sub/file.mp3", nil, now)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if folder, file, ok := pathBan.Components(); !ok || folder != "folder/sub" || file != "file.mp3" {
		t.Fatalf("unexpected components %q %q %v", folder, file, ok)
	}
	if Matches(pathBan, "reykjavik", "some-other-track.opus") {
		t.Fatalf("path ban matched unrelated track")
	}
	if !Matches(pathBan, "/music/Folder/Sub", "File.mp3") {
		t.Fatalf("path ban should match its own track")
	}

	plain, err := New("frans", TagBan, "Michael Jackson", nil, now)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if plain.TagString != "michael jackson" {
		t.Fatalf("expected lower-cased subject, got %q", plain.TagString)
	}
	if _, _, ok := plain.Components(); ok {
		t.Fatalf("plain subject should not decompose")
	}
	if !Matches(plain, "/music/pop", "MICHAEL JACKSON - Bad.mp3") {
		t.Fatalf("plain ban should match filename case-insensitively")
	}
	if !Matches(plain, "/music/Michael Jackson/Thriller", "Beat It.mp3") {
		t.Fatalf("plain ban should match folder")
	}
	if Matches(plain, "/music/prince", "Purple Rain.mp3") {
		t.Fatalf("plain ban matched unrelated track")
	}
}

func TestDecompositionHeuristic(t *testing.T) {
	now := time.Now()
	tests := []struct {
		subject    string
		decomposed bool
	}{
		{"abba/waterloo.mp3", true},
		{"abba/greatest hits", false},
		{"abba", false},
		{"v1.0/track", false},
	}
	for _, test := range tests {
		r, err := New("x", TagBan, test.subject, nil, now)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if _, _, ok := r.Components(); ok != test.decomposed {
			t.Fatalf("%q: expected decomposed=%v", test.subject, test.decomposed)
		}
	}
}

func TestNewRejectsUnknownTag(t *testing.T) {
	if _, err := New("x", "love", "abba", nil, time.Now()); !rrp.IsKind(err, rrp.KindBadRequest) {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	pos := 93.25
	r, err := New("frans", TagBan, "abba/dancing, queen.mp3", &pos, time.Unix(1700000000, 123456789))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	line := Serialize(r)
	if line != "1700000000.123, frans, ban, abba/dancing, queen.mp3, 93.25" {
		t.Fatalf("unexpected line %q", line)
	}

	parsed, err := Parse(line + "\n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if math.Abs(parsed.Timestamp-r.Timestamp) > 0.001 {
		t.Fatalf("timestamp drift: %f vs %f", parsed.Timestamp, r.Timestamp)
	}
	if parsed.Listener != r.Listener || parsed.TagName != r.TagName || parsed.TagString != r.TagString {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, r)
	}
	if parsed.Position == nil || *parsed.Position != pos {
		t.Fatalf("position mismatch: %v", parsed.Position)
	}
	if folder, file, ok := parsed.Components(); !ok || folder != "abba" || file != "dancing, queen.mp3" {
		t.Fatalf("parsed components %q %q %v", folder, file, ok)
	}
}

func TestNewKeepsRuleOnOneLine(t *testing.T) {
	r, err := New("frans\r\nx", TagBan, "abba\nwaterloo", nil, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	line := Serialize(r)
	if strings.ContainsAny(line, "\r\n") {
		t.Fatalf("serialized rule spans lines: %q", line)
	}
	parsed, err := Parse(line)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.TagString != "abba waterloo" || parsed.Listener != "frans  x" {
		t.Fatalf("unexpected round trip %+v", parsed)
	}
	if Matches(parsed, "abba", "dancing queen.mp3") {
		t.Fatalf("subject broadened after round trip")
	}
}

func TestParseHistoricalTag(t *testing.T) {
	r, err := Parse("12.000, frans, skip, abba, 0.00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if r.TagName != "skip" {
		t.Fatalf("expected historical tag kept, got %q", r.TagName)
	}
	if Serialize(r) != "12.000, frans, skip, abba, 0.00" {
		t.Fatalf("historical rule did not round trip: %q", Serialize(r))
	}
	if Matches(r, "abba", "waterloo.mp3") {
		t.Fatalf("historical tag should not match")
	}
}

func TestParseMalformed(t *testing.T) {
	r, err := Parse("12.5, frans, ban")
	if err == nil {
		t.Fatalf("expected error")
	}
	if r.Timestamp != 12.5 || r.Listener != "frans" || r.TagName != TagBan {
		t.Fatalf("expected partial rule, got %+v", r)
	}
	if Matches(r, "anything", "at all.mp3") {
		t.Fatalf("empty subject must not match")
	}

	if _, err := Parse("soon, frans, ban, abba, later"); err == nil {
		t.Fatalf("expected number errors")
	}
}
