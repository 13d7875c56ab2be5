package rrp

import (
	"encoding/json"
	"testing"
)

func TestValidateCommandEnvelopeMissingFields(t *testing.T) {
	cmd := CommandEnvelope{}
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected error")
	}

	cmd, err := NewCommand(TypeSearch, SearchBody{})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	cmd.ID = "id"
	cmd.TS = 1
	cmd.From = "tester"
	if err := ValidateCommandEnvelope(cmd); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmd.Body = json.RawMessage(`{"query":`)
	if err := ValidateCommandEnvelope(cmd); err == nil {
		t.Fatalf("expected invalid body error")
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		body string
		want string
		kind ErrorKind
	}{
		{"hello", TypeHello, `{"user_id":"u1","user_name":"frans"}`, TypeHello, ""},
		{"hello missing name", TypeHello, `{"user_id":"u1"}`, "", KindNotIdentified},
		{"hello empty body", TypeHello, ``, "", KindNotIdentified},
		{"play", TypePlay, ``, TypePlay, ""},
		{"set volume", TypeSetVolume, `{"value":40}`, TypeSetVolume, ""},
		{"set volume missing", TypeSetVolume, `{}`, "", KindBadRequest},
		{"seek", TypeSeek, `{"position":12.5}`, TypeSeek, ""},
		{"seek missing", TypeSeek, `{}`, "", KindBadRequest},
		{"add tag", TypeAddTag, `{"tag_name":"ban","subject":"x"}`, TypeAddTag, ""},
		{"add tag missing name", TypeAddTag, `{"subject":"x"}`, "", KindBadRequest},
		{"search", TypeSearch, `{"query":"love"}`, TypeSearch, ""},
		{"search empty query", TypeSearch, `{"query":""}`, TypeSearch, ""},
		{"search missing", TypeSearch, `{}`, "", KindBadRequest},
		{"schedule missing", TypeSchedule, `{}`, "", KindBadRequest},
		{"activate", TypeActivateSmartlist, `{"name":"party"}`, TypeActivateSmartlist, ""},
		{"malformed body", TypeSearch, `[1,2]`, "", KindBadRequest},
		{"unknown", "dance", ``, "", KindBadRequest},
	}

	for _, test := range tests {
		cmd := CommandEnvelope{Type: test.typ, Body: json.RawMessage(test.body)}
		req, err := DecodeRequest(cmd)
		if test.kind != "" {
			if !IsKind(err, test.kind) {
				t.Fatalf("%s: expected %s, got %v", test.name, test.kind, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", test.name, err)
		}
		if req.RequestType() != test.want {
			t.Fatalf("%s: expected %s got %s", test.name, test.want, req.RequestType())
		}
	}
}

func TestReplyErr(t *testing.T) {
	reply := ReplyEnvelope{Type: ReplyError, Kind: KindNotIdentified, What: "say hello"}
	if KindOf(reply.Err()) != KindNotIdentified {
		t.Fatalf("expected not_identified")
	}
	if (ReplyEnvelope{Type: ReplyOK}).Err() != nil {
		t.Fatalf("expected nil error for ok reply")
	}

	payload, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(payload, &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wire["type"] != "error" || wire["id"] != "not_identified" || wire["what"] != "say hello" {
		t.Fatalf("unexpected wire reply: %s", payload)
	}
}
