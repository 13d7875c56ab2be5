package rrp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "rrp/v1"

// Reply types.
const (
	ReplyOK    = "ok"
	ReplyError = "error"
)

// CommandEnvelope is the request envelope published on a node command topic.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// ReplyEnvelope answers exactly one command. Kind and What are set on errors.
type ReplyEnvelope struct {
	Ref  string          `json:"ref"`
	Type string          `json:"type"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Kind ErrorKind       `json:"id,omitempty"`
	What string          `json:"what,omitempty"`
}

// OK reports whether the reply is a success reply.
func (r ReplyEnvelope) OK() bool {
	return r.Type == ReplyOK
}

// Err returns the reply error, or nil for ok replies.
func (r ReplyEnvelope) Err() error {
	if r.OK() {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = KindInternal
	}
	return &Error{Kind: kind, What: r.What}
}

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	TS     int64          `json:"ts"`
}

// Event types published on the broadcast topic.
const (
	EventNowPlaying  = "now_playing"
	EventPlayerError = "player_error"
)

// Event is a broadcast payload. Only the fields relevant to Type are set.
type Event struct {
	Type         string   `json:"type"`
	CurrentTrack string   `json:"current_track,omitempty"`
	CurrentPos   *float64 `json:"current_pos,omitempty"`
	TrackLength  *float64 `json:"track_length,omitempty"`
	Title        string   `json:"title,omitempty"`
	Artist       string   `json:"artist,omitempty"`
	Album        string   `json:"album,omitempty"`
	What         string   `json:"what,omitempty"`
	TS           int64    `json:"ts"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required envelope fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) > 0 && !json.Valid(cmd.Body) {
		return errors.New("body must be valid json")
	}
	return nil
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicEvents builds the broadcast topic for a node.
func TopicEvents(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/evt", topicBase, nodeID)
}

// TopicReply builds the reply topic for a client instance.
func TopicReply(topicBase, clientID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, clientID)
}
