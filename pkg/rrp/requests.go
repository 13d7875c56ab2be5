package rrp

import (
	"encoding/json"
	"strings"
)

// Request types.
const (
	TypeHello             = "hello"
	TypePlay              = "play"
	TypeStop              = "stop"
	TypePause             = "pause"
	TypeSkip              = "skip"
	TypeVolumeUp          = "volup"
	TypeVolumeDown        = "voldown"
	TypeSetVolume         = "set_volume"
	TypeSeek              = "seek"
	TypeAdd               = "add"
	TypeAddTag            = "add_tag"
	TypeSearch            = "search"
	TypeSchedule          = "schedule"
	TypeQuit              = "quit"
	TypeSmartlists        = "smartlists"
	TypeActivateSmartlist = "activate_smartlist"
	TypeListeners         = "listeners"
)

// Tag names accepted from live requests.
const (
	TagBan    = "ban"
	TagUpvote = "upvote"
)

// Request is the closed set of decoded requests.
type Request interface {
	RequestType() string
}

// HelloBody is the payload for hello.
type HelloBody struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// SetVolumeBody is the payload for set_volume. Value is a percentage (0..100).
type SetVolumeBody struct {
	Value *float64 `json:"value"`
}

// SeekBody is the payload for seek. Position is in seconds.
type SeekBody struct {
	Position *float64 `json:"position"`
}

// AddBody is the payload for add.
type AddBody struct {
	URL string `json:"url,omitempty"`
}

// AddTagBody is the payload for add_tag.
type AddTagBody struct {
	TagName string `json:"tag_name"`
	Subject string `json:"subject,omitempty"`
}

// SearchBody is the payload for search.
type SearchBody struct {
	Query *string `json:"query"`
}

// ScheduleBody is the payload for schedule. Item is a track identifier.
type ScheduleBody struct {
	Item string `json:"item"`
}

// ActivateSmartlistBody is the payload for activate_smartlist.
type ActivateSmartlistBody struct {
	Name string `json:"name"`
}

type (
	Hello             HelloBody
	Play              struct{}
	Stop              struct{}
	Pause             struct{}
	Skip              struct{}
	VolumeUp          struct{}
	VolumeDown        struct{}
	SetVolume         struct{ Value float64 }
	Seek              struct{ Position float64 }
	Add               AddBody
	AddTag            AddTagBody
	Search            struct{ Query string }
	Schedule          ScheduleBody
	Quit              struct{}
	Smartlists        struct{}
	ActivateSmartlist ActivateSmartlistBody
	Listeners         struct{}
)

func (Hello) RequestType() string             { return TypeHello }
func (Play) RequestType() string              { return TypePlay }
func (Stop) RequestType() string              { return TypeStop }
func (Pause) RequestType() string             { return TypePause }
func (Skip) RequestType() string              { return TypeSkip }
func (VolumeUp) RequestType() string          { return TypeVolumeUp }
func (VolumeDown) RequestType() string        { return TypeVolumeDown }
func (SetVolume) RequestType() string         { return TypeSetVolume }
func (Seek) RequestType() string              { return TypeSeek }
func (Add) RequestType() string               { return TypeAdd }
func (AddTag) RequestType() string            { return TypeAddTag }
func (Search) RequestType() string            { return TypeSearch }
func (Schedule) RequestType() string          { return TypeSchedule }
func (Quit) RequestType() string              { return TypeQuit }
func (Smartlists) RequestType() string        { return TypeSmartlists }
func (ActivateSmartlist) RequestType() string { return TypeActivateSmartlist }
func (Listeners) RequestType() string         { return TypeListeners }

// KnownType reports whether t names a request type.
func KnownType(t string) bool {
	switch t {
	case TypeHello, TypePlay, TypeStop, TypePause, TypeSkip, TypeVolumeUp, TypeVolumeDown,
		TypeSetVolume, TypeSeek, TypeAdd, TypeAddTag, TypeSearch, TypeSchedule, TypeQuit,
		TypeSmartlists, TypeActivateSmartlist, TypeListeners:
		return true
	}
	return false
}

// DecodeRequest validates a command body and returns its typed request.
func DecodeRequest(cmd CommandEnvelope) (Request, error) {
	switch cmd.Type {
	case TypeHello:
		var body HelloBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.UserName) == "" {
			return nil, Errorf(KindNotIdentified, "hello requires user_id and user_name")
		}
		return Hello(body), nil
	case TypePlay:
		return Play{}, nil
	case TypeStop:
		return Stop{}, nil
	case TypePause:
		return Pause{}, nil
	case TypeSkip:
		return Skip{}, nil
	case TypeVolumeUp:
		return VolumeUp{}, nil
	case TypeVolumeDown:
		return VolumeDown{}, nil
	case TypeSetVolume:
		var body SetVolumeBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if body.Value == nil {
			return nil, Errorf(KindBadRequest, "value required")
		}
		return SetVolume{Value: *body.Value}, nil
	case TypeSeek:
		var body SeekBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if body.Position == nil {
			return nil, Errorf(KindBadRequest, "position required")
		}
		return Seek{Position: *body.Position}, nil
	case TypeAdd:
		var body AddBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		return Add(body), nil
	case TypeAddTag:
		var body AddTagBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.TagName) == "" {
			return nil, Errorf(KindBadRequest, "tag_name required")
		}
		return AddTag(body), nil
	case TypeSearch:
		var body SearchBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if body.Query == nil {
			return nil, Errorf(KindBadRequest, "query required")
		}
		return Search{Query: *body.Query}, nil
	case TypeSchedule:
		var body ScheduleBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.Item) == "" {
			return nil, Errorf(KindBadRequest, "item required")
		}
		return Schedule(body), nil
	case TypeQuit:
		return Quit{}, nil
	case TypeSmartlists:
		return Smartlists{}, nil
	case TypeActivateSmartlist:
		var body ActivateSmartlistBody
		if err := decodeBody(cmd.Body, &body); err != nil {
			return nil, err
		}
		if strings.TrimSpace(body.Name) == "" {
			return nil, Errorf(KindBadRequest, "name required")
		}
		return ActivateSmartlist(body), nil
	case TypeListeners:
		return Listeners{}, nil
	default:
		return nil, Errorf(KindBadRequest, "unknown command %q", cmd.Type)
	}
}

func decodeBody(body json.RawMessage, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return Errorf(KindBadRequest, "invalid body: %v", err)
	}
	return nil
}

// HelloReply is returned by hello.
type HelloReply struct {
	Server          string   `json:"server"`
	NodeID          string   `json:"node_id"`
	Version         string   `json:"version"`
	ActiveSmartlist string   `json:"active_smartlist"`
	Smartlists      []string `json:"smartlists"`
	CurrentTrack    string   `json:"current_track,omitempty"`
	CurrentPos      *float64 `json:"current_pos,omitempty"`
	TrackLength     *float64 `json:"track_length,omitempty"`
}

// AddReply is returned by add.
type AddReply struct {
	Implemented bool `json:"implemented"`
}

// SearchItem is one ranked search hit.
type SearchItem struct {
	Item   string `json:"item"`
	Folder string `json:"folder"`
	File   string `json:"file"`
	Score  int    `json:"score"`
}

// SearchReply is returned by search.
type SearchReply struct {
	Result []SearchItem `json:"result"`
}

// SmartlistsReply is returned by smartlists and activate_smartlist.
type SmartlistsReply struct {
	Active     string   `json:"active"`
	Smartlists []string `json:"smartlists"`
}

// ListenerInfo describes an identified listener.
type ListenerInfo struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// ListenersReply is returned by listeners.
type ListenersReply struct {
	Listeners []ListenerInfo `json:"listeners"`
}
