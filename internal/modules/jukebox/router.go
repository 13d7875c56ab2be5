package jukebox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mikey-austin/rrplayer/internal/playback"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

// dispatch turns one command into exactly one reply. It never panics.
func (m *Module) dispatch(cmd rrp.CommandEnvelope) (reply rrp.ReplyEnvelope, quit bool) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("dispatch panic", zap.String("type", cmd.Type), zap.Any("panic", r))
			reply = errorReply(cmd, rrp.Errorf(rrp.KindInternal, "unexpected failure handling %s", cmd.Type))
			quit = false
		}
	}()

	if err := rrp.ValidateCommandEnvelope(cmd); err != nil {
		return errorReply(cmd, rrp.Errorf(rrp.KindBadRequest, "%v", err)), false
	}

	listener := m.listeners.Touch(cmd.From)
	if cmd.Type != rrp.TypeHello && rrp.KnownType(cmd.Type) && !listener.Identified {
		return errorReply(cmd, rrp.Errorf(rrp.KindNotIdentified, "send hello first")), false
	}

	req, err := rrp.DecodeRequest(cmd)
	if err != nil {
		return errorReply(cmd, err), false
	}

	body, err := m.handle(listener, req)
	if err != nil {
		if rrp.KindOf(err) == rrp.KindInternal {
			m.log.Error("command failed", zap.String("type", cmd.Type), zap.Error(err))
		} else {
			m.log.Debug("command rejected", zap.String("type", cmd.Type), zap.Error(err))
		}
		return errorReply(cmd, err), false
	}
	_, quit = req.(rrp.Quit)
	return okReply(cmd, body), quit
}

func (m *Module) handle(listener Listener, req rrp.Request) (any, error) {
	switch req := req.(type) {
	case rrp.Hello:
		l := m.listeners.Identify(listener.Signature, req.UserID, req.UserName)
		m.log.Info("listener identified", zap.String("user_id", l.UserID), zap.String("user_name", l.UserName))
		return m.helloReply(), nil
	case rrp.Play:
		return nil, m.submit(playback.Play{})
	case rrp.Pause:
		return nil, m.submit(playback.Pause{})
	case rrp.Skip:
		return nil, m.submit(playback.Skip{})
	case rrp.VolumeUp:
		return nil, m.submit(playback.VolumeUp{})
	case rrp.VolumeDown:
		return nil, m.submit(playback.VolumeDown{})
	case rrp.SetVolume:
		if req.Value < 0 || req.Value > 100 {
			return nil, rrp.Errorf(rrp.KindInvalidValue, "volume %.0f outside 0..100", req.Value)
		}
		return nil, m.submit(playback.SetVolume{Percent: req.Value})
	case rrp.Seek:
		if req.Position < 0 {
			return nil, rrp.Errorf(rrp.KindInvalidValue, "position must not be negative")
		}
		return nil, m.submit(playback.Seek{Seconds: req.Position})
	case rrp.Stop:
		return nil, rrp.Errorf(rrp.KindBadRequest, "stop is not implemented")
	case rrp.Add:
		m.log.Info("add requested", zap.String("url", req.URL))
		return rrp.AddReply{Implemented: false}, nil
	case rrp.AddTag:
		if m.current.IsZero() {
			return nil, rrp.Errorf(rrp.KindInvalidState, "nothing is playing")
		}
		name := listener.UserName
		if name == "" {
			name = listener.UserID
		}
		return nil, m.sched.AddTag(name, m.current, m.currentPos, req.TagName, req.Subject)
	case rrp.Search:
		return m.search(req.Query), nil
	case rrp.Schedule:
		return nil, m.sched.ScheduleNext(req.Item)
	case rrp.Quit:
		return nil, nil
	case rrp.Smartlists:
		return m.smartlists(), nil
	case rrp.ActivateSmartlist:
		if err := m.sched.ActivateSmartlist(req.Name); err != nil {
			return nil, err
		}
		return m.smartlists(), nil
	case rrp.Listeners:
		return m.listenerList(), nil
	default:
		return nil, rrp.Errorf(rrp.KindBadRequest, "unsupported request %s", req.RequestType())
	}
}

func (m *Module) submit(cmd playback.Command) error {
	if m.player == nil {
		return rrp.Errorf(rrp.KindInvalidState, "no playback attached")
	}
	return m.player.Submit(cmd)
}

func (m *Module) helloReply() rrp.HelloReply {
	names, active := m.sched.Smartlists()
	reply := rrp.HelloReply{
		Server:          m.config.Name,
		NodeID:          m.config.NodeID,
		Version:         m.config.Version,
		ActiveSmartlist: active,
		Smartlists:      names,
	}
	if !m.current.IsZero() {
		reply.CurrentTrack = m.current.ID()
		reply.CurrentPos = m.currentPos
		reply.TrackLength = m.trackLength
	}
	return reply
}

func (m *Module) search(query string) rrp.SearchReply {
	results := m.sched.Search(query)
	out := rrp.SearchReply{Result: make([]rrp.SearchItem, 0, len(results))}
	for _, r := range results {
		out.Result = append(out.Result, rrp.SearchItem{
			Item:   r.Track.ID(),
			Folder: r.Track.Folder,
			File:   r.Track.File,
			Score:  r.Score,
		})
	}
	return out
}

func (m *Module) smartlists() rrp.SmartlistsReply {
	names, active := m.sched.Smartlists()
	return rrp.SmartlistsReply{Active: active, Smartlists: names}
}

func (m *Module) listenerList() rrp.ListenersReply {
	identified := m.listeners.Identified()
	out := rrp.ListenersReply{Listeners: make([]rrp.ListenerInfo, 0, len(identified))}
	for _, l := range identified {
		out.Listeners = append(out.Listeners, rrp.ListenerInfo{UserID: l.UserID, UserName: l.UserName})
	}
	return out
}

func okReply(cmd rrp.CommandEnvelope, body any) rrp.ReplyEnvelope {
	reply := rrp.ReplyEnvelope{Ref: cmd.ID, Type: rrp.ReplyOK, TS: time.Now().Unix()}
	if body == nil {
		return reply
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return errorReply(cmd, fmt.Errorf("marshal reply: %w", err))
	}
	reply.Body = payload
	return reply
}

func errorReply(cmd rrp.CommandEnvelope, err error) rrp.ReplyEnvelope {
	what := err.Error()
	var rerr *rrp.Error
	if errors.As(err, &rerr) {
		what = rerr.What
	}
	return rrp.ReplyEnvelope{
		Ref:  cmd.ID,
		Type: rrp.ReplyError,
		TS:   time.Now().Unix(),
		Kind: rrp.KindOf(err),
		What: what,
	}
}
