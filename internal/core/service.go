package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mikey-austin/rrplayer/internal/ports"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// Service orchestrates rrp CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Identity ports.IdentityStore
	Config   Config
}

// ListNodes returns jukebox presence entries.
func (s Service) ListNodes(ctx context.Context) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	return NodesResult{Nodes: filterPresenceByKind(nodes, KindJukebox)}, nil
}

// Hello identifies this client and returns the server view.
func (s Service) Hello(ctx context.Context, selector string) (StatusResult, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	hello, err := s.hello(ctx, node.NodeID)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Node: node, Hello: hello}, nil
}

// Status is Hello: the hello reply carries the current track and position.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	return s.Hello(ctx, selector)
}

// WatchStatus streams broadcast events until ctx is done.
func (s Service) WatchStatus(ctx context.Context, selector string) (rrp.Presence, <-chan rrp.Event, <-chan error, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return rrp.Presence{}, nil, nil, err
	}
	events, errs := s.Broker.WatchEvents(ctx, node.NodeID)
	return node, events, errs, nil
}

// Play starts or resumes playback.
func (s Service) Play(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, rrp.TypePlay)
}

// Pause toggles pause.
func (s Service) Pause(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, rrp.TypePause)
}

// Stop asks the server to stop playback.
func (s Service) Stop(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, rrp.TypeStop)
}

// Skip advances to the next scheduled track.
func (s Service) Skip(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, rrp.TypeSkip)
}

// Quit asks the server process to exit.
func (s Service) Quit(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, rrp.TypeQuit)
}

// SetVolume applies a volume argument: an absolute percentage, "+"/"-" for
// one step, or "+n"/"-n" for n steps.
func (s Service) SetVolume(ctx context.Context, selector string, arg string) error {
	change, err := ParseVolume(arg)
	if err != nil {
		return err
	}
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return err
	}
	if change.Absolute != nil {
		_, err := s.call(ctx, node.NodeID, rrp.TypeSetVolume, rrp.SetVolumeBody{Value: change.Absolute})
		return err
	}
	cmdType := rrp.TypeVolumeUp
	steps := change.Steps
	if steps < 0 {
		cmdType = rrp.TypeVolumeDown
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		if _, err := s.call(ctx, node.NodeID, cmdType, nil); err != nil {
			return err
		}
	}
	return nil
}

// Seek moves playback to seconds into the current track.
func (s Service) Seek(ctx context.Context, selector string, seconds float64) error {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, node.NodeID, rrp.TypeSeek, rrp.SeekBody{Position: &seconds})
	return err
}

// Ban adds a ban rule for subject to the active smartlist.
func (s Service) Ban(ctx context.Context, selector string, subject string) error {
	if strings.TrimSpace(subject) == "" {
		return &CLIError{Code: ExitUsage, Msg: "ban subject required"}
	}
	return s.tag(ctx, selector, rrp.TagBan, subject)
}

// Upvote records an upvote for the current track.
func (s Service) Upvote(ctx context.Context, selector string) error {
	return s.tag(ctx, selector, rrp.TagUpvote, "")
}

// Search returns the best matching tracks for query.
func (s Service) Search(ctx context.Context, selector string, query string) (SearchResult, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return SearchResult{}, err
	}
	reply, err := s.call(ctx, node.NodeID, rrp.TypeSearch, rrp.SearchBody{Query: &query})
	if err != nil {
		return SearchResult{}, err
	}
	var body rrp.SearchReply
	if err := decodeBody(reply, &body); err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Node: node, Query: query, Items: body.Result}, nil
}

// Schedule queues a track identifier to play next.
func (s Service) Schedule(ctx context.Context, selector string, item string) error {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, node.NodeID, rrp.TypeSchedule, rrp.ScheduleBody{Item: item})
	return err
}

// Add submits a URL. Servers may not implement it.
func (s Service) Add(ctx context.Context, selector string, url string) (AddResult, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return AddResult{}, err
	}
	reply, err := s.call(ctx, node.NodeID, rrp.TypeAdd, rrp.AddBody{URL: url})
	if err != nil {
		return AddResult{}, err
	}
	var body rrp.AddReply
	if err := decodeBody(reply, &body); err != nil {
		return AddResult{}, err
	}
	return AddResult{URL: url, Implemented: body.Implemented}, nil
}

// Smartlists lists the known smartlists and the active one.
func (s Service) Smartlists(ctx context.Context, selector string) (SmartlistsResult, error) {
	return s.smartlists(ctx, selector, rrp.TypeSmartlists, nil)
}

// ActivateSmartlist switches the active smartlist.
func (s Service) ActivateSmartlist(ctx context.Context, selector string, name string) (SmartlistsResult, error) {
	return s.smartlists(ctx, selector, rrp.TypeActivateSmartlist, rrp.ActivateSmartlistBody{Name: name})
}

// Listeners lists identified listeners.
func (s Service) Listeners(ctx context.Context, selector string) (ListenersResult, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return ListenersResult{}, err
	}
	reply, err := s.call(ctx, node.NodeID, rrp.TypeListeners, nil)
	if err != nil {
		return ListenersResult{}, err
	}
	var body rrp.ListenersReply
	if err := decodeBody(reply, &body); err != nil {
		return ListenersResult{}, err
	}
	return ListenersResult{Node: node, Listeners: body.Listeners}, nil
}

func (s Service) smartlists(ctx context.Context, selector string, cmdType string, body any) (SmartlistsResult, error) {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return SmartlistsResult{}, err
	}
	reply, err := s.call(ctx, node.NodeID, cmdType, body)
	if err != nil {
		return SmartlistsResult{}, err
	}
	var out rrp.SmartlistsReply
	if err := decodeBody(reply, &out); err != nil {
		return SmartlistsResult{}, err
	}
	return SmartlistsResult{Node: node, Active: out.Active, Smartlists: out.Smartlists}, nil
}

func (s Service) tag(ctx context.Context, selector string, tagName string, subject string) error {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, node.NodeID, rrp.TypeAddTag, rrp.AddTagBody{TagName: tagName, Subject: subject})
	return err
}

func (s Service) simple(ctx context.Context, selector string, cmdType string) error {
	node, err := s.Resolver.ResolveJukebox(ctx, selector)
	if err != nil {
		return err
	}
	_, err = s.call(ctx, node.NodeID, cmdType, nil)
	return err
}

// call sends a command and, when the server does not know this client yet,
// identifies with hello and retries once.
func (s Service) call(ctx context.Context, nodeID string, cmdType string, body any) (rrp.ReplyEnvelope, error) {
	reply, err := s.send(ctx, nodeID, cmdType, body)
	if err != nil {
		return rrp.ReplyEnvelope{}, err
	}
	if rrp.IsKind(reply.Err(), rrp.KindNotIdentified) && cmdType != rrp.TypeHello {
		if _, err := s.hello(ctx, nodeID); err != nil {
			return rrp.ReplyEnvelope{}, err
		}
		reply, err = s.send(ctx, nodeID, cmdType, body)
		if err != nil {
			return rrp.ReplyEnvelope{}, err
		}
	}
	if !reply.OK() {
		return rrp.ReplyEnvelope{}, ErrorForReplyKind(rrp.KindOf(reply.Err()), reply.What)
	}
	return reply, nil
}

func (s Service) hello(ctx context.Context, nodeID string) (rrp.HelloReply, error) {
	if s.Config.UserID == "" || s.Config.UserName == "" {
		return rrp.HelloReply{}, &CLIError{Code: ExitIdentity, Msg: "user_id and user_name are required to identify"}
	}
	reply, err := s.send(ctx, nodeID, rrp.TypeHello, rrp.HelloBody{UserID: s.Config.UserID, UserName: s.Config.UserName})
	if err != nil {
		return rrp.HelloReply{}, err
	}
	if !reply.OK() {
		return rrp.HelloReply{}, ErrorForReplyKind(rrp.KindOf(reply.Err()), reply.What)
	}
	var out rrp.HelloReply
	if err := decodeBody(reply, &out); err != nil {
		return rrp.HelloReply{}, err
	}
	return out, nil
}

func (s Service) send(ctx context.Context, nodeID string, cmdType string, body any) (rrp.ReplyEnvelope, error) {
	if body == nil {
		body = struct{}{}
	}
	cmd, err := rrp.NewCommand(cmdType, body)
	if err != nil {
		return rrp.ReplyEnvelope{}, WrapError(ExitRuntime, "build command", err)
	}
	cmd, err = s.decorateCommand(cmd)
	if err != nil {
		return rrp.ReplyEnvelope{}, err
	}
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return rrp.ReplyEnvelope{}, WrapError(ExitRuntime, "publish command", err)
	}
	return reply, nil
}

func (s Service) decorateCommand(cmd rrp.CommandEnvelope) (rrp.CommandEnvelope, error) {
	from, err := s.Identity.Signature()
	if err != nil {
		return rrp.CommandEnvelope{}, WrapError(ExitRuntime, "load identity", err)
	}
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = from
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd, nil
}

func decodeBody(reply rrp.ReplyEnvelope, out any) error {
	if len(reply.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Body, out); err != nil {
		return WrapError(ExitRuntime, "decode reply", err)
	}
	return nil
}

// VolumeChange is a parsed volume argument.
type VolumeChange struct {
	Absolute *float64
	Steps    int
}

// ParseVolume parses "0..100", "+", "-", "+n" or "-n".
func ParseVolume(arg string) (VolumeChange, error) {
	arg = strings.TrimSpace(arg)
	switch arg {
	case "":
		return VolumeChange{}, &CLIError{Code: ExitUsage, Msg: "volume value required"}
	case "+", "up":
		return VolumeChange{Steps: 1}, nil
	case "-", "down":
		return VolumeChange{Steps: -1}, nil
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		n, err := strconv.Atoi(arg[1:])
		if err != nil || n <= 0 {
			return VolumeChange{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("invalid volume step %q", arg)}
		}
		if arg[0] == '-' {
			n = -n
		}
		return VolumeChange{Steps: n}, nil
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil || v < 0 || v > 100 {
		return VolumeChange{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("volume must be 0..100, got %q", arg)}
	}
	return VolumeChange{Absolute: &v}, nil
}
