package jukebox

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mikey-austin/rrplayer/internal/playback"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

// fakeMQTTClient implements mqttClient for testing.
type fakeMQTTClient struct {
	mu        sync.Mutex
	subs      map[string]paho.MessageHandler
	published []publishedMessage
}

type publishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func (f *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (f *fakeMQTTClient) Subscribe(topic string, qos byte, handler paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string]paho.MessageHandler)
	}
	f.subs[topic] = handler
	return nil
}

func (f *fakeMQTTClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *fakeMQTTClient) emit(topic string, payload []byte) bool {
	f.mu.Lock()
	handler := f.subs[topic]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(nil, fakeMessage{topic: topic, payload: payload})
	return true
}

func (f *fakeMQTTClient) on(topic string) []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedMessage
	for _, msg := range f.published {
		if msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type fakePlayer struct {
	mu       sync.Mutex
	commands []playback.Command
	err      error
	panics   bool
}

func (p *fakePlayer) Submit(cmd playback.Command) error {
	if p.panics {
		panic("player exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
	return p.err
}

func newTestModule(t *testing.T, files ...string) (*Module, *fakeMQTTClient, string) {
	t.Helper()
	root := t.TempDir()
	for _, file := range files {
		path := filepath.Join(root, file)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	client := &fakeMQTTClient{}
	mod, err := NewModule(zap.NewNop(), client, Config{
		NodeID:         "living-room",
		Roots:          []string{root},
		PlaylistFolder: filepath.Join(t.TempDir(), "smartlists"),
		IdleBackoff:    10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	mod.crawl()
	return mod, client, root
}

func command(t *testing.T, id, from, typ string, body any) rrp.CommandEnvelope {
	t.Helper()
	cmd := rrp.CommandEnvelope{ID: id, Type: typ, TS: time.Now().Unix(), From: from, ReplyTo: "reply/" + from}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		cmd.Body = payload
	}
	return cmd
}

func hello(t *testing.T, m *Module, from string) rrp.HelloReply {
	t.Helper()
	reply, _ := m.dispatch(command(t, "h-"+from, from, rrp.TypeHello, rrp.HelloBody{UserID: from + "-id", UserName: from}))
	if !reply.OK() {
		t.Fatalf("hello failed: %+v", reply)
	}
	var out rrp.HelloReply
	if err := json.Unmarshal(reply.Body, &out); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	return out
}

func expectError(t *testing.T, reply rrp.ReplyEnvelope, kind rrp.ErrorKind) {
	t.Helper()
	if reply.Type != rrp.ReplyError || reply.Kind != kind {
		t.Fatalf("expected %s error, got %+v", kind, reply)
	}
}

func TestAddTagBeforeHello(t *testing.T) {
	m, _, _ := newTestModule(t, "abba/waterloo.mp3")
	reply, quit := m.dispatch(command(t, "c1", "stranger", rrp.TypeAddTag, rrp.AddTagBody{TagName: "ban", Subject: "abba"}))
	expectError(t, reply, rrp.KindNotIdentified)
	if quit || reply.Ref != "c1" {
		t.Fatalf("unexpected reply %+v", reply)
	}

	reply, _ = m.dispatch(command(t, "c2", "stranger", rrp.TypeHello, rrp.HelloBody{UserID: "x"}))
	expectError(t, reply, rrp.KindNotIdentified)
}

func TestHelloThenSearch(t *testing.T) {
	m, _, _ := newTestModule(t, "Michael Jackson/Thriller.mp3", "Prince/Kiss.mp3")

	for _, user := range []string{"frans", "ilse"} {
		info := hello(t, m, user)
		if info.ActiveSmartlist != "unspecified" || info.NodeID != "living-room" {
			t.Fatalf("unexpected hello %+v", info)
		}

		reply, _ := m.dispatch(command(t, "s-"+user, user, rrp.TypeSearch, rrp.SearchBody{Query: strPtr("jack")}))
		if !reply.OK() {
			t.Fatalf("search failed: %+v", reply)
		}
		var out rrp.SearchReply
		if err := json.Unmarshal(reply.Body, &out); err != nil {
			t.Fatalf("decode search: %v", err)
		}
		if len(out.Result) != 1 || out.Result[0].File != "Thriller.mp3" {
			t.Fatalf("expected Thriller, got %+v", out.Result)
		}
	}

	reply, _ := m.dispatch(command(t, "l", "frans", rrp.TypeListeners, nil))
	var listeners rrp.ListenersReply
	if err := json.Unmarshal(reply.Body, &listeners); err != nil {
		t.Fatalf("decode listeners: %v", err)
	}
	if len(listeners.Listeners) != 2 {
		t.Fatalf("expected 2 listeners, got %+v", listeners)
	}
}

func TestSmartlistCommands(t *testing.T) {
	m, _, _ := newTestModule(t, "abba/waterloo.mp3")
	hello(t, m, "frans")

	reply, _ := m.dispatch(command(t, "a1", "frans", rrp.TypeActivateSmartlist, rrp.ActivateSmartlistBody{Name: "does-not-exist"}))
	expectError(t, reply, rrp.KindInvalidValue)

	reply, _ = m.dispatch(command(t, "a2", "frans", rrp.TypeActivateSmartlist, rrp.ActivateSmartlistBody{Name: "party"}))
	if !reply.OK() {
		t.Fatalf("activate failed: %+v", reply)
	}
	var lists rrp.SmartlistsReply
	if err := json.Unmarshal(reply.Body, &lists); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lists.Active != "party" || len(lists.Smartlists) != 4 {
		t.Fatalf("unexpected smartlists %+v", lists)
	}
}

func TestPlaybackCommands(t *testing.T) {
	m, _, _ := newTestModule(t, "abba/waterloo.mp3")
	hello(t, m, "frans")

	reply, _ := m.dispatch(command(t, "p1", "frans", rrp.TypePlay, nil))
	expectError(t, reply, rrp.KindInvalidState)

	player := &fakePlayer{}
	m.AttachPlayer(player)
	for i, typ := range []string{rrp.TypePlay, rrp.TypePause, rrp.TypeSkip, rrp.TypeVolumeUp, rrp.TypeVolumeDown} {
		reply, _ := m.dispatch(command(t, "p"+string(rune('a'+i)), "frans", typ, nil))
		if !reply.OK() {
			t.Fatalf("%s failed: %+v", typ, reply)
		}
	}
	reply, _ = m.dispatch(command(t, "v1", "frans", rrp.TypeSetVolume, map[string]any{"value": 40}))
	if !reply.OK() {
		t.Fatalf("set_volume failed: %+v", reply)
	}
	reply, _ = m.dispatch(command(t, "v2", "frans", rrp.TypeSetVolume, map[string]any{"value": 140}))
	expectError(t, reply, rrp.KindInvalidValue)
	reply, _ = m.dispatch(command(t, "s1", "frans", rrp.TypeSeek, map[string]any{"position": 30}))
	if !reply.OK() {
		t.Fatalf("seek failed: %+v", reply)
	}

	player.mu.Lock()
	got := len(player.commands)
	last := player.commands[got-1]
	player.mu.Unlock()
	if got != 7 {
		t.Fatalf("expected 7 commands, got %d", got)
	}
	if seek, ok := last.(playback.Seek); !ok || seek.Seconds != 30 {
		t.Fatalf("unexpected last command %#v", last)
	}

	player.err = rrp.Errorf(rrp.KindInvalidState, "playback is busy")
	reply, _ = m.dispatch(command(t, "p9", "frans", rrp.TypeSkip, nil))
	expectError(t, reply, rrp.KindInvalidState)

	reply, _ = m.dispatch(command(t, "st", "frans", rrp.TypeStop, nil))
	expectError(t, reply, rrp.KindBadRequest)

	reply, _ = m.dispatch(command(t, "ad", "frans", rrp.TypeAdd, nil))
	if !reply.OK() || !strings.Contains(string(reply.Body), `"implemented":false`) {
		t.Fatalf("unexpected add reply %+v", reply)
	}

	reply, _ = m.dispatch(command(t, "u", "frans", "dance", nil))
	expectError(t, reply, rrp.KindBadRequest)
}

func TestAddTagUsesCurrentTrack(t *testing.T) {
	m, _, root := newTestModule(t, "abba/waterloo.mp3", "queen/radio gaga.mp3")
	hello(t, m, "frans")

	reply, _ := m.dispatch(command(t, "t1", "frans", rrp.TypeAddTag, rrp.AddTagBody{TagName: "upvote"}))
	expectError(t, reply, rrp.KindInvalidState)

	pos := 12.0
	m.observe(rrp.Event{Type: rrp.EventNowPlaying, CurrentTrack: root + ":abba:waterloo.mp3", CurrentPos: &pos})

	reply, _ = m.dispatch(command(t, "t2", "frans", rrp.TypeAddTag, rrp.AddTagBody{TagName: "upvote"}))
	if !reply.OK() {
		t.Fatalf("upvote failed: %+v", reply)
	}
	reply, _ = m.dispatch(command(t, "t3", "frans", rrp.TypeAddTag, rrp.AddTagBody{TagName: "ban"}))
	expectError(t, reply, rrp.KindBadRequest)
	reply, _ = m.dispatch(command(t, "t4", "frans", rrp.TypeAddTag, rrp.AddTagBody{TagName: "ban", Subject: "ABBA"}))
	if !reply.OK() {
		t.Fatalf("ban failed: %+v", reply)
	}

	list := m.sched.Active().Rules()
	if len(list) != 2 || list[0].Listener != "frans" || list[1].TagString != "abba" {
		t.Fatalf("unexpected rules %+v", list)
	}
	if list[0].Position == nil || *list[0].Position != 12 {
		t.Fatalf("expected position on upvote, got %v", list[0].Position)
	}

	info := hello(t, m, "frans")
	if info.CurrentTrack != root+":abba:waterloo.mp3" {
		t.Fatalf("expected current track in hello, got %+v", info)
	}

	for i := 0; i < 20; i++ {
		track, ok := m.sched.Next()
		if !ok || track.Folder == "abba" {
			t.Fatalf("expected non-abba track, got %+v", track)
		}
	}
}

func TestIdleEventClearsCurrentTrack(t *testing.T) {
	m, _, root := newTestModule(t, "abba/waterloo.mp3")
	hello(t, m, "frans")

	pos := 5.0
	m.observe(rrp.Event{Type: rrp.EventNowPlaying, CurrentTrack: root + ":abba:waterloo.mp3", CurrentPos: &pos})
	if info := hello(t, m, "frans"); info.CurrentTrack == "" {
		t.Fatalf("expected current track while playing")
	}

	m.observe(rrp.Event{Type: rrp.EventNowPlaying})
	info := hello(t, m, "frans")
	if info.CurrentTrack != "" || info.CurrentPos != nil {
		t.Fatalf("expected no current track after idle, got %+v", info)
	}
	reply, _ := m.dispatch(command(t, "u1", "frans", rrp.TypeAddTag, rrp.AddTagBody{TagName: "upvote"}))
	expectError(t, reply, rrp.KindInvalidState)
}

func TestObserveTrackWithColonFolder(t *testing.T) {
	m, _, root := newTestModule(t, "Star Wars: Episode IV/01 - Main Title.mp3")
	hello(t, m, "frans")

	id := root + ":Star Wars: Episode IV:01 - Main Title.mp3"
	m.observe(rrp.Event{Type: rrp.EventNowPlaying, CurrentTrack: id})
	if m.current.Folder != "Star Wars: Episode IV" || m.current.File != "01 - Main Title.mp3" {
		t.Fatalf("unexpected current track %+v", m.current)
	}
}

func TestMergeNoteAddsScannedFolders(t *testing.T) {
	m, _, root := newTestModule(t, "abba/waterloo.mp3")
	path := filepath.Join(root, "queen", "radio gaga.mp3")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	scan, err := m.index.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if m.index.FileCount() != 1 {
		t.Fatalf("scan should not touch the index")
	}
	m.handleNotification(mergeNote{scan: scan})
	if m.index.FileCount() != 2 {
		t.Fatalf("expected merged file, got %d", m.index.FileCount())
	}
}

func TestMalformedEnvelopeIsAnswered(t *testing.T) {
	m, client, _ := newTestModule(t)

	m.handleMessage(fakeMessage{topic: m.cmdTopic, payload: []byte(`{"id":"x1","type":"hello","ts":"x","replyTo":"reply/frans"}`)})
	replies := client.on("reply/frans")
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(replies))
	}
	var reply rrp.ReplyEnvelope
	if err := json.Unmarshal(replies[0].Payload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Ref != "x1" || reply.Kind != rrp.KindBadRequest {
		t.Fatalf("unexpected reply %+v", reply)
	}

	m.handleMessage(fakeMessage{topic: m.cmdTopic, payload: []byte(`not json`)})
	m.handleMessage(fakeMessage{topic: m.cmdTopic, payload: []byte(`{"id":"x2","ts":"x"}`)})
	if got := len(client.published); got != 1 {
		t.Fatalf("expected no reply without a reply topic, got %d messages", got)
	}
}

func TestDispatchRecoversPanic(t *testing.T) {
	m, _, _ := newTestModule(t, "abba/waterloo.mp3")
	hello(t, m, "frans")
	m.AttachPlayer(&fakePlayer{panics: true})

	reply, quit := m.dispatch(command(t, "p", "frans", rrp.TypePlay, nil))
	expectError(t, reply, rrp.KindInternal)
	if quit || reply.Ref != "p" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestDispatchRejectsInvalidEnvelope(t *testing.T) {
	m, _, _ := newTestModule(t)
	reply, _ := m.dispatch(rrp.CommandEnvelope{ID: "x", Type: rrp.TypeHello})
	expectError(t, reply, rrp.KindBadRequest)
}

func TestRunServesRequestsAndEvents(t *testing.T) {
	m, client, root := newTestModule(t, "abba/waterloo.mp3")
	quitCalled := make(chan struct{})
	m.OnQuit(func() { close(quitCalled) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, func() bool { return client.emitReady(m.cmdTopic) })
	if presence := client.on(rrp.TopicPresence(rrp.BaseTopic, "living-room")); len(presence) != 1 || !presence[0].Retained {
		t.Fatalf("expected retained presence, got %+v", presence)
	}

	send := func(cmd rrp.CommandEnvelope) {
		payload, _ := json.Marshal(cmd)
		client.emit(m.cmdTopic, payload)
	}
	send(command(t, "h1", "frans", rrp.TypeHello, rrp.HelloBody{UserID: "1", UserName: "frans"}))
	waitFor(t, func() bool { return len(client.on("reply/frans")) == 1 })

	track, err := m.NextTrack(ctx)
	if err != nil {
		t.Fatalf("next track: %v", err)
	}
	if track.ID() != root+":abba:waterloo.mp3" {
		t.Fatalf("unexpected track %s", track.ID())
	}

	pos := 3.0
	if err := m.Notify(ctx, rrp.Event{Type: rrp.EventNowPlaying, CurrentTrack: track.ID(), CurrentPos: &pos}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	waitFor(t, func() bool { return len(client.on(m.evtTopic)) == 1 })
	var event rrp.Event
	if err := json.Unmarshal(client.on(m.evtTopic)[0].Payload, &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.CurrentTrack != track.ID() || event.CurrentPos == nil || *event.CurrentPos != 3 {
		t.Fatalf("unexpected event %+v", event)
	}

	send(command(t, "q1", "frans", rrp.TypeQuit, nil))
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not exit after quit")
	}
	<-quitCalled
	if presence := client.on(rrp.TopicPresence(rrp.BaseTopic, "living-room")); len(presence) != 2 || len(presence[1].Payload) != 0 {
		t.Fatalf("expected presence cleared on exit, got %+v", presence)
	}

	replies := client.on("reply/frans")
	if len(replies) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(replies))
	}
	var last rrp.ReplyEnvelope
	if err := json.Unmarshal(replies[1].Payload, &last); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if last.Ref != "q1" || !last.OK() {
		t.Fatalf("unexpected quit reply %+v", last)
	}
}

func TestNextTrackEmptyIndex(t *testing.T) {
	m, _, _ := newTestModule(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	started := time.Now()
	_, err := m.NextTrack(ctx)
	if !errors.Is(err, playback.ErrNoTrack) {
		t.Fatalf("expected no track, got %v", err)
	}
	if time.Since(started) < 10*time.Millisecond {
		t.Fatalf("expected idle backoff")
	}
}

func (f *fakeMQTTClient) emitReady(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok && len(f.published) > 0
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

func strPtr(s string) *string {
	return &s
}
