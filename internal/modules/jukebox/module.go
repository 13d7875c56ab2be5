package jukebox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/rrplayer/internal/library"
	"github.com/mikey-austin/rrplayer/internal/playback"
	"github.com/mikey-austin/rrplayer/internal/scheduler"
	"github.com/mikey-austin/rrplayer/internal/smartlist"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

// mqttClient abstracts MQTT operations.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Player accepts playback commands.
type Player interface {
	Submit(cmd playback.Command) error
}

// Config configures the jukebox module.
type Config struct {
	NodeID         string
	TopicBase      string
	Name           string
	Version        string
	Roots          []string
	Extensions     []string
	PlaylistFolder string
	Watch          bool
	IdleBackoff    time.Duration
	MaxRandomPicks int
	QueueSize      int
}

// Module serves jukebox requests. A single goroutine owns the scheduler,
// the listener registry and the playback view.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	config   Config
	cmdTopic string
	evtTopic string

	index     *library.Index
	store     *smartlist.Store
	sched     *scheduler.Scheduler
	listeners *Registry
	player    Player
	onQuit    func()

	requests      chan rrp.CommandEnvelope
	notifications chan notification
	done          chan struct{}

	current     library.Track
	currentPos  *float64
	trackLength *float64
}

// notification is an internal message for the event loop.
type notification interface{}

type eventNote struct {
	event rrp.Event
}

type trackRequest struct {
	reply chan trackResult
}

type trackResult struct {
	track library.Track
	ok    bool
}

type mergeNote struct {
	scan library.Scan
}

// NewModule creates the jukebox module and activates the default smartlist.
func NewModule(log *zap.Logger, client mqttClient, cfg Config) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = rrp.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "rrplayer"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "dev"
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	store, err := smartlist.NewStore(log.With(zap.String("component", "smartlist")), cfg.PlaylistFolder)
	if err != nil {
		return nil, err
	}
	index := library.NewIndex(log.With(zap.String("component", "index")), cfg.Extensions)
	sched, err := scheduler.New(log.With(zap.String("component", "scheduler")), index, store, scheduler.Config{
		MaxRandomPicks: cfg.MaxRandomPicks,
	})
	if err != nil {
		return nil, err
	}

	return &Module{
		log:           log,
		client:        client,
		config:        cfg,
		cmdTopic:      rrp.TopicCommands(cfg.TopicBase, cfg.NodeID),
		evtTopic:      rrp.TopicEvents(cfg.TopicBase, cfg.NodeID),
		index:         index,
		store:         store,
		sched:         sched,
		listeners:     NewRegistry(),
		requests:      make(chan rrp.CommandEnvelope, cfg.QueueSize),
		notifications: make(chan notification, cfg.QueueSize),
		done:          make(chan struct{}),
	}, nil
}

// AttachPlayer connects the playback controller.
func (m *Module) AttachPlayer(p Player) {
	m.player = p
}

// OnQuit registers the function run after a quit request is answered.
func (m *Module) OnQuit(fn func()) {
	m.onQuit = fn
}

// Run crawls the roots and serves requests until ctx is done or a client
// asks the server to quit.
func (m *Module) Run(ctx context.Context) error {
	defer close(m.done)

	m.crawl()

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	if err := m.publishPresence(); err != nil {
		return err
	}
	defer m.clearPresence()

	if m.config.Watch {
		m.startWatcher(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			m.flush()
			return nil
		case cmd := <-m.requests:
			if m.serve(cmd) {
				m.flush()
				m.log.Info("quit requested", zap.String("from", cmd.From))
				if m.onQuit != nil {
					m.onQuit()
				}
				return nil
			}
		case note := <-m.notifications:
			m.handleNotification(note)
		}
	}
}

// NextTrack asks the event loop for the next track. When nothing is playable
// it waits the idle backoff and returns playback.ErrNoTrack.
func (m *Module) NextTrack(ctx context.Context) (library.Track, error) {
	req := trackRequest{reply: make(chan trackResult, 1)}
	if err := m.enqueue(ctx, req); err != nil {
		return library.Track{}, err
	}
	var res trackResult
	select {
	case res = <-req.reply:
	case <-ctx.Done():
		return library.Track{}, ctx.Err()
	case <-m.done:
		return library.Track{}, context.Canceled
	}
	if res.ok {
		return res.track, nil
	}

	timer := time.NewTimer(m.config.IdleBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return library.Track{}, ctx.Err()
	}
	return library.Track{}, playback.ErrNoTrack
}

// Notify forwards a playback event to the broadcast topic via the event loop.
func (m *Module) Notify(ctx context.Context, event rrp.Event) error {
	return m.enqueue(ctx, eventNote{event: event})
}

func (m *Module) enqueue(ctx context.Context, note notification) error {
	select {
	case m.notifications <- note:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return context.Canceled
	}
}

func (m *Module) crawl() {
	for _, root := range m.config.Roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		if _, err := m.index.IndexPath(root); err != nil {
			m.log.Warn("index root failed", zap.String("root", root), zap.Error(err))
		}
	}
}

func (m *Module) startWatcher(ctx context.Context) {
	roots := m.index.Roots()
	if len(roots) == 0 {
		return
	}
	watcher, err := library.NewWatcher(m.log.With(zap.String("component", "watcher")), roots, 0)
	if err != nil {
		m.log.Warn("watcher unavailable", zap.Error(err))
		return
	}
	go func() {
		_ = watcher.Run(ctx, func(root string) {
			scan, err := m.index.Scan(root)
			if err != nil {
				m.log.Warn("reindex failed", zap.String("root", root), zap.Error(err))
				return
			}
			_ = m.enqueue(ctx, mergeNote{scan: scan})
		})
	}()
}

func (m *Module) handleMessage(msg paho.Message) {
	var cmd rrp.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		m.rejectMalformed(msg.Payload(), err)
		return
	}
	select {
	case m.requests <- cmd:
	case <-m.done:
	}
}

// rejectMalformed answers an undecodable envelope when its id and reply
// topic can still be read field by field.
func (m *Module) rejectMalformed(payload []byte, cause error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return
	}
	var id, replyTo string
	_ = json.Unmarshal(fields["id"], &id)
	_ = json.Unmarshal(fields["replyTo"], &replyTo)
	if replyTo == "" {
		return
	}
	reply := errorReply(rrp.CommandEnvelope{ID: id}, rrp.Errorf(rrp.KindBadRequest, "malformed command: %v", cause))
	m.publishReply(replyTo, reply)
}

// serve answers one command and reports whether the loop should exit.
func (m *Module) serve(cmd rrp.CommandEnvelope) bool {
	reply, quit := m.dispatch(cmd)
	m.publishReply(cmd.ReplyTo, reply)
	return quit
}

func (m *Module) handleNotification(note notification) {
	switch note := note.(type) {
	case eventNote:
		m.observe(note.event)
		m.publishEvent(note.event)
	case trackRequest:
		track, ok := m.sched.Next()
		note.reply <- trackResult{track: track, ok: ok}
	case mergeNote:
		added := m.index.Merge(note.scan)
		m.log.Info("reindexed", zap.String("root", note.scan.Root), zap.Int("added", added))
	default:
		m.log.Error("unknown notification")
	}
}

// observe keeps the loop's view of what is playing.
func (m *Module) observe(event rrp.Event) {
	if event.Type != rrp.EventNowPlaying {
		return
	}
	if event.CurrentTrack == "" {
		m.current = library.Track{}
		m.currentPos, m.trackLength = nil, nil
		return
	}
	track, err := m.index.ParseTrackID(event.CurrentTrack)
	if err != nil {
		m.log.Warn("unknown playing track", zap.String("track", event.CurrentTrack), zap.Error(err))
		m.current = library.Track{}
		m.currentPos, m.trackLength = nil, nil
		return
	}
	m.current = track
	m.currentPos = event.CurrentPos
	m.trackLength = event.TrackLength
}

func (m *Module) flush() {
	if err := m.sched.Flush(); err != nil {
		m.log.Warn("smartlist flush failed", zap.Error(err))
	}
}

func (m *Module) publishPresence() error {
	names, active := m.sched.Smartlists()
	presence := rrp.Presence{
		NodeID: m.config.NodeID,
		Kind:   "jukebox",
		Name:   m.config.Name,
		Caps: map[string]any{
			"search":     true,
			"smartlists": names,
			"active":     active,
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(rrp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

// clearPresence removes the retained presence so clients stop seeing the node.
func (m *Module) clearPresence() {
	if err := m.client.Publish(rrp.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, nil); err != nil {
		m.log.Warn("clear presence", zap.Error(err))
	}
}

func (m *Module) publishEvent(event rrp.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.log.Error("marshal event", zap.Error(err))
		return
	}
	if err := m.client.Publish(m.evtTopic, 0, false, payload); err != nil {
		m.log.Warn("publish event", zap.Error(err))
	}
}

func (m *Module) publishReply(replyTo string, reply rrp.ReplyEnvelope) {
	if replyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(replyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}
