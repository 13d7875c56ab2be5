package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey-austin/rrplayer/internal/library"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

// ErrNoTrack is returned by a TrackSource when nothing is playable right now.
var ErrNoTrack = errors.New("no track available")

// TrackSource supplies the next track to play.
type TrackSource interface {
	NextTrack(ctx context.Context) (library.Track, error)
}

// Notifier receives playback events.
type Notifier interface {
	Notify(ctx context.Context, event rrp.Event) error
}

// Command is a discrete instruction for the controller.
type Command interface {
	playbackCommand()
}

type (
	Play       struct{}
	Pause      struct{}
	Skip       struct{}
	VolumeUp   struct{}
	VolumeDown struct{}
	SetVolume  struct{ Percent float64 }
	Seek       struct{ Seconds float64 }
)

func (Play) playbackCommand()       {}
func (Pause) playbackCommand()      {}
func (Skip) playbackCommand()       {}
func (VolumeUp) playbackCommand()   {}
func (VolumeDown) playbackCommand() {}
func (SetVolume) playbackCommand()  {}
func (Seek) playbackCommand()       {}

// Config configures a Controller.
type Config struct {
	Tick       time.Duration
	Volume     float64
	VolumeStep float64
	Autoplay   bool
	QueueSize  int
}

// Controller owns the driver. Commands are applied between position polls.
type Controller struct {
	log      *zap.Logger
	driver   Driver
	source   TrackSource
	notifier Notifier
	cfg      Config
	commands chan Command

	current  library.Track
	meta     library.Metadata
	started  bool
	wantPlay bool
	paused   bool
	volume   float64

	mu       sync.Mutex
	snapshot State
}

// State is what the controller last reported.
type State struct {
	Track   library.Track
	Paused  bool
	Volume  float64
	Playing bool
}

// NewController creates a controller. Run must be called to start it.
func NewController(log *zap.Logger, driver Driver, source TrackSource, notifier Notifier, cfg Config) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = 0.05
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 1.0
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Controller{
		log:      log,
		driver:   driver,
		source:   source,
		notifier: notifier,
		cfg:      cfg,
		commands: make(chan Command, cfg.QueueSize),
		volume:   clamp(cfg.Volume, 0, 1),
	}
}

// Submit queues a command without blocking.
func (c *Controller) Submit(cmd Command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		return rrp.Errorf(rrp.KindInvalidState, "playback is busy")
	}
}

// State returns the last published controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run drives playback until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.driver.SetVolume(c.volume); err != nil {
		c.playerError(ctx, fmt.Errorf("set volume: %w", err))
	}
	if c.cfg.Autoplay {
		c.wantPlay = true
		c.advance(ctx)
	}

	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.driver.Stop(); err != nil {
				c.log.Debug("stop failed", zap.Error(err))
			}
			return nil
		case cmd := <-c.commands:
			c.handle(ctx, cmd)
		case <-ticker.C:
			c.tick(ctx)
		}
		c.saveState()
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) {
	c.log.Debug("playback command", zap.String("command", fmt.Sprintf("%T", cmd)))
	switch cmd := cmd.(type) {
	case Play:
		c.wantPlay = true
		switch {
		case c.paused:
			c.resume(ctx)
		case c.current.IsZero():
			c.advance(ctx)
		}
	case Pause:
		if c.current.IsZero() {
			return
		}
		if c.paused {
			c.resume(ctx)
			return
		}
		if err := c.driver.Pause(); err != nil {
			c.playerError(ctx, fmt.Errorf("pause: %w", err))
			return
		}
		c.paused = true
	case Skip:
		c.wantPlay = true
		c.advance(ctx)
	case VolumeUp:
		c.setVolume(ctx, c.volume+c.cfg.VolumeStep)
	case VolumeDown:
		c.setVolume(ctx, c.volume-c.cfg.VolumeStep)
	case SetVolume:
		c.setVolume(ctx, cmd.Percent/100)
	case Seek:
		if c.current.IsZero() {
			return
		}
		if err := c.driver.Seek(int64(cmd.Seconds * 1000)); err != nil {
			c.playerError(ctx, fmt.Errorf("seek: %w", err))
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	if c.current.IsZero() {
		if c.wantPlay {
			c.advance(ctx)
		}
		return
	}
	if c.paused {
		return
	}
	status, err := c.driver.Status()
	if err != nil {
		c.playerError(ctx, fmt.Errorf("status: %w", err))
		return
	}
	if status.Playing {
		c.started = true
	}
	if c.started && (status.Ended || (status.DurationMS > 0 && status.PositionMS >= status.DurationMS-250)) {
		c.advance(ctx)
		return
	}
	c.publish(ctx, status.PositionMS, status.DurationMS)
}

// advance loads the next track. Failures leave the controller idle; the next
// tick retries while playback is wanted.
func (c *Controller) advance(ctx context.Context) {
	previous := c.current
	c.current = library.Track{}
	c.meta = library.Metadata{}
	c.paused = false
	c.started = false

	track, err := c.source.NextTrack(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoTrack) && ctx.Err() == nil {
			c.log.Warn("next track failed", zap.Error(err))
		}
		c.idle(ctx, previous)
		return
	}
	if err := c.driver.Play(track.Path()); err != nil {
		c.playerError(ctx, fmt.Errorf("play %s: %w", track.ID(), err))
		c.idle(ctx, previous)
		return
	}
	c.current = track
	c.meta = library.ReadMetadata(track.Path())
	c.log.Info("now playing", zap.String("track", track.ID()))
	c.publish(ctx, 0, 0)
}

// idle stops the driver and announces that nothing is playing, once per
// track that was playing.
func (c *Controller) idle(ctx context.Context, previous library.Track) {
	if previous.IsZero() {
		return
	}
	if err := c.driver.Stop(); err != nil {
		c.log.Debug("stop failed", zap.Error(err))
	}
	c.log.Info("playback idle", zap.String("last", previous.ID()))
	c.notify(ctx, rrp.Event{Type: rrp.EventNowPlaying, TS: time.Now().Unix()})
}

func (c *Controller) resume(ctx context.Context) {
	if err := c.driver.Resume(); err != nil {
		c.playerError(ctx, fmt.Errorf("resume: %w", err))
		return
	}
	c.paused = false
}

func (c *Controller) setVolume(ctx context.Context, volume float64) {
	volume = clamp(volume, 0, 1)
	if err := c.driver.SetVolume(volume); err != nil {
		c.playerError(ctx, fmt.Errorf("set volume: %w", err))
		return
	}
	c.volume = volume
}

func (c *Controller) publish(ctx context.Context, positionMS, durationMS int64) {
	pos := float64(positionMS) / 1000
	event := rrp.Event{
		Type:         rrp.EventNowPlaying,
		CurrentTrack: c.current.ID(),
		CurrentPos:   &pos,
		Title:        c.meta.Title,
		Artist:       c.meta.Artist,
		Album:        c.meta.Album,
		TS:           time.Now().Unix(),
	}
	if durationMS > 0 {
		length := float64(durationMS) / 1000
		event.TrackLength = &length
	}
	c.notify(ctx, event)
}

func (c *Controller) playerError(ctx context.Context, err error) {
	c.log.Warn("player error", zap.Error(err))
	c.notify(ctx, rrp.Event{
		Type: rrp.EventPlayerError,
		What: err.Error(),
		TS:   time.Now().Unix(),
	})
}

func (c *Controller) notify(ctx context.Context, event rrp.Event) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event); err != nil && ctx.Err() == nil {
		c.log.Debug("notify failed", zap.String("event", event.Type), zap.Error(err))
	}
}

func (c *Controller) saveState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = State{
		Track:   c.current,
		Paused:  c.paused,
		Volume:  c.volume,
		Playing: !c.current.IsZero() && !c.paused,
	}
}
