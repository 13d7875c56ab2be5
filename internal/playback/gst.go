//go:build gstreamer

package playback

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
)

// DefaultPipeline plays a file URI through playbin.
const DefaultPipeline = "playbin uri={url} volume={volume}"

// GstDriver plays files through a GStreamer pipeline.
type GstDriver struct {
	mu       sync.Mutex
	pipeline string
	device   string
	volume   float64
	current  *gst.Element
	ended    bool
}

var gstInitOnce sync.Once

// NewGstDriver creates a driver from a pipeline template. The template may
// reference {url}, {device} and {volume}.
func NewGstDriver(pipeline string, device string) (*GstDriver, error) {
	if strings.TrimSpace(pipeline) == "" {
		pipeline = DefaultPipeline
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &GstDriver{pipeline: pipeline, device: device, volume: 1.0}, nil
}

func (d *GstDriver) Play(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = d.stopLocked()
	launch := d.pipeline
	launch = strings.ReplaceAll(launch, "{url}", fileURI(path))
	launch = strings.ReplaceAll(launch, "{device}", d.device)
	launch = strings.ReplaceAll(launch, "{volume}", fmt.Sprintf("%0.2f", d.volume))

	el, err := gst.ParseLaunch(launch)
	if err != nil {
		return err
	}
	if err := el.SetState(gst.StatePlaying); err != nil {
		_ = el.SetState(gst.StateNull)
		return err
	}
	d.current = el
	d.ended = false
	return nil
}

func (d *GstDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePaused)
}

func (d *GstDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	return d.current.SetState(gst.StatePlaying)
}

func (d *GstDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.stopLocked()
}

func (d *GstDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("not playing")
	}
	positionNS := positionMS * int64(time.Millisecond)
	return d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS)
}

func (d *GstDriver) SetVolume(volume float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = clamp(volume, 0, 1)
	if d.current != nil {
		_ = d.current.SetProperty("volume", d.volume)
	}
	return nil
}

func (d *GstDriver) Status() (Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return Status{Ended: d.ended}, nil
	}
	if err := d.drainBusLocked(); err != nil {
		return Status{}, err
	}
	if d.ended {
		return Status{Ended: true}, nil
	}
	status := Status{Playing: d.current.GetCurrentState() == gst.StatePlaying}
	if ok, pos := d.current.QueryPosition(gst.FormatTime); ok {
		status.PositionMS = pos / int64(time.Millisecond)
	}
	if ok, dur := d.current.QueryDuration(gst.FormatTime); ok {
		status.DurationMS = dur / int64(time.Millisecond)
	}
	return status, nil
}

// drainBusLocked consumes pending bus messages, recording end of stream and
// returning pipeline errors.
func (d *GstDriver) drainBusLocked() error {
	bus := d.current.GetBus()
	if bus == nil {
		return nil
	}
	for {
		msg := bus.Pop()
		if msg == nil {
			return nil
		}
		switch msg.Type() {
		case gst.MessageEOS:
			d.ended = true
		case gst.MessageError:
			gerr := msg.ParseError()
			d.ended = true
			return fmt.Errorf("gstreamer: %s", gerr.Error())
		}
	}
}

func (d *GstDriver) stopLocked() error {
	if d.current == nil {
		return nil
	}
	err := d.current.SetState(gst.StateNull)
	d.current = nil
	return err
}
