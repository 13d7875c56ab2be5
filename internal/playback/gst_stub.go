//go:build !gstreamer

package playback

import "errors"

// DefaultPipeline plays a file URI through playbin.
const DefaultPipeline = "playbin uri={url} volume={volume}"

var errNoGstreamer = errors.New("gstreamer build tag not enabled")

// GstDriver is unavailable without the gstreamer build tag.
type GstDriver struct{}

// NewGstDriver fails when built without gstreamer support.
func NewGstDriver(pipeline string, device string) (*GstDriver, error) {
	return nil, errNoGstreamer
}

func (d *GstDriver) Play(path string) error         { return errNoGstreamer }
func (d *GstDriver) Pause() error                   { return errNoGstreamer }
func (d *GstDriver) Resume() error                  { return errNoGstreamer }
func (d *GstDriver) Stop() error                    { return errNoGstreamer }
func (d *GstDriver) Seek(positionMS int64) error    { return errNoGstreamer }
func (d *GstDriver) SetVolume(volume float64) error { return errNoGstreamer }
func (d *GstDriver) Status() (Status, error)        { return Status{}, errNoGstreamer }
