package playback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver controls an external player.
type Driver interface {
	Play(path string) error
	Pause() error
	Resume() error
	Stop() error
	Seek(positionMS int64) error
	SetVolume(volume float64) error
	Status() (Status, error)
}

// Status is a point-in-time view of the player.
type Status struct {
	PositionMS int64
	DurationMS int64
	Playing    bool
	// Ended is set once the player has finished the loaded track.
	Ended bool
}

// ErrUnsupported indicates the driver cannot perform an action.
var ErrUnsupported = errors.New("unsupported")

// DriverConfig selects and configures a driver.
type DriverConfig struct {
	Driver   string
	VLCURL   string
	VLCUser  string
	VLCPass  string
	Timeout  time.Duration
	Pipeline string
	Device   string
}

// NewDriver builds the configured driver.
func NewDriver(cfg DriverConfig) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "vlc":
		driver, err := NewVLCDriver(cfg.VLCURL, cfg.VLCUser, cfg.VLCPass, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		return driver, nil
	case "gstreamer", "gst":
		driver, err := NewGstDriver(cfg.Pipeline, cfg.Device)
		if err != nil {
			return nil, err
		}
		return driver, nil
	default:
		return nil, fmt.Errorf("unknown playback driver %q", cfg.Driver)
	}
}
