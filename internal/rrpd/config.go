package rrpd

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for rrpd.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared server settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	Identity  string     `toml:"identity"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogSource bool       `toml:"log_source"`
	LogUTC    bool       `toml:"log_utc"`
	Daemonize bool       `toml:"daemonize"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	Jukebox      JukeboxConfig      `toml:"jukebox"`
	Playback     PlaybackConfig     `toml:"playback"`
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
}

// JukeboxConfig configures the jukebox module.
type JukeboxConfig struct {
	Enabled         bool     `toml:"enabled"`
	NodeID          string   `toml:"node_id"`
	Roots           []string `toml:"roots"`
	MusicExtensions []string `toml:"music_extensions"`
	PlaylistFolder  string   `toml:"playlist_folder"`
	Watch           bool     `toml:"watch"`
	IdleBackoffMS   int64    `toml:"idle_backoff_ms"`
	MaxRandomPicks  int      `toml:"max_random_picks"`
}

// PlaybackConfig configures the playback controller and its driver.
type PlaybackConfig struct {
	Enabled    bool    `toml:"enabled"`
	Driver     string  `toml:"driver"`
	VLCURL     string  `toml:"vlc_url"`
	VLCUser    string  `toml:"vlc_user"`
	VLCPass    string  `toml:"vlc_pass"`
	TimeoutMS  int64   `toml:"timeout_ms"`
	Pipeline   string  `toml:"pipeline"`
	Device     string  `toml:"device"`
	Volume     float64 `toml:"volume"`
	VolumeStep float64 `toml:"volume_step"`
	TickMS     int64   `toml:"tick_ms"`
	Autoplay   bool    `toml:"autoplay"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// IdleBackoff returns the configured idle backoff.
func (c JukeboxConfig) IdleBackoff() time.Duration {
	return time.Duration(c.IdleBackoffMS) * time.Millisecond
}

// Timeout returns the driver request timeout.
func (c PlaybackConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Tick returns the position poll interval.
func (c PlaybackConfig) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "rrp", "rrpd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rrp", "rrpd.toml"), nil
}
