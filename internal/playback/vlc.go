package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// VLCDriver drives VLC through its HTTP status interface.
type VLCDriver struct {
	baseURL  string
	http     *http.Client
	username string
	password string
}

// NewVLCDriver creates a VLC driver. baseURL defaults to http://127.0.0.1:8080.
func NewVLCDriver(baseURL string, username string, password string, timeout time.Duration) (*VLCDriver, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("vlc url: %w", err)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &VLCDriver{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		username: username,
		password: password,
	}, nil
}

// Play replaces the VLC playlist with path and starts it.
func (d *VLCDriver) Play(path string) error {
	if path == "" {
		return errors.New("path required")
	}
	_, _ = d.request(url.Values{"command": []string{"pl_stop"}})
	_, _ = d.request(url.Values{"command": []string{"pl_empty"}})
	_, err := d.request(url.Values{
		"command": []string{"in_play"},
		"input":   []string{fileURI(path)},
	})
	return err
}

func (d *VLCDriver) Pause() error {
	_, err := d.request(url.Values{"command": []string{"pl_forcepause"}})
	return err
}

func (d *VLCDriver) Resume() error {
	_, err := d.request(url.Values{"command": []string{"pl_forceresume"}})
	return err
}

func (d *VLCDriver) Stop() error {
	_, err := d.request(url.Values{"command": []string{"pl_stop"}})
	return err
}

func (d *VLCDriver) Seek(positionMS int64) error {
	if positionMS < 0 {
		positionMS = 0
	}
	_, err := d.request(url.Values{
		"command": []string{"seek"},
		"val":     []string{strconv.FormatInt(positionMS/1000, 10)},
	})
	return err
}

// SetVolume maps 0..1 onto VLC's 0..256 scale.
func (d *VLCDriver) SetVolume(volume float64) error {
	level := int(clamp(volume, 0, 1)*256 + 0.5)
	_, err := d.request(url.Values{
		"command": []string{"volume"},
		"val":     []string{strconv.Itoa(level)},
	})
	return err
}

func (d *VLCDriver) Status() (Status, error) {
	payload, err := d.request(nil)
	if err != nil {
		return Status{}, err
	}
	var status vlcStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		return Status{}, fmt.Errorf("vlc status: %w", err)
	}
	return Status{
		PositionMS: status.Time * 1000,
		DurationMS: status.Length * 1000,
		Playing:    status.State == "playing",
		Ended:      status.State == "stopped",
	}, nil
}

type vlcStatus struct {
	State  string `json:"state"`
	Time   int64  `json:"time"`
	Length int64  `json:"length"`
}

func (d *VLCDriver) request(values url.Values) ([]byte, error) {
	endpoint := d.baseURL + "/requests/status.json"
	if len(values) > 0 {
		endpoint = endpoint + "?" + values.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if d.username != "" || d.password != "" {
		req.SetBasicAuth(d.username, d.password)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("vlc error: %s", msg)
	}
	return body, nil
}

func fileURI(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return (&url.URL{Scheme: "file", Path: path}).String()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
