package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Identity is the persisted client signature.
type Identity struct {
	Signature string `json:"signature"`
	CreatedAt int64  `json:"created_at"`
}

// Store keeps the client identity under XDG_STATE_HOME or ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates an identity store at the default location.
func NewStore() (*Store, error) {
	path, err := identityPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// NewStoreAt creates an identity store backed by path.
func NewStoreAt(path string) *Store {
	return &Store{path: path}
}

// Signature returns the stored signature, creating one on first use.
func (s *Store) Signature() (string, error) {
	id, err := s.Load()
	if err != nil {
		return "", err
	}
	return id.Signature, nil
}

// Load returns the stored identity, creating and saving one when absent.
func (s *Store) Load() (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.read()
	if err != nil {
		return Identity{}, err
	}
	if ok {
		return id, nil
	}
	id = Identity{Signature: "rrp-" + uuid.NewString(), CreatedAt: time.Now().Unix()}
	if err := s.write(id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Reset forgets the stored identity. The next Load creates a new one.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) read() (Identity, bool, error) {
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	if len(file) == 0 {
		return Identity{}, false, nil
	}
	var id Identity
	if err := json.Unmarshal(file, &id); err != nil {
		return Identity{}, false, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return id, id.Signature != "", nil
}

func (s *Store) write(id Identity) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func identityPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "rrp", "identity.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "rrp", "identity.json"), nil
}
