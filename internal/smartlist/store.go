package smartlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mikey-austin/rrplayer/internal/rules"
	"go.uber.org/zap"
)

// Default is the smartlist active at startup.
const Default = "unspecified"

// Builtins always exist, whether or not a file backs them.
var Builtins = []string{Default, "concentration", "party", "cometogether"}

// Store persists smartlists as one rule file per name.
type Store struct {
	log    *zap.Logger
	folder string
	mu     sync.Mutex
}

// NewStore creates a store rooted at folder.
func NewStore(log *zap.Logger, folder string) (*Store, error) {
	if strings.TrimSpace(folder) == "" {
		return nil, errors.New("playlist folder required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{log: log, folder: folder}, nil
}

// Folder returns the storage folder.
func (s *Store) Folder() string {
	return s.folder
}

// Discover returns the built-in names plus every regular file in the folder.
func (s *Store) Discover() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]bool{}
	names := make([]string, 0, len(Builtins))
	for _, name := range Builtins {
		seen[name] = true
		names = append(names, name)
	}

	entries, err := os.ReadDir(s.folder)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.Contains(name, ".tmp.") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads the named smartlist. A missing file is an empty list. Malformed
// lines are logged and kept as partial rules.
func (s *Store) Load(name string) ([]rules.Rule, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []rules.Rule
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rule, err := rules.Parse(line)
		if err != nil {
			s.log.Warn("malformed smartlist line",
				zap.String("smartlist", name),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
		}
		out = append(out, rule)
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// Save replaces the named smartlist on disk.
func (s *Store) Save(name string, list []rules.Rule) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, rule := range list {
		buf.WriteString(rules.Serialize(rule))
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.folder, 0o755); err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid smartlist name %q", name)
	}
	return filepath.Join(s.folder, name), nil
}
