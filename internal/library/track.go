package library

import (
	"path/filepath"
	"strings"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// Track is a fully qualified reference to an indexed file.
type Track struct {
	Root   string
	Folder string
	File   string
}

// ID returns the wire identifier "root:folder:file".
func (t Track) ID() string {
	return t.Root + ":" + t.Folder + ":" + t.File
}

// FolderPath returns the absolute folder path.
func (t Track) FolderPath() string {
	return filepath.Join(t.Root, t.Folder)
}

// Path returns the absolute file path.
func (t Track) Path() string {
	return filepath.Join(t.Root, t.Folder, t.File)
}

// IsZero reports whether t is unset.
func (t Track) IsZero() bool {
	return t == Track{}
}

// ParseTrackID parses a "root:folder:file" identifier. The file part may
// itself contain colons.
func ParseTrackID(id string) (Track, error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return Track{}, rrp.Errorf(rrp.KindBadRequest, "malformed track id %q", id)
	}
	folder := parts[1]
	if folder == "" {
		folder = "."
	}
	return Track{Root: parts[0], Folder: folder, File: parts[2]}, nil
}
