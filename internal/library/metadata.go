package library

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Metadata holds display tags for a track.
type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata reads embedded tags, falling back to the file and folder names.
func ReadMetadata(path string) Metadata {
	meta, err := readTags(path)
	if err != nil {
		return fallbackMetadata(path)
	}
	fallback := fallbackMetadata(path)
	if meta.Title == "" {
		meta.Title = fallback.Title
	}
	if meta.Artist == "" {
		meta.Artist = fallback.Artist
	}
	if meta.Album == "" {
		meta.Album = fallback.Album
	}
	return meta
}

func readTags(path string) (Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
	}, nil
}

// fallbackMetadata parses "Artist - Title.ext" and uses the folder as album.
func fallbackMetadata(path string) Metadata {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	meta := Metadata{Title: name}
	if parts := strings.SplitN(name, " - ", 2); len(parts) == 2 {
		meta.Artist = strings.TrimSpace(parts[0])
		meta.Title = strings.TrimSpace(parts[1])
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." && dir != string(filepath.Separator) {
		meta.Album = filepath.Base(dir)
		parent := filepath.Base(filepath.Dir(dir))
		if meta.Artist == "" && parent != "." && parent != string(filepath.Separator) {
			meta.Artist = parent
		}
	}
	return meta
}
