package library

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

// DefaultExtensions lists the music extensions indexed when none are configured.
var DefaultExtensions = []string{".mp3", ".mp4", ".m4a", ".ogg", ".opus"}

var ignoredDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
	".bzr": true,
	"CVS":  true,
}

// FolderKey identifies an indexed folder by interned root and relative path.
type FolderKey struct {
	Root   int
	Folder int
}

// Index maps folders to the music files they contain.
// It is not safe for concurrent use; callers serialize access.
type Index struct {
	log     *zap.Logger
	names   *Interner
	exts    map[string]bool
	folders map[FolderKey][]int
	keys    []FolderKey
	roots   []int
	files   int
}

// NewIndex creates an empty index that accepts the given extensions.
func NewIndex(log *zap.Logger, exts []string) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	return &Index{
		log:     log,
		names:   NewInterner(),
		exts:    buildExtMap(exts),
		folders: map[FolderKey][]int{},
	}
}

// Scan is the result of walking one root, ready to be merged.
type Scan struct {
	Root    string
	Folders []ScannedFolder
	Elapsed time.Duration
}

// ScannedFolder lists the music files of one folder relative to its root.
type ScannedFolder struct {
	Rel   string
	Files []string
}

// IndexPath crawls root and indexes every folder not seen before.
// It returns the number of newly indexed files.
func (x *Index) IndexPath(root string) (int, error) {
	scan, err := x.Scan(root)
	if err != nil {
		return 0, err
	}
	return x.Merge(scan), nil
}

// Scan walks root without touching the index, so it may run on another
// goroutine while the index is in use. Merge applies the result.
func (x *Index) Scan(root string) (Scan, error) {
	if !filepath.IsAbs(root) {
		return Scan{}, rrp.Errorf(rrp.KindInvalidValue, "root %q must be absolute", root)
	}
	if len(root) > 1 && strings.HasSuffix(root, string(filepath.Separator)) {
		return Scan{}, rrp.Errorf(rrp.KindInvalidValue, "root %q has a trailing separator", root)
	}
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return Scan{}, rrp.Errorf(rrp.KindInvalidValue, "root %q: %v", root, err)
	}
	if !info.IsDir() {
		return Scan{}, rrp.Errorf(rrp.KindInvalidValue, "root %q is not a directory", root)
	}

	started := time.Now()
	var order []string
	music := map[string][]string{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			x.log.Debug("walk error", zap.Error(err), zap.String("path", path))
			return nil
		}
		if d.IsDir() {
			if path != root && ignoredDirs[d.Name()] {
				return filepath.SkipDir
			}
			order = append(order, path)
			return nil
		}
		if x.isMusic(d.Name()) {
			dir := filepath.Dir(path)
			music[dir] = append(music[dir], d.Name())
		}
		return nil
	})
	if err != nil {
		x.log.Warn("walk failed", zap.Error(err), zap.String("root", root))
	}

	scan := Scan{Root: root}
	for _, dir := range order {
		files := music[dir]
		if len(files) == 0 {
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			x.log.Debug("relative path failed", zap.Error(err), zap.String("path", dir))
			continue
		}
		scan.Folders = append(scan.Folders, ScannedFolder{Rel: rel, Files: files})
	}
	scan.Elapsed = time.Since(started)
	return scan, nil
}

// Merge adds the folders of scan that are not indexed yet and returns the
// number of newly indexed files.
func (x *Index) Merge(scan Scan) int {
	rootID := x.names.Intern(scan.Root)
	if !x.hasRoot(rootID) {
		x.roots = append(x.roots, rootID)
	}

	added := 0
	for _, folder := range scan.Folders {
		key := FolderKey{Root: rootID, Folder: x.names.Intern(folder.Rel)}
		if _, ok := x.folders[key]; ok {
			continue
		}
		ids := make([]int, 0, len(folder.Files))
		for _, name := range folder.Files {
			ids = append(ids, x.names.Intern(name))
		}
		x.folders[key] = ids
		x.keys = append(x.keys, key)
		added += len(ids)
	}
	x.files += added

	x.log.Info("index complete",
		zap.String("root", scan.Root),
		zap.Int("added", added),
		zap.Int("files", x.files),
		zap.Int("folders", len(x.keys)),
		zap.Duration("elapsed", scan.Elapsed),
	)
	return added
}

// Len returns the number of indexed folders.
func (x *Index) Len() int {
	return len(x.keys)
}

// FileCount returns the number of indexed files.
func (x *Index) FileCount() int {
	return x.files
}

// Key returns the i-th folder key in discovery order.
func (x *Index) Key(i int) FolderKey {
	return x.keys[i]
}

// Keys returns folder keys in discovery order.
func (x *Index) Keys() []FolderKey {
	out := make([]FolderKey, len(x.keys))
	copy(out, x.keys)
	return out
}

// Files returns the file ids of a folder.
func (x *Index) Files(key FolderKey) []int {
	return x.folders[key]
}

// Roots returns the indexed roots in the order they were added.
func (x *Index) Roots() []string {
	out := make([]string, 0, len(x.roots))
	for _, id := range x.roots {
		name, err := x.names.Resolve(id)
		if err != nil {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Resolve returns the interned string for id.
func (x *Index) Resolve(id int) (string, error) {
	return x.names.Resolve(id)
}

// Track resolves a folder key and file id into a track.
func (x *Index) Track(key FolderKey, file int) (Track, error) {
	root, err := x.names.Resolve(key.Root)
	if err != nil {
		return Track{}, err
	}
	folder, err := x.names.Resolve(key.Folder)
	if err != nil {
		return Track{}, err
	}
	name, err := x.names.Resolve(file)
	if err != nil {
		return Track{}, err
	}
	return Track{Root: root, Folder: folder, File: name}, nil
}

// Contains reports whether t names an indexed file.
func (x *Index) Contains(t Track) bool {
	root, ok := x.names.Lookup(t.Root)
	if !ok {
		return false
	}
	folder, ok := x.names.Lookup(t.Folder)
	if !ok {
		return false
	}
	file, ok := x.names.Lookup(t.File)
	if !ok {
		return false
	}
	for _, id := range x.folders[FolderKey{Root: root, Folder: folder}] {
		if id == file {
			return true
		}
	}
	return false
}

// ParseTrackID resolves a "root:folder:file" identifier against the indexed
// roots. Roots, folders and files may all contain colons, so every split
// after a known root is tried: an indexed file wins, then a file on disk.
// Identifiers under no known root fall back to ParseTrackID.
func (x *Index) ParseTrackID(id string) (Track, error) {
	var candidates []Track
	for _, root := range x.Roots() {
		if !strings.HasPrefix(id, root+":") {
			continue
		}
		rest := id[len(root)+1:]
		for i := 0; i < len(rest); i++ {
			if rest[i] != ':' || i == len(rest)-1 {
				continue
			}
			folder := rest[:i]
			if folder == "" {
				folder = "."
			}
			candidates = append(candidates, Track{Root: root, Folder: folder, File: rest[i+1:]})
		}
	}
	for _, t := range candidates {
		if x.Contains(t) {
			return t, nil
		}
	}
	for _, t := range candidates {
		if info, err := os.Stat(t.Path()); err == nil && !info.IsDir() {
			return t, nil
		}
	}
	if len(candidates) > 0 {
		return candidates[0], nil
	}
	return ParseTrackID(id)
}

func (x *Index) hasRoot(id int) bool {
	for _, r := range x.roots {
		if r == id {
			return true
		}
	}
	return false
}

func (x *Index) isMusic(name string) bool {
	return x.exts[strings.ToLower(filepath.Ext(name))]
}

func buildExtMap(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = true
	}
	return out
}
