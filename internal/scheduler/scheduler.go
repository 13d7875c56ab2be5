package scheduler

import (
	"math/rand/v2"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mikey-austin/rrplayer/internal/library"
	"github.com/mikey-austin/rrplayer/internal/rules"
	"github.com/mikey-austin/rrplayer/internal/smartlist"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
	"go.uber.org/zap"
)

const (
	defaultMaxRandomPicks = 64
	searchLimit           = 20
)

// Config configures a Scheduler.
type Config struct {
	// MaxRandomPicks bounds rejected random picks before a linear scan.
	MaxRandomPicks int
	Rand           *rand.Rand
	Now            func() time.Time
}

// Result is one ranked search hit.
type Result struct {
	Track library.Track
	Score int
}

// Scheduler picks tracks and maintains the active smartlist.
// It is owned by a single goroutine and performs no locking.
type Scheduler struct {
	log       *zap.Logger
	index     *library.Index
	store     *smartlist.Store
	active    *rules.Set
	available []string
	wishlist  []library.Track
	rand      *rand.Rand
	now       func() time.Time
	maxPicks  int
}

// New discovers smartlists and activates the default one.
func New(log *zap.Logger, index *library.Index, store *smartlist.Store, cfg Config) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxRandomPicks <= 0 {
		cfg.MaxRandomPicks = defaultMaxRandomPicks
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	available, err := store.Discover()
	if err != nil {
		return nil, err
	}
	loaded, err := store.Load(smartlist.Default)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		log:       log,
		index:     index,
		store:     store,
		active:    rules.NewSet(smartlist.Default, loaded),
		available: available,
		rand:      cfg.Rand,
		now:       cfg.Now,
		maxPicks:  cfg.MaxRandomPicks,
	}
	log.Info("smartlist active", zap.String("smartlist", smartlist.Default), zap.Int("rules", len(loaded)))
	return s, nil
}

// Next returns the next track to play. The wishlist is served first; entries
// that no longer exist are dropped. It returns false when nothing is playable.
func (s *Scheduler) Next() (library.Track, bool) {
	for len(s.wishlist) > 0 {
		track := s.wishlist[0]
		s.wishlist = s.wishlist[1:]
		if _, err := os.Stat(track.Path()); err == nil {
			return track, true
		}
		s.log.Warn("dropping missing wishlist item", zap.String("item", track.ID()))
	}

	n := s.index.Len()
	if n == 0 {
		return library.Track{}, false
	}

	for i := 0; i < s.maxPicks; i++ {
		key := s.index.Key(s.rand.IntN(n))
		files := s.index.Files(key)
		if len(files) == 0 {
			continue
		}
		track, err := s.index.Track(key, files[s.rand.IntN(len(files))])
		if err != nil {
			s.log.Error("resolve track failed", zap.Error(err))
			continue
		}
		if !s.active.Banned(track.FolderPath(), track.File) {
			return track, true
		}
	}

	// Random picks kept landing on banned tracks; walk everything once
	// starting from a random folder.
	start := s.rand.IntN(n)
	for j := 0; j < n; j++ {
		key := s.index.Key((start + j) % n)
		for _, file := range s.index.Files(key) {
			track, err := s.index.Track(key, file)
			if err != nil {
				continue
			}
			if !s.active.Banned(track.FolderPath(), track.File) {
				return track, true
			}
		}
	}
	s.log.Warn("every indexed track is banned", zap.String("smartlist", s.active.Name()))
	return library.Track{}, false
}

// AddTag records a tag from listener against the active smartlist and
// persists it. Upvotes apply to current; bans apply to subject.
func (s *Scheduler) AddTag(listener string, current library.Track, position *float64, tagName, subject string) error {
	switch strings.TrimSpace(tagName) {
	case "":
		return rrp.Errorf(rrp.KindBadRequest, "tag_name required")
	case rules.TagBan:
		if strings.TrimSpace(subject) == "" {
			return rrp.Errorf(rrp.KindBadRequest, "ban requires subject")
		}
	case rules.TagUpvote:
		if current.IsZero() {
			return rrp.Errorf(rrp.KindInvalidState, "nothing is playing")
		}
		subject = current.ID()
	default:
		return rrp.Errorf(rrp.KindBadRequest, "unsupported tag %q", tagName)
	}

	rule, err := rules.New(listener, tagName, subject, position, s.now())
	if err != nil {
		return err
	}
	s.active.Add(rule)
	s.log.Info("tag added",
		zap.String("smartlist", s.active.Name()),
		zap.String("listener", listener),
		zap.String("tag", rule.TagName),
		zap.String("subject", rule.TagString),
	)
	if err := s.Flush(); err != nil {
		s.log.Warn("smartlist flush failed", zap.String("smartlist", s.active.Name()), zap.Error(err))
	}
	return nil
}

// ActivateSmartlist flushes the current smartlist and switches to name.
func (s *Scheduler) ActivateSmartlist(name string) error {
	if !s.isAvailable(name) {
		return rrp.Errorf(rrp.KindInvalidValue, "unknown smartlist %q", name)
	}
	if err := s.Flush(); err != nil {
		s.log.Warn("smartlist flush failed", zap.String("smartlist", s.active.Name()), zap.Error(err))
	}
	loaded, err := s.store.Load(name)
	if err != nil {
		return rrp.Errorf(rrp.KindInternal, "load smartlist %q: %v", name, err)
	}
	s.active = rules.NewSet(name, loaded)
	s.log.Info("smartlist active", zap.String("smartlist", name), zap.Int("rules", len(loaded)))
	return nil
}

// Smartlists returns the discovered smartlists and the active name.
func (s *Scheduler) Smartlists() ([]string, string) {
	out := make([]string, len(s.available))
	copy(out, s.available)
	return out, s.active.Name()
}

// Active returns the active rule set.
func (s *Scheduler) Active() *rules.Set {
	return s.active
}

// Flush writes the active smartlist if it changed.
func (s *Scheduler) Flush() error {
	if !s.active.Dirty() {
		return nil
	}
	if err := s.store.Save(s.active.Name(), s.active.Rules()); err != nil {
		return err
	}
	s.active.MarkClean()
	return nil
}

// Search ranks indexed tracks by how many query tokens occur in the relative
// folder and in the file name. Equal scores keep discovery order.
func (s *Scheduler) Search(query string) []Result {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	var results []Result
	for _, key := range s.index.Keys() {
		folder, err := s.index.Resolve(key.Folder)
		if err != nil {
			continue
		}
		folderScore := countTokens(strings.ToLower(folder), tokens)
		for _, file := range s.index.Files(key) {
			name, err := s.index.Resolve(file)
			if err != nil {
				continue
			}
			score := folderScore + countTokens(strings.ToLower(name), tokens)
			if score == 0 {
				continue
			}
			track, err := s.index.Track(key, file)
			if err != nil {
				continue
			}
			results = append(results, Result{Track: track, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > searchLimit {
		results = results[:searchLimit]
	}
	return results
}

// ScheduleNext queues a track identifier ahead of random selection.
// Existence is checked when the item is dequeued.
func (s *Scheduler) ScheduleNext(item string) error {
	track, err := s.index.ParseTrackID(item)
	if err != nil {
		return err
	}
	s.wishlist = append(s.wishlist, track)
	return nil
}

// Wishlist returns the queued tracks in play order.
func (s *Scheduler) Wishlist() []library.Track {
	out := make([]library.Track, len(s.wishlist))
	copy(out, s.wishlist)
	return out
}

func (s *Scheduler) isAvailable(name string) bool {
	for _, candidate := range s.available {
		if candidate == name {
			return true
		}
	}
	return false
}

func countTokens(s string, tokens []string) int {
	n := 0
	for _, token := range tokens {
		if strings.Contains(s, token) {
			n++
		}
	}
	return n
}
