package rules

import "strings"

const recentMatches = 32

// Match records a folder/file pair rejected by a ban rule.
type Match struct {
	Folder string
	File   string
	Rule   string
}

// Set holds the rules of the active smartlist.
type Set struct {
	name   string
	rules  []Rule
	dirty  bool
	recent []Match
	next   int
}

// NewSet wraps rules loaded for the named smartlist.
func NewSet(name string, rules []Rule) *Set {
	return &Set{name: name, rules: rules}
}

// Name returns the smartlist name.
func (s *Set) Name() string {
	return s.name
}

// Add appends a rule and marks the set dirty.
func (s *Set) Add(r Rule) {
	s.rules = append(s.rules, r)
	s.dirty = true
}

// Rules returns a copy of the rules in insertion order.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *Set) Len() int {
	return len(s.rules)
}

// Dirty reports whether the set changed since the last flush.
func (s *Set) Dirty() bool {
	return s.dirty
}

// MarkClean clears the dirty flag after a successful flush.
func (s *Set) MarkClean() {
	s.dirty = false
}

// Banned reports whether any ban rule matches the folder path and file name.
func (s *Set) Banned(folder, file string) bool {
	lf, lfile := strings.ToLower(folder), strings.ToLower(file)
	for _, r := range s.rules {
		if r.TagName != TagBan {
			continue
		}
		if r.matches(lf, lfile) {
			s.record(Match{Folder: folder, File: file, Rule: r.TagString})
			return true
		}
	}
	return false
}

// Recent returns recent ban matches, oldest first.
func (s *Set) Recent() []Match {
	if len(s.recent) < recentMatches {
		out := make([]Match, len(s.recent))
		copy(out, s.recent)
		return out
	}
	out := make([]Match, 0, recentMatches)
	out = append(out, s.recent[s.next:]...)
	return append(out, s.recent[:s.next]...)
}

func (s *Set) record(m Match) {
	if len(s.recent) < recentMatches {
		s.recent = append(s.recent, m)
		return
	}
	s.recent[s.next] = m
	s.next = (s.next + 1) % recentMatches
}
