package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// Tag names accepted for live additions. Persisted lists may carry others.
const (
	TagBan    = rrp.TagBan
	TagUpvote = rrp.TagUpvote
)

// Rule is one tag applied by a listener.
type Rule struct {
	Timestamp float64
	Listener  string
	TagName   string
	TagString string
	Position  *float64

	// folder/file are set for ban subjects shaped like "folder/file.ext".
	folder     string
	file       string
	decomposed bool
}

// New builds a rule from a live request. The subject is lower-cased. Control
// characters become spaces so the rule stays on one persisted line.
func New(listener, tagName, subject string, position *float64, now time.Time) (Rule, error) {
	tagName = strings.TrimSpace(tagName)
	if tagName != TagBan && tagName != TagUpvote {
		return Rule{}, rrp.Errorf(rrp.KindBadRequest, "unsupported tag %q", tagName)
	}
	r := Rule{
		Timestamp: float64(now.UnixNano()) / 1e9,
		Listener:  strings.TrimSpace(strings.ReplaceAll(singleLine(listener), ",", " ")),
		TagName:   tagName,
		TagString: strings.ToLower(strings.TrimSpace(singleLine(subject))),
		Position:  position,
	}
	if r.TagName == TagBan && r.TagString == "" {
		return Rule{}, rrp.Errorf(rrp.KindBadRequest, "ban requires subject")
	}
	r.decompose()
	return r, nil
}

func singleLine(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// Parse reads a serialized rule. Malformed lines yield the fields that could
// be recovered together with an error. Commas inside the subject survive.
func Parse(line string) (Rule, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, ",", 4)
	if len(parts) == 4 {
		rest := parts[3]
		if i := strings.LastIndex(rest, ","); i >= 0 {
			parts = append(parts[:3], rest[:i], rest[i+1:])
		}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var r Rule
	var errs []string
	if len(parts) != 5 {
		errs = append(errs, fmt.Sprintf("expected 5 fields, got %d", len(parts)))
	}
	if len(parts) > 0 {
		ts, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("timestamp %q", parts[0]))
		}
		r.Timestamp = ts
	}
	if len(parts) > 1 {
		r.Listener = parts[1]
	}
	if len(parts) > 2 {
		r.TagName = parts[2]
	}
	if len(parts) > 3 {
		r.TagString = parts[3]
	}
	if len(parts) > 4 {
		pos, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("position %q", parts[4]))
		} else {
			r.Position = &pos
		}
	}
	r.decompose()

	if len(errs) > 0 {
		return r, fmt.Errorf("malformed rule %q: %s", line, strings.Join(errs, "; "))
	}
	return r, nil
}

// Serialize renders the rule in its persisted form, without a newline.
// A missing position is written as zero.
func Serialize(r Rule) string {
	pos := 0.0
	if r.Position != nil {
		pos = *r.Position
	}
	return fmt.Sprintf("%.3f, %s, %s, %s, %.2f", r.Timestamp, r.Listener, r.TagName, r.TagString, pos)
}

// Matches reports whether the rule applies to a folder path and file name.
// Unknown tag names and empty subjects never match.
func Matches(r Rule, folder, file string) bool {
	return r.matches(strings.ToLower(folder), strings.ToLower(file))
}

// Components returns the folder and file parts of a decomposed subject.
func (r Rule) Components() (folder, file string, ok bool) {
	return r.folder, r.file, r.decomposed
}

func (r Rule) matches(folder, file string) bool {
	if r.TagName != TagBan && r.TagName != TagUpvote {
		return false
	}
	subject := strings.ToLower(r.TagString)
	if subject == "" {
		return false
	}
	if r.decomposed {
		if r.folder != "" && !strings.Contains(folder, r.folder) {
			return false
		}
		if r.file != "" && !strings.Contains(file, r.file) {
			return false
		}
		return true
	}
	return strings.Contains(folder, subject) || strings.Contains(file, subject)
}

func (r *Rule) decompose() {
	r.folder, r.file, r.decomposed = "", "", false
	if r.TagName != TagBan {
		return
	}
	subject := strings.ToLower(r.TagString)
	i := strings.LastIndex(subject, "/")
	if i < 0 || !strings.Contains(subject[i+1:], ".") {
		return
	}
	r.folder = subject[:i]
	r.file = subject[i+1:]
	r.decomposed = true
}
