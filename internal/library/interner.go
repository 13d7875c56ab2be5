package library

import "github.com/mikey-austin/rrplayer/pkg/rrp"

// Interner maps path components to dense integer ids and back.
type Interner struct {
	ids   map[string]int
	names []string
}

// NewInterner returns an empty interner.
func NewInterner() *Interner {
	return &Interner{ids: map[string]int{}}
}

// Intern returns the id for s, allocating the next one on first sight.
func (i *Interner) Intern(s string) int {
	if id, ok := i.ids[s]; ok {
		return id
	}
	id := len(i.names)
	i.names = append(i.names, s)
	i.ids[s] = id
	return id
}

// Lookup returns the id of s without allocating one.
func (i *Interner) Lookup(s string) (int, bool) {
	id, ok := i.ids[s]
	return id, ok
}

// Resolve returns the string for an issued id.
func (i *Interner) Resolve(id int) (string, error) {
	if id < 0 || id >= len(i.names) {
		return "", rrp.Errorf(rrp.KindInternal, "unknown name id %d", id)
	}
	return i.names[id], nil
}

// Len returns the number of interned names.
func (i *Interner) Len() int {
	return len(i.names)
}
