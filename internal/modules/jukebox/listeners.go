package jukebox

import "time"

// Listener is a client known to the server. Identification is one-way.
type Listener struct {
	Signature  string
	UserID     string
	UserName   string
	Identified bool
	FirstSeen  time.Time
}

// Registry tracks listeners by transport signature. Listeners are never
// removed while the server runs.
type Registry struct {
	bySig map[string]*Listener
	order []string
	now   func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bySig: map[string]*Listener{}, now: time.Now}
}

// Touch returns the listener for sig, creating it on first contact.
func (r *Registry) Touch(sig string) Listener {
	return *r.touch(sig)
}

// Identify records a successful hello.
func (r *Registry) Identify(sig, userID, userName string) Listener {
	l := r.touch(sig)
	l.UserID = userID
	l.UserName = userName
	l.Identified = true
	return *l
}

// Get returns the listener for sig.
func (r *Registry) Get(sig string) (Listener, bool) {
	l, ok := r.bySig[sig]
	if !ok {
		return Listener{}, false
	}
	return *l, true
}

// Identified returns identified listeners in first-contact order.
func (r *Registry) Identified() []Listener {
	var out []Listener
	for _, sig := range r.order {
		if l := r.bySig[sig]; l.Identified {
			out = append(out, *l)
		}
	}
	return out
}

// Len returns the number of known listeners.
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) touch(sig string) *Listener {
	if l, ok := r.bySig[sig]; ok {
		return l
	}
	l := &Listener{Signature: sig, FirstSeen: r.now()}
	r.bySig[sig] = l
	r.order = append(r.order, sig)
	return l
}
