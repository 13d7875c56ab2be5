package core

import "github.com/mikey-austin/rrplayer/pkg/rrp"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []rrp.Presence
}

// StatusResult holds the server view returned by hello.
type StatusResult struct {
	Node  rrp.Presence
	Hello rrp.HelloReply
}

// EventResult is one broadcast event seen while watching.
type EventResult struct {
	Node  rrp.Presence
	Event rrp.Event
}

// SearchResult holds search hits, best first.
type SearchResult struct {
	Node  rrp.Presence
	Query string
	Items []rrp.SearchItem
}

// SmartlistsResult lists the known smartlists.
type SmartlistsResult struct {
	Node       rrp.Presence
	Active     string
	Smartlists []string
}

// ListenersResult lists identified listeners.
type ListenersResult struct {
	Node      rrp.Presence
	Listeners []rrp.ListenerInfo
}

// AddResult reports whether the server accepted an add request.
type AddResult struct {
	URL         string
	Implemented bool
}
