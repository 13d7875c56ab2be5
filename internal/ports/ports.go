package ports

import (
	"context"

	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// Broker publishes commands and reads presence and broadcast events.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd rrp.CommandEnvelope) (rrp.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]rrp.Presence, error)
	WatchEvents(ctx context.Context, nodeID string) (<-chan rrp.Event, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}

// IdentityStore persists the client signature between invocations so the
// server recognises successive commands as the same listener.
type IdentityStore interface {
	Signature() (string, error)
}
