package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey-austin/rrplayer/internal/ports"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// KindJukebox is the presence kind announced by rrpd.
const KindJukebox = "jukebox"

// Resolver resolves selectors to node presence.
type Resolver struct {
	Presence ports.Broker
	Config   Config
}

// ResolveJukebox resolves a jukebox selector, falling back to the configured
// node and then to the only jukebox online.
func (r Resolver) ResolveJukebox(ctx context.Context, selector string) (rrp.Presence, error) {
	if selector == "" {
		selector = r.Config.Node
	}

	presence, err := r.Presence.ListPresence(ctx)
	if err != nil {
		return rrp.Presence{}, WrapError(ExitRuntime, "list presence", err)
	}

	filtered := filterPresenceByKind(presence, KindJukebox)
	if selector == "" {
		switch len(filtered) {
		case 1:
			return filtered[0], nil
		case 0:
			return rrp.Presence{}, &CLIError{Code: ExitNotFound, Msg: "no jukebox online"}
		default:
			return rrp.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("node required: %s", suggestionList(filtered))}
		}
	}
	return resolveSelector(selector, filtered, r.Config.Aliases)
}

func filterPresenceByKind(presence []rrp.Presence, kind string) []rrp.Presence {
	if kind == "" {
		return presence
	}
	out := make([]rrp.Presence, 0, len(presence))
	for _, p := range presence {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func resolveSelector(selector string, presence []rrp.Presence, aliases map[string]string) (rrp.Presence, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return rrp.Presence{}, &CLIError{Code: ExitUsage, Msg: "selector required"}
	}

	if alias, ok := aliases[selector]; ok {
		selector = alias
	}

	for _, p := range presence {
		if p.NodeID == selector {
			return p, nil
		}
	}

	matches := make([]rrp.Presence, 0)
	for _, p := range presence {
		if strings.EqualFold(p.Name, selector) || strings.EqualFold(p.NodeID, selector) {
			matches = append(matches, p)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return rrp.Presence{}, &CLIError{Code: ExitNotFound, Msg: fmt.Sprintf("no jukebox matches %q", selector)}
	}
	return rrp.Presence{}, &CLIError{Code: ExitUsage, Msg: fmt.Sprintf("ambiguous selector %q: %s", selector, suggestionList(matches))}
}

func suggestionList(matches []rrp.Presence) string {
	names := make([]string, 0, len(matches))
	for _, p := range matches {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.NodeID))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
