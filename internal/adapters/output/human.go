package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/rrplayer/internal/core"
	"github.com/mikey-austin/rrplayer/internal/library"
	"github.com/mikey-austin/rrplayer/pkg/rrp"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	out := p.Out
	if out == nil {
		out = os.Stdout
	}
	switch data := v.(type) {
	case core.NodesResult:
		return printNodes(out, data)
	case core.StatusResult:
		return printStatus(out, data)
	case core.EventResult:
		return printEvent(out, data)
	case core.SearchResult:
		return printSearch(out, data)
	case core.SmartlistsResult:
		return printSmartlists(out, data)
	case core.ListenersResult:
		return printListeners(out, data)
	case core.AddResult:
		return printAdd(out, data)
	default:
		_, err := fmt.Fprintln(out, "ok")
		return err
	}
}

func printNodes(out io.Writer, result core.NodesResult) error {
	rows := pterm.TableData{{"NAME", "NODE_ID", "ACTIVE", "SEEN"}}
	for _, node := range result.Nodes {
		active, _ := node.Caps["active"].(string)
		rows = append(rows, []string{node.Name, node.NodeID, active, formatTS(node.TS)})
	}
	return renderTable(out, rows)
}

func printStatus(out io.Writer, result core.StatusResult) error {
	h := result.Hello
	header := fmt.Sprintf("%s %s  [%s]", pterm.Bold.Sprint(h.Server), h.Version, h.ActiveSmartlist)
	if _, err := fmt.Fprintln(out, header); err != nil {
		return err
	}
	if h.CurrentTrack == "" {
		_, err := fmt.Fprintln(out, "  idle")
		return err
	}
	_, err := fmt.Fprintf(out, "  %s  %s\n", describeTrack(h.CurrentTrack), formatPosition(h.CurrentPos, h.TrackLength))
	return err
}

func printEvent(out io.Writer, result core.EventResult) error {
	evt := result.Event
	switch evt.Type {
	case rrp.EventNowPlaying:
		if evt.CurrentTrack == "" {
			_, err := fmt.Fprintln(out, "idle")
			return err
		}
		title := describeTrack(evt.CurrentTrack)
		if evt.Title != "" {
			title = strings.TrimSpace(strings.Join(nonEmpty(evt.Artist, evt.Title), " - "))
		}
		_, err := fmt.Fprintf(out, "%s  %s\n", title, formatPosition(evt.CurrentPos, evt.TrackLength))
		return err
	case rrp.EventPlayerError:
		_, err := fmt.Fprintln(out, pterm.Red("player error: "+evt.What))
		return err
	default:
		_, err := fmt.Fprintf(out, "%s\n", evt.Type)
		return err
	}
}

func printSearch(out io.Writer, result core.SearchResult) error {
	if len(result.Items) == 0 {
		_, err := fmt.Fprintf(out, "no matches for %q\n", result.Query)
		return err
	}
	rows := pterm.TableData{{"SCORE", "FOLDER", "FILE", "ITEM"}}
	for _, item := range result.Items {
		rows = append(rows, []string{fmt.Sprintf("%d", item.Score), item.Folder, item.File, item.Item})
	}
	return renderTable(out, rows)
}

func printSmartlists(out io.Writer, result core.SmartlistsResult) error {
	rows := pterm.TableData{{"", "SMARTLIST"}}
	for _, name := range result.Smartlists {
		marker := ""
		if name == result.Active {
			marker = "*"
		}
		rows = append(rows, []string{marker, name})
	}
	return renderTable(out, rows)
}

func printListeners(out io.Writer, result core.ListenersResult) error {
	rows := pterm.TableData{{"USER_ID", "USER_NAME"}}
	for _, l := range result.Listeners {
		rows = append(rows, []string{l.UserID, l.UserName})
	}
	return renderTable(out, rows)
}

func printAdd(out io.Writer, result core.AddResult) error {
	if result.Implemented {
		_, err := fmt.Fprintf(out, "added %s\n", result.URL)
		return err
	}
	_, err := fmt.Fprintln(out, "server accepted the request but does not implement add")
	return err
}

func renderTable(out io.Writer, rows pterm.TableData) error {
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}

func describeTrack(id string) string {
	track, err := library.ParseTrackID(id)
	if err != nil {
		return id
	}
	if track.Folder == "." {
		return track.File
	}
	return track.Folder + "/" + track.File
}

func formatPosition(pos, length *float64) string {
	if pos == nil {
		return ""
	}
	if length == nil || *length <= 0 {
		return formatSeconds(*pos)
	}
	return fmt.Sprintf("%s/%s", formatSeconds(*pos), formatSeconds(*length))
}

func formatSeconds(s float64) string {
	d := time.Duration(s * float64(time.Second)).Round(time.Second)
	m := int(d / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, sec)
}

func formatTS(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).Format(time.RFC3339)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
