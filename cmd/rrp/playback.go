package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

// simpleCommand builds a command that takes no arguments and returns no result.
func simpleCommand(use, short string, run func(app *app, ctx context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.done(run(app, ctx))
		},
	}
}

func playCommand() *cobra.Command {
	return simpleCommand("play", "Start or resume playback", func(app *app, ctx context.Context) error {
		return app.service.Play(ctx, "")
	})
}

func pauseCommand() *cobra.Command {
	return simpleCommand("pause", "Toggle pause", func(app *app, ctx context.Context) error {
		return app.service.Pause(ctx, "")
	})
}

func stopCommand() *cobra.Command {
	return simpleCommand("stop", "Stop playback", func(app *app, ctx context.Context) error {
		return app.service.Stop(ctx, "")
	})
}

func skipCommand() *cobra.Command {
	return simpleCommand("skip", "Skip to the next track", func(app *app, ctx context.Context) error {
		return app.service.Skip(ctx, "")
	})
}

func quitCommand() *cobra.Command {
	return simpleCommand("quit", "Ask the server to exit", func(app *app, ctx context.Context) error {
		return app.service.Quit(ctx, "")
	})
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek <seconds>",
		Short: "Seek within the current track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			seconds, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return usageError("invalid position %q", args[0])
			}
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.done(app.service.Seek(ctx, "", seconds))
		},
	}
}

func volumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "vol <0..100|+|-|+n|-n>",
		Short: "Set or step the volume",
		Long: "Set or step the volume.\n\n" +
			"A number sets the volume in percent. \"+\" and \"-\" step it once,\n" +
			"\"+n\" and \"-n\" step it n times. Negative steps need a separator: rrp vol -- -3",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.done(app.service.SetVolume(ctx, "", args[0]))
		},
	}
}
