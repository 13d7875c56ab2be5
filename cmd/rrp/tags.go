package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func banCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ban <subject>",
		Short: "Ban tracks matching subject from the active smartlist",
		Long: "Ban tracks matching subject from the active smartlist.\n\n" +
			"The subject is matched case-insensitively against folder and file names.\n" +
			"A subject like \"artist/track.mp3\" bans that track only.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.done(app.service.Ban(ctx, "", strings.Join(args, " ")))
		},
	}
}

func upvoteCommand() *cobra.Command {
	return simpleCommand("upvote", "Upvote the current track", func(app *app, ctx context.Context) error {
		return app.service.Upvote(ctx, "")
	})
}
