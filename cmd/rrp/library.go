package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
)

func searchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query...>",
		Short: "Search the library",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Search(ctx, "", strings.Join(args, " "))
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func scheduleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule <item>",
		Short: "Play a track next",
		Long:  "Play a track next. Item is a track identifier as printed by search.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return app.done(app.service.Schedule(ctx, "", args[0]))
		},
	}
}

func addCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add [url]",
		Short: "Submit a URL to the server",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			url := ""
			if len(args) == 1 {
				url = args[0]
			}
			result, err := app.service.Add(ctx, "", url)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
