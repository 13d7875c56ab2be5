package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/rrplayer/internal/core"
)

func lsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List jukeboxes online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.ListNodes(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func helloCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hello",
		Short: "Identify as a listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Hello(ctx, "")
			if err != nil {
				return err
			}
			if app.quiet {
				return nil
			}
			return app.printer.Print(result)
		},
	}
}

func statusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what is playing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Status(ctx, "")
			if err != nil {
				return err
			}
			if err := app.printer.Print(result); err != nil {
				return err
			}
			if watch {
				return watchStatus(app, result)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "follow now playing events")

	return cmd
}

func watchStatus(app *app, initial core.StatusResult) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	node, events, errs, err := app.service.WatchStatus(ctx, initial.Node.NodeID)
	if err != nil {
		return err
	}
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := app.printer.Print(core.EventResult{Node: node, Event: evt}); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			if err != nil {
				return core.WrapError(core.ExitRuntime, "watch", err)
			}
		}
	}
}
