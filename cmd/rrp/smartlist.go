package main

import (
	"context"

	"github.com/spf13/cobra"
)

func smartlistsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "smartlists",
		Short: "List smartlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Smartlists(ctx, "")
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}

func activateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <smartlist>",
		Short: "Switch the active smartlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.ActivateSmartlist(ctx, "", args[0])
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

func listenersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "listeners",
		Short: "List identified listeners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			result, err := app.service.Listeners(ctx, "")
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
}
