package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger an immediate sync run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sync()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				switch resp.Status {
				case "rejected":
					fmt.Fprintln(out, "A sync is already in progress")
				case "offline":
					fmt.Fprintln(out, "Device is offline; sync skipped")
				default:
					fmt.Fprintf(out, "Sync finished: %d synced, %d failed\n", resp.Synced, resp.Failed)
					for _, msg := range resp.Errors {
						fmt.Fprintf(out, "  error: %s\n", msg)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the sync result as JSON")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop background syncing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon stopped: %s\n", yesNo(resp.Stopped))
				return nil
			})
		},
	}
}
