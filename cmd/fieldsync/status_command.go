package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	runningKind := statusError
	if status.Running {
		runningKind = statusOK
	}
	daemonWord := "stopped"
	if status.Running {
		daemonWord = fmt.Sprintf("running (pid %d)", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("daemon", runningKind, daemonWord, colorize))

	onlineKind := statusWarn
	if status.Online {
		onlineKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("network", onlineKind, boolWord(status.Online, "online", "offline"), colorize))

	syncingKind := statusInfo
	syncWord := "idle"
	if status.Syncing {
		syncingKind = statusOK
		syncWord = "in progress"
	}
	fmt.Fprintln(out, renderStatusLine("sync", syncingKind, syncWord, colorize))

	lastSync := "never"
	if !status.LastSync.IsZero() {
		lastSync = status.LastSync.Local().Format(time.RFC1123)
	}
	fmt.Fprintln(out, renderStatusLine("last_sync", statusInfo, lastSync, colorize))

	pending := status.QueueStats["pending"]
	failed := status.QueueStats["failed"]
	queueKind := statusOK
	switch {
	case failed > 0:
		queueKind = statusWarn
	case pending > 0:
		queueKind = statusInfo
	}
	fmt.Fprintln(out, renderStatusLine("queue", queueKind,
		fmt.Sprintf("%d pending, %d failed", pending, failed), colorize))

	fmt.Fprintln(out, renderStatusLine("database", statusInfo, status.DatabasePath, colorize))
}

func boolWord(value bool, yes, no string) string {
	if value {
		return yes
	}
	return no
}
