package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the sync queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Items)
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Table", "Record", "Op", "Status", "Attempts", "Priority", "Created", "Error"},
					buildQueueListRows(resp.Items),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit queue items as JSON")
	return cmd
}

func buildQueueListRows(items []ipc.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		attempts := fmt.Sprintf("%d/%d", item.Attempts, item.MaxAttempts)
		rows = append(rows, []string{
			shortID(item.ID),
			item.TableName,
			item.RecordID,
			item.Operation,
			item.Status,
			attempts,
			strconv.Itoa(item.Priority),
			item.CreatedAt.Local().Format(time.DateTime),
			item.ErrorMessage,
		})
	}
	return rows
}

// shortID truncates a UUID for table display; JSON output keeps the full id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stats, err := client.QueueStats()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := [][]string{
					{"Pending", strconv.Itoa(stats.Pending)},
					{"Syncing", strconv.Itoa(stats.Syncing)},
					{"Failed", strconv.Itoa(stats.Failed)},
					{"Total", strconv.Itoa(stats.Total)},
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit stats as JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed items back to pending",
		Long:  "Reset failed items back to pending so the next sync run picks them up. Without arguments all retryable failed items are reset.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(args)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d item(s) to pending\n", resp.Updated)
				return nil
			})
		},
	}
	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClearFailed()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d failed item(s)\n", resp.Removed)
				return nil
			})
		},
	}
}
