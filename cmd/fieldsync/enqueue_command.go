package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var operation string
	var data string
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue <table> <record-id>",
		Short: "Add a mutation to the sync queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := resolveData(data)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Enqueue(ipc.EnqueueRequest{
					TableName: args[0],
					RecordID:  args[1],
					Operation: operation,
					Data:      payload,
					Priority:  priority,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s/%s as %s\n",
					resp.Item.Operation, resp.Item.TableName, resp.Item.RecordID, resp.Item.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&operation, "op", "o", "create", "Mutation operation: create, update, or delete")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Mutation payload as JSON, or @file to read from disk")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Sync priority; higher syncs first")
	return cmd
}

// resolveData accepts inline JSON or an @file reference and validates the
// payload before it goes over the wire.
func resolveData(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "@") {
		content, err := os.ReadFile(strings.TrimPrefix(raw, "@"))
		if err != nil {
			return nil, fmt.Errorf("read data file: %w", err)
		}
		raw = string(content)
	}
	if !json.Valid([]byte(raw)) {
		return nil, errors.New("data must be valid JSON")
	}
	return json.RawMessage(raw), nil
}
