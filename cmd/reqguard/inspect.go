package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print queue, cache and connectivity state from the durable store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			return a.printJSON(client.Report())
		},
	}
}

func (a *app) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the response cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeStore, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			n := client.Report().CacheEntries
			if err := client.ClearCache(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "removed %d cached responses\n", n)
			return err
		},
	})
	return cmd
}

func (a *app) queueCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or replay the offline queue",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List queued mutations, oldest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, closeStore, err := a.newClient(cmd.Context())
				if err != nil {
					return err
				}
				defer closeStore()
				return a.printJSON(client.QueuedItems())
			},
		},
		&cobra.Command{
			Use:   "replay",
			Short: "Replay queued mutations now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, closeStore, err := a.newClient(cmd.Context())
				if err != nil {
					return err
				}
				defer closeStore()

				replayed, remaining := client.ReplayQueue(cmd.Context())
				_, err = fmt.Fprintf(a.out, "replayed %d, %d remaining\n", replayed, remaining)
				return err
			},
		},
	)
	return cmd
}
