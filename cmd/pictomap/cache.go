package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand() *cobra.Command {
	rootCommand := cobra.Command{
		Use:   "cache",
		Short: "Pictogram cache maintenance",
	}

	var all bool
	purgeCommand := &cobra.Command{
		Use:   "purge",
		Short: "Remove expired pictogram responses, or every response with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = p.Close()
			}()

			if !all {
				if err := p.Cache.PurgeExpired(ctx); err != nil {
					return fmt.Errorf("cache.PurgeExpired > %w", err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Purged expired entries")
				return err
			}

			removed, err := p.Cache.Clear(ctx)
			if err != nil {
				return fmt.Errorf("cache.Clear > %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
			return err
		},
	}
	purgeCommand.Flags().BoolVar(&all, "all", false, "remove every entry, not only the expired ones")

	rootCommand.AddCommand(purgeCommand)
	return &rootCommand
}
