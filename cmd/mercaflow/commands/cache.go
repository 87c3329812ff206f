package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/mercaflow/offline"
	"github.com/jonwraymond/mercaflow/server"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear stored generations",
	}
	cmd.AddCommand(c.newCacheListCmd(), c.newCachePurgeCmd())
	return cmd
}

func (c *CLI) newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generations and their entry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			storage, closeStorage, err := server.OpenStorage(cfg.Offline)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, closeStorage()) }()

			ctx := cmd.Context()
			names, err := storage.Names(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range names {
				gen, err := storage.Open(ctx, name)
				if err != nil {
					return err
				}
				keys, err := gen.Keys(ctx)
				if err != nil {
					return err
				}
				marker := ""
				if name == cfg.Offline.Version {
					marker = "current"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(keys), marker)
			}
			return tw.Flush()
		},
	}
}

func (c *CLI) newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			storage, closeStorage, err := server.OpenStorage(cfg.Offline)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, closeStorage()) }()

			n, err := offline.Purge(cmd.Context(), storage)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d generations\n", n)
			return nil
		},
	}
}
