package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/mercaflow/observe"
	"github.com/jonwraymond/mercaflow/server"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var addr, upstream string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the offline front in front of the app origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if upstream != "" {
				cfg.Server.Upstream = upstream
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			oc := server.ObserveConfig(cfg.Observe, Version)
			oc.Logging.Writer = cmd.ErrOrStderr()
			obs, err := observe.NewObserver(ctx, oc)
			if err != nil {
				return fmt.Errorf("observer: %w", err)
			}
			defer func() {
				err = errors.Join(err, obs.Shutdown(context.WithoutCancel(ctx)))
			}()

			srv, err := server.New(ctx, cfg, obs)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, srv.Close())
			}()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	cmd.Flags().StringVar(&upstream, "upstream", "", "origin URL, overrides server.upstream")
	return cmd
}
