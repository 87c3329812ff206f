// Package commands implements the mercaflow CLI.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/mercaflow/config"
	"github.com/jonwraymond/mercaflow/observe"
	"github.com/jonwraymond/mercaflow/server"
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// CLI is the mercaflow command tree.
type CLI struct {
	root       *cobra.Command
	configFile string
	cfg        *config.Config
}

// New builds the command tree.
func New() *CLI {
	c := &CLI{}
	c.root = &cobra.Command{
		Use:           "mercaflow",
		Short:         "Offline shell cache and shopping-list classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	c.root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default ./config.yaml or $HOME/.config/mercaflow/config.yaml)")

	c.root.AddCommand(
		c.newServeCmd(),
		c.newClassifyCmd(),
		c.newLearnCmd(),
		c.newImportCmd(),
		c.newSectionsCmd(),
		c.newCacheCmd(),
		c.newVersionCmd(),
	)
	return c
}

// Execute runs the command selected by the arguments.
func (c *CLI) Execute(ctx context.Context) error {
	return c.root.ExecuteContext(ctx)
}

// SetArgs overrides os.Args. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.root.SetArgs(args)
}

// SetOutput redirects stdout and stderr. Used for testing.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.root.SetOut(out)
	c.root.SetErr(errOut)
}

// SetInput redirects stdin. Used for testing.
func (c *CLI) SetInput(in io.Reader) {
	c.root.SetIn(in)
}

func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// localObserver logs to stderr without exporting telemetry, for one-shot
// commands.
func (c *CLI) localObserver(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (observe.Observer, error) {
	oc := server.ObserveConfig(cfg.Observe, Version)
	oc.Tracing.Enabled = false
	oc.Metrics.Enabled = false
	oc.Logging.Writer = cmd.ErrOrStderr()
	return observe.NewObserver(ctx, oc)
}
