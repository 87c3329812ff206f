package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/mercaflow/classify"
	"github.com/jonwraymond/mercaflow/server"
)

func (c *CLI) classifier(cmd *cobra.Command) (*classify.Classifier, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	obs, err := c.localObserver(ctx, cmd, cfg)
	if err != nil {
		return nil, err
	}
	return server.NewClassifier(ctx, cfg.Classifier, obs)
}

func (c *CLI) newClassifyCmd() *cobra.Command {
	var section string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <name>...",
		Short: "Print the section for each item name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.classifier(cmd)
			if err != nil {
				return err
			}

			type row struct {
				Name string `json:"name"`
				classify.Result
			}
			rows := make([]row, 0, len(args))
			for _, name := range args {
				rows = append(rows, row{Name: name, Result: cl.ClassifyDetail(name, section)})
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.SectionID, r.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "explicit section id, returned unchanged")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *CLI) newLearnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "learn <name> <section>",
		Short: "Teach the classifier that name belongs to section",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.classifier(cmd)
			if err != nil {
				return err
			}
			accepted, err := cl.Learn(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			key := classify.NormalizeKey(args[0], cl.Limits().MaxKeyLength)
			if !accepted {
				fmt.Fprintf(out, "not learned: table full (%d mappings)\n", cl.Limits().MaxMappings)
				return nil
			}
			fmt.Fprintf(out, "learned %q -> %s\n", key, args[1])
			if c.cfg.Classifier.MappingsFile == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: classifier.mappings_file is not set, mapping kept in memory only")
			} else if cl.Degraded() {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: mappings file quota exceeded, mapping not saved")
			}
			return nil
		},
	}
}

func (c *CLI) newImportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import [file|-]",
		Short: "Classify a pasted list, one item per line",
		Long:  "Classify a list read from file, or from stdin when file is - or omitted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.classifier(cmd)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import: %w", err)
				}
				defer f.Close()
				in = f
			}
			text, err := io.ReadAll(io.LimitReader(in, int64(cl.Limits().MaxImportBytes)))
			if err != nil {
				return fmt.Errorf("read import: %w", err)
			}

			items := cl.Import(cmd.Context(), string(text))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			return printItems(cmd.OutOrStdout(), cl.Catalog(), items)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// printItems groups items by section in catalog order.
func printItems(w io.Writer, catalog *classify.Catalog, items []classify.Item) error {
	bySection := make(map[string][]classify.Item)
	for _, it := range items {
		bySection[it.SectionID] = append(bySection[it.SectionID], it)
	}
	for _, sec := range catalog.Sorted() {
		group := bySection[sec.ID]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", sec.Icon, sec.Name)
		for _, it := range group {
			fmt.Fprintf(w, "  %s\n", it.Name)
		}
	}
	return nil
}

func (c *CLI) newSectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sections",
		Short: "List the section catalog in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.classifier(cmd)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range cl.Catalog().Sorted() {
				fmt.Fprintf(tw, "%d\t%s\t%s %s\n", s.DefaultOrder, s.ID, s.Icon, s.Name)
			}
			return tw.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
