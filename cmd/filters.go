package cmd

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/course-ingest/internal/filters"
)

func newFiltersCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Prints the region and institution filter values from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if opts.dryRun || a.Store() == nil {
				return errors.New("filters need a course store; drop --dry-run")
			}
			locs, err := a.Store().DistinctLocations(cmd.Context())
			if err != nil {
				return err
			}
			entries := filters.Build(locs)
			groups := filters.Group(entries)
			regions := filters.Regions(entries)

			if asJSON {
				type region struct {
					Region       string   `json:"region"`
					Institutions []string `json:"institutions"`
				}
				out := make([]region, 0, len(regions))
				for _, r := range regions {
					out = append(out, region{Region: r, Institutions: groups[r]})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Region", "Institutions"})
			for _, r := range regions {
				t.AppendRow(table.Row{r, strings.Join(groups[r], ", ")})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
