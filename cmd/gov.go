package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/course-ingest/internal/app"
)

func newGovCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gov",
		Short: "Ingests only the government open-data source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return execute(cmd, a, nil, app.PipelineOptions{SkipSites: true, SkipAlert: opts.skipAlert})
		},
	}
}
