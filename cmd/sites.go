package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/orchestrator"
)

func newSitesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lists the configured sites and their indexes",
		// Listing needs only the configuration, not the store.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		PersistentPostRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			all, err := orchestrator.LoadSites(cfg.Pipeline.SitesFile)
			if err != nil {
				return err
			}
			sites, err := selectSites(cfg.Pipeline.SitesFile, opts)
			if err != nil {
				return err
			}
			index := make(map[string]int, len(all))
			for i, s := range all {
				index[s.Name] = i
			}
			orchestrator.RenderSites(cmd.OutOrStdout(), sites, func(s course.Site) int { return index[s.Name] })
			return nil
		},
	}
}
