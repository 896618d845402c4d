package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newZonesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "Print the zone graph in effect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			g, err := loadGraph(cfg)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(g.Describe()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
