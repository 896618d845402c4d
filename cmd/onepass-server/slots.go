package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
)

func newSlotsCmd(configPath *string) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "slots <accreditation-id>",
		Short: "Print the time-slot report of an accreditation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "yaml" && format != "json" {
				return fmt.Errorf("unknown format %q (want yaml or json)", format)
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			graph, err := loadGraph(cfg)
			if err != nil {
				return err
			}

			st, closeStore, err := openStore(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer closeStore()

			svc := service.NewAccreditationService(service.Config{
				Store:    st,
				Graph:    graph,
				Location: loc,
				Logger:   slog.Default(),
			})
			report, err := svc.TimeSlots(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format: yaml or json")
	return cmd
}
