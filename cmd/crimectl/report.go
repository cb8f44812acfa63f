package main

import (
	"fmt"
	"io"
	"os"

	"crimewatch/internal/app"
	"crimewatch/internal/pdf"
	"crimewatch/internal/repository"
	"crimewatch/internal/utils"

	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect submitted reports",
	}
	cmd.AddCommand(reportExportCmd())
	return cmd
}

func reportExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a report as PDF",
		Long:  "Render any report, regardless of owner, in the download layout. Writes to stdout unless --out is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := utils.ParseID(args[0])
			if !ok {
				return fmt.Errorf("invalid report id %q", args[0])
			}
			return withApp(func(a *app.App) error {
				report, err := a.ReportByID(cmd.Context(), id)
				if repository.IsNotFound(err) {
					return fmt.Errorf("report %d not found", id)
				}
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if out != "" {
					f, err := os.Create(out)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				if err := a.Exporter.Render(cmd.Context(), w, report, pdf.DownloadLayout); err != nil {
					return err
				}
				if out != "" {
					cmd.PrintErrf("Wrote report %d to %s\n", id, out)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file")
	return cmd
}
