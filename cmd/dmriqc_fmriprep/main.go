package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dmriqc/app"
	"dmriqc/internal/cli"
	"dmriqc/internal/config"
)

func main() {
	cfg, err := cli.LoadConfig()
	if err != nil {
		cli.Fatal(err)
	}
	cli.Execute(newCommand(cfg))
}

func newCommand(cfg *config.Config) *cobra.Command {
	var req app.FmriprepRequest

	cmd := &cobra.Command{
		Use:   "dmriqc_fmriprep output_report in_fmriprep",
		Short: "Compute the fMRIPrep QC report in HTML format",
		Long: `Compute the fMRIPrep QC report in HTML format.

Figures are matched as sub-*/figures/*<name>*.svg and confounds as
sub-*/ses*/func/*desc-confounds_timeseries.tsv under in_fmriprep. A list flag
takes every value up to the next flag, so give the positional arguments first.

Example: dmriqc_fmriprep report.html derivatives/fmriprep --in-figures carpetplot bbregister \
  --in-metrics framewise_displacement global_signal`,
		Args: cobra.ExactArgs(2),
	}
	common := cli.Bind(cmd, cfg)

	cli.StringList(cmd, &req.Figures, "in-figures", "Figure names to collect")
	cli.StringList(cmd, &req.Metrics, "in-metrics", "Confound columns to summarize")
	cmd.Flags().BoolVar(&req.SymLink, "sym-link", false, "Link figures instead of copying them")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := common.Options()
		if err != nil {
			return err
		}
		req.OutputReport = args[0]
		req.Root = args[1]
		req.Options = opts

		sink, exporter := cli.Sinks()
		svc := app.NewFmriprepService(sink, exporter, common.Logger())
		res, err := svc.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d subjects, %d figures, %d warnings\n",
			res.ReportPath, res.Subjects, res.Figures, res.NbWarnings)
		return nil
	}
	return cmd
}
