package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dmriqc/adapters/screenshot"
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
	var req app.TractogramRequest
	tracking := screenshot.DefaultTrackingOptions()

	cmd := &cobra.Command{
		Use:   "dmriqc_tractogram output_report",
		Short: "Compute the tractogram QC report in HTML format",
		Long: `Compute the tractogram QC report in HTML format.

Tractograms (.trk or .tck) and T1 images are paired by position. A list flag
takes every value up to the next flag, so give output_report first.

Subjects are named after the first directory below the common parent of the
tractograms. Two sessions of one subject stored as sub-01/ses-1/... and
sub-01/ses-2/... resolve to the same name; use --on-collision
last-write-wins or one directory per session in that layout.

Example: dmriqc_tractogram report.html --tractograms */tracking.trk --t1s */t1.nii.gz --bundle`,
		Args: cobra.ExactArgs(1),
	}
	common := cli.Bind(cmd, cfg)

	cli.StringList(cmd, &req.Tractograms, "tractograms", "Tractogram files")
	cli.StringList(cmd, &req.T1s, "t1s", "T1 images the tractograms were traced on")
	f := cmd.Flags()
	f.BoolVar(&tracking.Bundle, "bundle", false, "Centre the screenshot slice on the bundle instead of the volume")
	f.BoolVar(&req.Online, "online", false, "Link the stylesheet online instead of writing it to libs/")
	_ = cmd.MarkFlagRequired("tractograms")
	_ = cmd.MarkFlagRequired("t1s")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := common.Options()
		if err != nil {
			return err
		}
		req.OutputReport = args[0]
		req.Tracking = tracking
		req.Options = opts

		sink, exporter := cli.Sinks()
		svc := app.NewTractogramService(sink, exporter, common.Logger())
		res, err := svc.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d subjects (%d empty), %d warnings\n",
			res.ReportPath, res.Subjects, res.Empty, res.NbWarnings)
		return nil
	}
	return cmd
}
