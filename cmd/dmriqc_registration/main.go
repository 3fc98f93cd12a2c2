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
	var req app.RegistrationRequest
	mosaic := screenshot.DefaultMosaicOptions()

	cmd := &cobra.Command{
		Use:   "dmriqc_registration output_report",
		Short: "Compute the registration QC report in HTML format",
		Long: `Compute the registration QC report in HTML format.

Every list gives one image per subject, in the same subject order. A list
flag takes every value up to the next flag, so give output_report first.

Subjects are named after the first directory below the common parent of the
T1 images. Two sessions of one subject stored as sub-01/ses-1/... and
sub-01/ses-2/... resolve to the same name; use --on-collision
last-write-wins or one directory per session in that layout.

Example: dmriqc_registration report.html --t1-warped */t1_warped.nii.gz --rgb */rgb.nii.gz \
  --wm */wm.nii.gz --gm */gm.nii.gz --csf */csf.nii.gz --nb-threads 4`,
		Args: cobra.ExactArgs(1),
	}
	common := cli.Bind(cmd, cfg)

	cli.StringList(cmd, &req.T1Warped, "t1-warped", "T1 images registered to diffusion space")
	cli.StringList(cmd, &req.RGB, "rgb", "RGB maps")
	cli.StringList(cmd, &req.WM, "wm", "White matter masks")
	cli.StringList(cmd, &req.GM, "gm", "Gray matter masks")
	cli.StringList(cmd, &req.CSF, "csf", "CSF masks")
	f := cmd.Flags()
	f.IntVar(&mosaic.Skip, "skip", mosaic.Skip, "Number of slices skipped between mosaic tiles")
	f.IntVar(&mosaic.Columns, "nb-columns", mosaic.Columns, "Number of mosaic tiles per row")
	for _, name := range []string{"t1-warped", "rgb", "wm", "gm", "csf"} {
		_ = cmd.MarkFlagRequired(name)
	}

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		opts, err := common.Options()
		if err != nil {
			return err
		}
		req.OutputReport = args[0]
		req.Mosaic = mosaic
		req.Options = opts

		sink, exporter := cli.Sinks()
		svc := app.NewRegistrationService(sink, exporter, common.Logger())
		res, err := svc.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d subjects, %d warnings\n", res.ReportPath, res.Subjects, res.NbWarnings)
		return nil
	}
	return cmd
}
