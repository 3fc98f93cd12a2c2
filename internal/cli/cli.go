// Package cli holds the flags and wiring shared by the report commands.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dmriqc/adapters/excel"
	"dmriqc/adapters/html"
	"dmriqc/app"
	"dmriqc/domain/metrics"
	"dmriqc/internal"
	"dmriqc/internal/config"
)

// Common are the flags every report command accepts
type Common struct {
	cfg       *config.Config
	Overwrite bool
}

// LoadConfig reads .env when present, then the environment
func LoadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.Load()
}

// Bind registers the common flags on cmd with defaults taken from cfg
func Bind(cmd *cobra.Command, cfg *config.Config) *Common {
	c := &Common{cfg: cfg}
	f := cmd.Flags()
	f.IntVar(&cfg.Workers, "nb-threads", cfg.Workers, "Number of workers for the screenshot phase")
	f.BoolVarP(&c.Overwrite, "overwrite", "f", false, "Force overwriting of the output files")
	f.Float64Var(&cfg.StdThreshold, "std-threshold", cfg.StdThreshold, "Flag values further than this many standard deviations from the mean")
	f.StringVar(&cfg.OnCollision, "on-collision", cfg.OnCollision, "Policy when two inputs share a subject key (error, last-write-wins)")
	f.BoolVar(&cfg.WriteXLSX, "xlsx", cfg.WriteXLSX, "Also write the tables to an .xlsx workbook next to the report")
	return c
}

// Options validates the merged flags and environment
func (c *Common) Options() (app.Options, error) {
	if err := c.cfg.Validate(); err != nil {
		return app.Options{}, err
	}
	policy, err := metrics.ParseCollisionPolicy(c.cfg.OnCollision)
	if err != nil {
		return app.Options{}, err
	}
	return app.Options{
		Workers:      c.cfg.Workers,
		StdThreshold: c.cfg.StdThreshold,
		OnCollision:  policy,
		Overwrite:    c.Overwrite,
		XLSX:         c.cfg.WriteXLSX,
	}, nil
}

// Logger returns a logger at the configured level
func (c *Common) Logger() *internal.Logger {
	return internal.NewLogger(internal.ParseLogLevel(c.cfg.LogLevel))
}

// Sinks returns the report writers used by every command
func Sinks() (*html.Sink, excel.Exporter) {
	return html.NewSink(), excel.Exporter{}
}

// listAnnotation marks flags that take every following value up to the next flag
const listAnnotation = "dmriqc_list"

// StringList registers a repeatable path-list flag. Values are taken verbatim,
// so paths may contain commas, and may be given space separated after a
// single occurrence of the flag.
func StringList(cmd *cobra.Command, target *[]string, name, usage string) {
	cmd.Flags().StringArrayVar(target, name, nil, usage)
	_ = cmd.Flags().SetAnnotation(name, listAnnotation, []string{"true"})
}

// ExpandLists rewrites "--name a b c" into "--name a --name b --name c" for
// every list flag of cmd. Positional arguments must come before list flags.
func ExpandLists(cmd *cobra.Command, args []string) []string {
	lists := make(map[string]bool)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if _, ok := f.Annotations[listAnnotation]; ok {
			lists[f.Name] = true
		}
	})

	out := make([]string, 0, len(args))
	active, pending := "", false
	for i, a := range args {
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			active, pending = "", false
			name := strings.TrimLeft(a, "-")
			if lists[name] && strings.HasPrefix(a, "--") {
				active, pending = a, true
			}
			out = append(out, a)
			continue
		}
		switch {
		case pending:
			pending = false
		case active != "":
			out = append(out, active)
		}
		out = append(out, a)
	}
	return out
}

// SetArgs hands args to cmd with list flags expanded
func SetArgs(cmd *cobra.Command, args []string) {
	cmd.SetArgs(ExpandLists(cmd, args))
}

// Run executes root on args. Errors are returned, not printed.
func Run(root *cobra.Command, args []string) error {
	root.SilenceUsage = true
	root.SilenceErrors = true
	SetArgs(root, args)
	return root.Execute()
}

// Execute runs root on the process arguments and exits non-zero on any error
func Execute(root *cobra.Command) {
	if err := Run(root, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Fatal prints err and exits; used before the command is built
func Fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
