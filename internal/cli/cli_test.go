package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/domain/metrics"
	"dmriqc/internal/config"
	"dmriqc/internal/errors"
)

func defaults() *config.Config {
	return &config.Config{
		Workers:      config.DefaultWorkers,
		StdThreshold: config.DefaultStdThreshold,
		OnCollision:  config.DefaultCollision,
		LogLevel:     "ERROR",
	}
}

func TestBind_FlagsOverrideConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	common := Bind(cmd, defaults())
	require.NoError(t, cmd.ParseFlags([]string{
		"--nb-threads", "4", "-f", "--std-threshold", "3", "--on-collision", "last-write-wins", "--xlsx",
	}))

	opts, err := common.Options()
	require.NoError(t, err)
	assert.Equal(t, 4, opts.Workers)
	assert.Equal(t, 3.0, opts.StdThreshold)
	assert.Equal(t, metrics.CollisionLastWriteWins, opts.OnCollision)
	assert.True(t, opts.Overwrite)
	assert.True(t, opts.XLSX)
}

func TestBind_Defaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	common := Bind(cmd, defaults())
	require.NoError(t, cmd.ParseFlags(nil))

	opts, err := common.Options()
	require.NoError(t, err)
	assert.Equal(t, 1, opts.Workers)
	assert.Equal(t, 2.0, opts.StdThreshold)
	assert.Equal(t, metrics.CollisionError, opts.OnCollision)
	assert.False(t, opts.Overwrite)
}

func TestBind_InvalidFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	common := Bind(cmd, defaults())
	require.NoError(t, cmd.ParseFlags([]string{"--nb-threads", "0"}))

	_, err := common.Options()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeConfigInvalid))
}

func listCommand(targets ...*[]string) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	StringList(cmd, targets[0], "t1s", "T1 images")
	StringList(cmd, targets[1], "wm", "WM masks")
	cmd.Flags().Int("nb-threads", 1, "workers")
	return cmd
}

func TestExpandLists(t *testing.T) {
	var t1s, wm []string
	cmd := listCommand(&t1s, &wm)

	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"space separated",
			[]string{"out.html", "--t1s", "a", "b", "--nb-threads", "4", "--wm", "c", "d"},
			[]string{"out.html", "--t1s", "a", "--t1s", "b", "--nb-threads", "4", "--wm", "c", "--wm", "d"}},
		{"equals form takes one value",
			[]string{"--t1s=a", "out.html"},
			[]string{"--t1s=a", "out.html"}},
		{"terminator stops expansion",
			[]string{"--t1s", "a", "--", "b"},
			[]string{"--t1s", "a", "--", "b"}},
		{"non-list flags untouched",
			[]string{"out.html", "--nb-threads", "2"},
			[]string{"out.html", "--nb-threads", "2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExpandLists(cmd, tc.in))
		})
	}
}

func TestStringList_KeepsCommasAndCollectsValues(t *testing.T) {
	var t1s, wm []string
	cmd := listCommand(&t1s, &wm)
	var positional []string
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		positional = args
		return nil
	}

	SetArgs(cmd, []string{"out.html", "--t1s", "a,1.nii", "b.nii", "c.nii", "--wm", "d.nii", "e.nii"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, []string{"out.html"}, positional)
	assert.Equal(t, []string{"a,1.nii", "b.nii", "c.nii"}, t1s)
	assert.Equal(t, []string{"d.nii", "e.nii"}, wm)
}

func TestRun_ReturnsErrorWithoutPrinting(t *testing.T) {
	cmd := &cobra.Command{
		Use:  "test",
		Args: cobra.ExactArgs(1),
		RunE: func(*cobra.Command, []string) error {
			return errors.InvalidInput("not the same number of images in input")
		},
	}
	var stderr, stdout bytes.Buffer
	cmd.SetErr(&stderr)
	cmd.SetOut(&stdout)

	err := Run(cmd, []string{"out.html"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	assert.Empty(t, stderr.String())
	assert.Empty(t, stdout.String())
}
