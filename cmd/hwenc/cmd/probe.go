package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hwenc/internal/device"
	"github.com/jmylchreest/hwenc/internal/device/devicesim"
	"github.com/jmylchreest/hwenc/internal/encoder"
)

var probeProfiles []string

// probeCmd represents the probe command.
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe device capabilities",
	Long: `Probe the encoding device and print its capability snapshot together
with the negotiable input space derived from it.

With --profile the input space is additionally restricted to the given
downstream profile offer, mirroring what a consumer would negotiate.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringArrayVar(&probeProfiles, "profile", nil,
		"downstream profile offer (repeatable, e.g. --profile main --profile high)")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default()

	dev := devicesim.New()
	caps, err := device.Probe(ctx, dev, logger)
	if err != nil {
		return fmt.Errorf("probing device: %w", err)
	}

	downstream := make(encoder.ProfileSet)
	for _, p := range probeProfiles {
		downstream.Add(encoder.Profile(p))
	}
	space := encoder.ProposeFormats(caps, downstream)

	out := struct {
		Capabilities device.Capabilities `yaml:"capabilities"`
		FormatSpace  encoder.FormatSpace `yaml:"format_space"`
	}{caps, space}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling probe result: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
