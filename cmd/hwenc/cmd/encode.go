package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/hwenc/internal/config"
	"github.com/jmylchreest/hwenc/internal/device"
	"github.com/jmylchreest/hwenc/internal/device/devicesim"
	"github.com/jmylchreest/hwenc/internal/encoder"
	"github.com/jmylchreest/hwenc/internal/observability"
)

var (
	encodeWidth      int
	encodeHeight     int
	encodeFPS        int
	encodeFrames     int
	encodeFormat     string
	encodeInterlaced bool
	encodeProfiles   []string
	encodeSets       []string
	encodeBitrateAt  string
	encodeInput      string
	encodeOutput     string
)

// encodeCmd represents the encode command.
var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Run an encode session",
	Long: `Run an encode session against the simulated device: probe, negotiate,
configure, feed frames, and write the packaged bitstream.

Frames come from --input (raw planar data, one frame per read) or are
synthesized when no input is given.

Initial properties come from the encoder section of the configuration and
can be overridden with --set. A mid-stream bitrate change can be staged
with --bitrate-at FRAME:KBIT to exercise the live update path.`,
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().IntVar(&encodeWidth, "width", 1280, "frame width")
	encodeCmd.Flags().IntVar(&encodeHeight, "height", 720, "frame height")
	encodeCmd.Flags().IntVar(&encodeFPS, "fps", 30, "frame rate")
	encodeCmd.Flags().IntVar(&encodeFrames, "frames", 300, "number of frames to encode")
	encodeCmd.Flags().StringVar(&encodeFormat, "format", "NV12", "input pixel format (NV12, Y444)")
	encodeCmd.Flags().BoolVar(&encodeInterlaced, "interlaced", false, "encode interlaced content")
	encodeCmd.Flags().StringArrayVar(&encodeProfiles, "profile", nil,
		"downstream profile offer (repeatable; empty accepts anything)")
	encodeCmd.Flags().StringArrayVar(&encodeSets, "set", nil,
		"encoder property override, NAME=VALUE (repeatable)")
	encodeCmd.Flags().StringVar(&encodeBitrateAt, "bitrate-at", "",
		"change bitrate mid-stream, FRAME:KBIT (e.g. 150:4000)")
	encodeCmd.Flags().StringVarP(&encodeInput, "input", "i", "",
		"raw frame input file, '-' for stdin (default: synthetic frames)")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "",
		"output file for the packaged bitstream (default: discard)")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := observability.WithComponent(slog.Default(), "encode")

	switchFrame, switchKbit, err := parseBitrateAt(encodeBitrateAt)
	if err != nil {
		return err
	}

	dev := devicesim.New()
	caps, err := device.Probe(ctx, dev, logger)
	if err != nil {
		return fmt.Errorf("probing device: %w", err)
	}

	params := encoder.NewParameters(caps)
	for _, prop := range cfg.Encoder.Properties() {
		if err := params.Set(prop.Name, prop.Value); err != nil {
			if errors.Is(err, encoder.ErrUnknownProperty) {
				logger.Debug("property unavailable on device", "property", prop.Name)
				continue
			}
			return fmt.Errorf("applying config property: %w", err)
		}
	}
	for _, kv := range encodeSets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, expected NAME=VALUE", kv)
		}
		if err := params.Set(name, value); err != nil {
			return fmt.Errorf("applying --set: %w", err)
		}
	}
	params.SetOverrideNotify(func(name string) {
		logger.Warn("property overridden by profile constraints", "property", name)
	})

	enc := encoder.New(dev, caps, params, logger)
	defer enc.Close(ctx)

	downstream := make(encoder.ProfileSet)
	for _, p := range encodeProfiles {
		downstream.Add(encoder.Profile(p))
	}

	outFmt, err := enc.SetFormat(ctx, downstream, encoder.StreamFormat(cfg.Output.StreamFormat), encoder.FormatRequest{
		Format:     device.PixelFormat(encodeFormat),
		Width:      encodeWidth,
		Height:     encodeHeight,
		FPSNum:     encodeFPS,
		FPSDen:     1,
		PARNum:     1,
		PARDen:     1,
		Interlaced: encodeInterlaced,
	})
	if err != nil {
		return fmt.Errorf("negotiating format: %w", err)
	}
	logger.Info("session configured",
		"profile", outFmt.Profile,
		"stream_format", outFmt.StreamFormat,
		"codec_data_bytes", len(outFmt.CodecData))

	var w io.Writer = io.Discard
	if encodeOutput != "" {
		f, err := os.Create(encodeOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	var r io.Reader
	if encodeInput != "" {
		if encodeInput == "-" {
			r = os.Stdin
		} else {
			f, err := os.Open(encodeInput)
			if err != nil {
				return fmt.Errorf("opening input file: %w", err)
			}
			defer f.Close()
			r = f
		}
	}

	frameDur := time.Second / time.Duration(encodeFPS)
	payload := make([]byte, frameSize(encodeWidth, encodeHeight, device.PixelFormat(encodeFormat)))
	var written, units int

	for i := 0; i < encodeFrames; i++ {
		if r != nil {
			if _, err := io.ReadFull(r, payload); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					logger.Info("input exhausted", "frames_read", i)
					break
				}
				return fmt.Errorf("reading frame %d: %w", i, err)
			}
		}
		if switchFrame > 0 && i == switchFrame {
			if err := params.Set("bitrate", switchKbit); err != nil {
				return fmt.Errorf("staging bitrate change: %w", err)
			}
			logger.Info("bitrate change staged", "frame", i, "bitrate_kbit", switchKbit)
		}
		out, err := enc.EncodeFrame(ctx, &device.Frame{
			Data:   payload,
			Format: device.PixelFormat(encodeFormat),
			Width:  encodeWidth,
			Height: encodeHeight,
			PTS:    time.Duration(i) * frameDur,
		})
		if err != nil {
			return fmt.Errorf("encoding frame %d: %w", i, err)
		}
		for _, u := range out {
			if _, err := w.Write(u.Data); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			written += len(u.Data)
			units++
		}
	}

	final, err := enc.Close(ctx)
	if err != nil {
		return fmt.Errorf("closing encoder: %w", err)
	}
	for _, u := range final {
		if _, err := w.Write(u.Data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		written += len(u.Data)
		units++
	}

	logger.Info("encode finished",
		"frames", encodeFrames,
		"units", units,
		"bytes", written,
		"sessions_opened", dev.OpenCount())
	return nil
}

// frameSize returns the raw frame byte length for one picture.
func frameSize(w, h int, f device.PixelFormat) int {
	if f == device.FormatY444 {
		return w * h * 3
	}
	return w * h * 3 / 2
}

// parseBitrateAt parses a FRAME:KBIT staging directive. An empty directive
// disables the switch.
func parseBitrateAt(s string) (frame, kbit int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	frameStr, kbitStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --bitrate-at %q, expected FRAME:KBIT", s)
	}
	frame, err = strconv.Atoi(frameStr)
	if err != nil || frame <= 0 {
		return 0, 0, fmt.Errorf("invalid --bitrate-at frame %q", frameStr)
	}
	kbit, err = strconv.Atoi(kbitStr)
	if err != nil || kbit <= 0 {
		return 0, 0, fmt.Errorf("invalid --bitrate-at bitrate %q", kbitStr)
	}
	return frame, kbit, nil
}
