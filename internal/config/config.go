// Package config provides configuration management for hwenc using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/hwenc/pkg/duration"
)

// Default configuration values.
const (
	defaultGOPSize      = 75
	defaultProbeTimeout = 5 * time.Second
	qpUnset             = -1
)

// Config holds all configuration for the application.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Device  DeviceConfig  `mapstructure:"device"`
	Encoder EncoderConfig `mapstructure:"encoder"`
	Output  OutputConfig  `mapstructure:"output"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DeviceConfig holds device selection and probing configuration.
type DeviceConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// EncoderConfig holds the initial encoder property values. Every field
// maps to a runtime-settable property; unset quantizer fields stay at -1
// (disabled). Bit rate fields support human-readable values like "6mbps"
// or "800k".
type EncoderConfig struct {
	Preset       string `mapstructure:"preset"`
	WeightedPred bool   `mapstructure:"weighted_pred"`

	GOPSize int `mapstructure:"gop_size"`
	BFrames int `mapstructure:"bframes"`

	RCMode        string  `mapstructure:"rc_mode"`
	Bitrate       BitRate `mapstructure:"bitrate"`
	MaxBitrate    BitRate `mapstructure:"max_bitrate"`
	VBVBufferSize BitRate `mapstructure:"vbv_buffer_size"`
	ConstQuality  float64 `mapstructure:"const_quality"`

	QPConstI int `mapstructure:"qp_const_i"`
	QPConstP int `mapstructure:"qp_const_p"`
	QPConstB int `mapstructure:"qp_const_b"`
	QPMinI   int `mapstructure:"qp_min_i"`
	QPMinP   int `mapstructure:"qp_min_p"`
	QPMinB   int `mapstructure:"qp_min_b"`
	QPMaxI   int `mapstructure:"qp_max_i"`
	QPMaxP   int `mapstructure:"qp_max_p"`
	QPMaxB   int `mapstructure:"qp_max_b"`

	RCLookahead int  `mapstructure:"rc_lookahead"`
	IAdapt      bool `mapstructure:"i_adapt"`
	BAdapt      bool `mapstructure:"b_adapt"`
	SpatialAQ   bool `mapstructure:"spatial_aq"`
	TemporalAQ  bool `mapstructure:"temporal_aq"`
	AQStrength  int  `mapstructure:"aq_strength"`
	ZeroLatency bool `mapstructure:"zerolatency"`
	NonRefP     bool `mapstructure:"nonref_p"`
	StrictGOP   bool `mapstructure:"strict_gop"`

	AUD                  bool `mapstructure:"aud"`
	CABAC                bool `mapstructure:"cabac"`
	RepeatSequenceHeader bool `mapstructure:"repeat_sequence_header"`
}

// OutputConfig holds output framing configuration.
type OutputConfig struct {
	StreamFormat string `mapstructure:"stream_format"` // byte-stream, packetized
	Path         string `mapstructure:"path"`
}

// Load reads configuration from a file (optional), environment variables,
// and defaults, in increasing order of precedence for env over file.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hwenc")
		v.AddConfigPath("$HOME/.hwenc")
	}

	v.SetEnvPrefix("HWENC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// decodeHooks builds the unmarshal hook chain: human-readable durations
// ("30 seconds") for time.Duration fields, TextUnmarshaler support for
// the BitRate fields, and the standard string-to-slice handling.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		stringToDurationHook(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func stringToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return duration.Parse(data.(string))
	}
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Device defaults
	v.SetDefault("device.probe_timeout", defaultProbeTimeout)

	// Encoder defaults
	v.SetDefault("encoder.preset", "default")
	v.SetDefault("encoder.weighted_pred", false)
	v.SetDefault("encoder.gop_size", defaultGOPSize)
	v.SetDefault("encoder.bframes", 0)
	v.SetDefault("encoder.rc_mode", "vbr")
	v.SetDefault("encoder.bitrate", 0)
	v.SetDefault("encoder.max_bitrate", 0)
	v.SetDefault("encoder.vbv_buffer_size", 0)
	v.SetDefault("encoder.const_quality", 0.0)
	v.SetDefault("encoder.qp_const_i", qpUnset)
	v.SetDefault("encoder.qp_const_p", qpUnset)
	v.SetDefault("encoder.qp_const_b", qpUnset)
	v.SetDefault("encoder.qp_min_i", qpUnset)
	v.SetDefault("encoder.qp_min_p", qpUnset)
	v.SetDefault("encoder.qp_min_b", qpUnset)
	v.SetDefault("encoder.qp_max_i", qpUnset)
	v.SetDefault("encoder.qp_max_p", qpUnset)
	v.SetDefault("encoder.qp_max_b", qpUnset)
	v.SetDefault("encoder.rc_lookahead", 0)
	v.SetDefault("encoder.i_adapt", false)
	v.SetDefault("encoder.b_adapt", false)
	v.SetDefault("encoder.spatial_aq", false)
	v.SetDefault("encoder.temporal_aq", false)
	v.SetDefault("encoder.aq_strength", 0)
	v.SetDefault("encoder.zerolatency", false)
	v.SetDefault("encoder.nonref_p", false)
	v.SetDefault("encoder.strict_gop", false)
	v.SetDefault("encoder.aud", true)
	v.SetDefault("encoder.cabac", true)
	v.SetDefault("encoder.repeat_sequence_header", false)

	// Output defaults
	v.SetDefault("output.stream_format", "byte-stream")
	v.SetDefault("output.path", "")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Device.ProbeTimeout <= 0 {
		return fmt.Errorf("device.probe_timeout must be positive")
	}

	if c.Encoder.BFrames < 0 {
		return fmt.Errorf("encoder.bframes must not be negative")
	}
	if c.Encoder.ConstQuality < 0 || c.Encoder.ConstQuality > 51 {
		return fmt.Errorf("encoder.const_quality must be in [0, 51]")
	}
	for name, qp := range map[string]int{
		"encoder.qp_const_i": c.Encoder.QPConstI,
		"encoder.qp_const_p": c.Encoder.QPConstP,
		"encoder.qp_const_b": c.Encoder.QPConstB,
		"encoder.qp_min_i":   c.Encoder.QPMinI,
		"encoder.qp_min_p":   c.Encoder.QPMinP,
		"encoder.qp_min_b":   c.Encoder.QPMinB,
		"encoder.qp_max_i":   c.Encoder.QPMaxI,
		"encoder.qp_max_p":   c.Encoder.QPMaxP,
		"encoder.qp_max_b":   c.Encoder.QPMaxB,
	} {
		if qp < qpUnset || qp > 51 {
			return fmt.Errorf("%s must be in [-1, 51]", name)
		}
	}

	validStreamFormats := map[string]bool{"byte-stream": true, "packetized": true}
	if !validStreamFormats[c.Output.StreamFormat] {
		return fmt.Errorf("output.stream_format must be one of: byte-stream, packetized")
	}

	return nil
}

// Properties flattens the encoder section into property name/value pairs
// in a stable order, ready to feed into the encoder's property interface.
// Bit rates convert to the kilobit units the properties use.
func (c *EncoderConfig) Properties() []Property {
	return []Property{
		{"preset", c.Preset},
		{"weighted-pred", c.WeightedPred},
		{"gop-size", c.GOPSize},
		{"bframes", c.BFrames},
		{"rc-mode", c.RCMode},
		{"bitrate", c.Bitrate.Kilobits()},
		{"max-bitrate", c.MaxBitrate.Kilobits()},
		{"vbv-buffer-size", c.VBVBufferSize.Kilobits()},
		{"const-quality", c.ConstQuality},
		{"qp-const-i", c.QPConstI},
		{"qp-const-p", c.QPConstP},
		{"qp-const-b", c.QPConstB},
		{"qp-min-i", c.QPMinI},
		{"qp-min-p", c.QPMinP},
		{"qp-min-b", c.QPMinB},
		{"qp-max-i", c.QPMaxI},
		{"qp-max-p", c.QPMaxP},
		{"qp-max-b", c.QPMaxB},
		{"rc-lookahead", c.RCLookahead},
		{"i-adapt", c.IAdapt},
		{"b-adapt", c.BAdapt},
		{"spatial-aq", c.SpatialAQ},
		{"temporal-aq", c.TemporalAQ},
		{"aq-strength", c.AQStrength},
		{"zerolatency", c.ZeroLatency},
		{"nonref-p", c.NonRefP},
		{"strict-gop", c.StrictGOP},
		{"aud", c.AUD},
		{"cabac", c.CABAC},
		{"repeat-sequence-header", c.RepeatSequenceHeader},
	}
}

// Property is one named encoder property value.
type Property struct {
	Name  string
	Value any
}
