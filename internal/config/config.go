// Package config owns the deployment tuning file. Tone frequencies,
// timing, and thresholds are environment calibration, not protocol
// constants; everything interop-critical lives in internal/wire.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/guardtone/internal/wire"
)

type Config struct {
	DeviceID uint32 `toml:"device_id"`

	Log      LogConfig      `toml:"log"`
	Audio    AudioConfig    `toml:"audio"`
	Detect   DetectConfig   `toml:"detect"`
	Receive  ReceiveConfig  `toml:"receive"`
	Schedule ScheduleConfig `toml:"schedule"`
	Assert   AssertConfig   `toml:"assert"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type AudioConfig struct {
	SampleRate  float64   `toml:"sample_rate"`
	SymbolMS    int       `toml:"symbol_ms"`
	Tones       []float64 `toml:"tones"`
	TxAmplitude float64   `toml:"tx_amplitude"`
}

type DetectConfig struct {
	EnergyGate      float64 `toml:"energy_gate"`
	MinConfidence   float64 `toml:"min_confidence"`
	NoiseFloorAlpha float64 `toml:"noise_floor_alpha"`
	BusyMultiple    float64 `toml:"busy_multiple"`
	DebounceWindows int     `toml:"debounce_windows"`
}

type ReceiveConfig struct {
	PreambleMatchMin int `toml:"preamble_match_min"`
	CooldownMS       int `toml:"cooldown_ms"`
}

type ScheduleConfig struct {
	SensePollMS     int   `toml:"sense_poll_ms"`
	CarrierSenseMS  int   `toml:"carrier_sense_ms"`
	BackoffMS       []int `toml:"backoff_ms"` // indexed by priority, 0 first
	RetryDelayMaxMS int   `toml:"retry_delay_max_ms"`
	RefreshMS       int   `toml:"refresh_ms"`
	RefreshJitterMS int   `toml:"refresh_jitter_ms"`
	FastStartMS     []int `toml:"fast_start_ms"`
}

type AssertConfig struct {
	Priority uint8 `toml:"priority"`
	Reason   uint8 `toml:"reason"`
	TTL      uint8 `toml:"ttl_s"`
}

type MetricsConfig struct {
	Addr string `toml:"addr"`
}

func Load(path string) (Config, error) {
	var cfg Config
	md, err := loadToml(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg, md)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) (toml.MetaData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return toml.MetaData{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	md, err := toml.Decode(string(data), out)
	if err != nil {
		return toml.MetaData{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return md, nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.SymbolMS == 0 {
		cfg.Audio.SymbolMS = 20
	}
	if len(cfg.Audio.Tones) == 0 {
		cfg.Audio.Tones = []float64{3000, 4000, 5000, 6000}
	}
	if cfg.Audio.TxAmplitude == 0 {
		cfg.Audio.TxAmplitude = 0.6
	}
	if cfg.Detect.EnergyGate == 0 {
		cfg.Detect.EnergyGate = 2.5
	}
	if cfg.Detect.MinConfidence == 0 {
		cfg.Detect.MinConfidence = 2.0
	}
	if cfg.Detect.NoiseFloorAlpha == 0 {
		cfg.Detect.NoiseFloorAlpha = 0.05
	}
	if cfg.Detect.BusyMultiple == 0 {
		cfg.Detect.BusyMultiple = 3.0
	}
	if cfg.Detect.DebounceWindows == 0 {
		cfg.Detect.DebounceWindows = 3
	}
	if cfg.Receive.PreambleMatchMin == 0 {
		cfg.Receive.PreambleMatchMin = 16
	}
	if cfg.Receive.CooldownMS == 0 {
		cfg.Receive.CooldownMS = 400
	}
	if cfg.Schedule.SensePollMS == 0 {
		cfg.Schedule.SensePollMS = 20
	}
	if cfg.Schedule.CarrierSenseMS == 0 {
		cfg.Schedule.CarrierSenseMS = 100
	}
	if len(cfg.Schedule.BackoffMS) == 0 {
		cfg.Schedule.BackoffMS = []int{2000, 1200, 600, 200}
	}
	if cfg.Schedule.RetryDelayMaxMS == 0 {
		cfg.Schedule.RetryDelayMaxMS = 300
	}
	if cfg.Schedule.RefreshMS == 0 {
		cfg.Schedule.RefreshMS = 5000
	}
	if cfg.Schedule.RefreshJitterMS == 0 {
		cfg.Schedule.RefreshJitterMS = 500
	}
	if len(cfg.Schedule.FastStartMS) == 0 {
		cfg.Schedule.FastStartMS = []int{0, 250, 700}
	}
	// Priority 0 and reason 0 are legitimate settings, so these two
	// default on absence from the file rather than on the zero value.
	if !md.IsDefined("assert", "priority") {
		cfg.Assert.Priority = 2
	}
	if !md.IsDefined("assert", "reason") {
		cfg.Assert.Reason = wire.ReasonUserButton
	}
	if cfg.Assert.TTL == 0 {
		cfg.Assert.TTL = 12
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}
}

func Validate(cfg Config) error {
	if cfg.DeviceID == 0 || cfg.DeviceID > 0xFFFFFF {
		return fmt.Errorf("device_id must be a non-zero 24-bit value")
	}
	if cfg.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample_rate must be positive")
	}
	if cfg.Audio.SymbolMS <= 0 {
		return fmt.Errorf("audio symbol_ms must be positive")
	}
	if len(cfg.Audio.Tones) != wire.ToneCount {
		return fmt.Errorf("audio tones must list exactly %d frequencies", wire.ToneCount)
	}
	if cfg.Audio.TxAmplitude <= 0 || cfg.Audio.TxAmplitude > 1 {
		return fmt.Errorf("audio tx_amplitude must be in (0, 1]")
	}
	if cfg.Detect.EnergyGate < 1 {
		return fmt.Errorf("detect energy_gate must be >= 1")
	}
	if cfg.Detect.MinConfidence < 1 {
		return fmt.Errorf("detect min_confidence must be >= 1")
	}
	if cfg.Detect.NoiseFloorAlpha <= 0 || cfg.Detect.NoiseFloorAlpha >= 1 {
		return fmt.Errorf("detect noise_floor_alpha must be in (0, 1)")
	}
	if cfg.Detect.BusyMultiple <= 1 {
		return fmt.Errorf("detect busy_multiple must exceed 1")
	}
	if cfg.Detect.DebounceWindows < 1 {
		return fmt.Errorf("detect debounce_windows must be >= 1")
	}
	if cfg.Receive.PreambleMatchMin < 1 || cfg.Receive.PreambleMatchMin > wire.PreambleSymbols {
		return fmt.Errorf("receive preamble_match_min must be in [1, %d]", wire.PreambleSymbols)
	}
	if cfg.Receive.CooldownMS < 0 {
		return fmt.Errorf("receive cooldown_ms must be non-negative")
	}
	if len(cfg.Schedule.BackoffMS) != int(wire.PriorityMax)+1 {
		return fmt.Errorf("schedule backoff_ms must list %d windows, priority 0 first", wire.PriorityMax+1)
	}
	for p, ms := range cfg.Schedule.BackoffMS {
		if ms <= 0 {
			return fmt.Errorf("schedule backoff_ms[%d] must be positive", p)
		}
	}
	if cfg.Schedule.RefreshMS <= cfg.Schedule.RefreshJitterMS {
		return fmt.Errorf("schedule refresh_ms must exceed refresh_jitter_ms")
	}
	if cfg.Assert.Priority > wire.PriorityMax {
		return fmt.Errorf("assert priority must be in [0, %d]", wire.PriorityMax)
	}
	return nil
}
