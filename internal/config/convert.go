package config

import (
	"time"

	"github.com/danmuck/guardtone/internal/dsp"
	"github.com/danmuck/guardtone/internal/modem"
	"github.com/danmuck/guardtone/internal/sched"
	"github.com/danmuck/guardtone/internal/wire"
)

// SymbolPeriod is the on-air duration of one symbol.
func (c Config) SymbolPeriod() time.Duration {
	return time.Duration(c.Audio.SymbolMS) * time.Millisecond
}

// WindowSize is the sample count per analysis window, one window per
// symbol period.
func (c Config) WindowSize() int {
	return int(c.Audio.SampleRate * float64(c.Audio.SymbolMS) / 1000)
}

func (c Config) DeciderConfig() dsp.DeciderConfig {
	return dsp.DeciderConfig{
		Gate:          c.Detect.EnergyGate,
		MinConfidence: c.Detect.MinConfidence,
	}
}

func (c Config) MonitorConfig() dsp.MonitorConfig {
	return dsp.MonitorConfig{
		BusyMultiple:    c.Detect.BusyMultiple,
		DebounceWindows: c.Detect.DebounceWindows,
	}
}

func (c Config) ReceiverConfig() modem.ReceiverConfig {
	return modem.ReceiverConfig{
		PreambleMatchMin: c.Receive.PreambleMatchMin,
		CooldownSymbols:  (c.Receive.CooldownMS + c.Audio.SymbolMS - 1) / c.Audio.SymbolMS,
	}
}

func (c Config) SchedulerConfig() sched.Config {
	var backoff [wire.PriorityMax + 1]time.Duration
	for p, ms := range c.Schedule.BackoffMS {
		backoff[p] = time.Duration(ms) * time.Millisecond
	}
	return sched.Config{
		SensePoll:            time.Duration(c.Schedule.SensePollMS) * time.Millisecond,
		CarrierSenseInterval: time.Duration(c.Schedule.CarrierSenseMS) * time.Millisecond,
		BackoffWindows:       backoff,
		RetryDelayMax:        time.Duration(c.Schedule.RetryDelayMaxMS) * time.Millisecond,
	}
}

func (c Config) BeaconConfig() sched.BeaconConfig {
	offsets := make([]time.Duration, len(c.Schedule.FastStartMS))
	for i, ms := range c.Schedule.FastStartMS {
		offsets[i] = time.Duration(ms) * time.Millisecond
	}
	return sched.BeaconConfig{
		RefreshInterval:  time.Duration(c.Schedule.RefreshMS) * time.Millisecond,
		RefreshJitter:    time.Duration(c.Schedule.RefreshJitterMS) * time.Millisecond,
		FastStartOffsets: offsets,
	}
}
