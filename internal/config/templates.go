package config

import (
	"fmt"
	"os"
)

// WriteTemplate drops a starter config at path for a new deployment.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(guardTemplate), 0o600)
}

const guardTemplate = `# 24-bit device identity, unique per guard on the channel.
device_id = 0x000001

[log]
level = "info"
# file = "/var/log/guardtone/guardctl.log"

[audio]
sample_rate = 16000.0
symbol_ms = 20
# Must land on integer cycles per window; check with tonecal.
tones = [3000.0, 4000.0, 5000.0, 6000.0]
tx_amplitude = 0.6

[detect]
energy_gate = 2.5
min_confidence = 2.0
noise_floor_alpha = 0.05
busy_multiple = 3.0
debounce_windows = 3

[receive]
preamble_match_min = 16
cooldown_ms = 400

[schedule]
sense_poll_ms = 20
carrier_sense_ms = 100
# Indexed by priority, lowest first.
backoff_ms = [2000, 1200, 600, 200]
retry_delay_max_ms = 300
refresh_ms = 5000
refresh_jitter_ms = 500
fast_start_ms = [0, 250, 700]

[assert]
priority = 2
reason = 1
ttl_s = 12

[metrics]
addr = ":9091"
`
