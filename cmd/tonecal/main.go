package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/danmuck/guardtone/internal/config"
)

// tonecal is the calibration check for a deployment's tone set. Each
// tone must complete an integer number of cycles inside one analysis
// window, or energy leaks across bins and symbol decisions degrade.
// Run it against a config before putting the config on a device.
func main() {
	configPath := flag.String("config", "guardtone.toml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tonecal: %v\n", err)
		os.Exit(1)
	}

	n := cfg.WindowSize()
	rate := cfg.Audio.SampleRate
	fmt.Printf("sample rate     %.0f Hz\n", rate)
	fmt.Printf("symbol duration %d ms\n", cfg.Audio.SymbolMS)
	fmt.Printf("window size     %d samples\n\n", n)
	fmt.Printf("%-6s %-12s %-10s %-8s %s\n", "tone", "freq (Hz)", "cycles", "aligned", "nearest aligned (Hz)")

	ok := true
	for i, f := range cfg.Audio.Tones {
		cycles := f * float64(n) / rate
		k := math.Round(cycles)
		aligned := math.Abs(cycles-k) < 1e-9
		nearest := k * rate / float64(n)

		status := "yes"
		if !aligned {
			status = "NO"
			ok = false
		}
		if k < 1 || k >= float64(n)/2 {
			status = "OUT OF BAND"
			ok = false
		}
		fmt.Printf("%-6d %-12.1f %-10.3f %-8s %.1f\n", i, f, cycles, status, nearest)
	}

	if !ok {
		fmt.Fprintln(os.Stderr, "\ntonecal: tone set is not bin aligned for this window; use the suggested frequencies or change symbol_ms")
		os.Exit(1)
	}
	fmt.Println("\ntone set is bin aligned")
}
