package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	windowsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "dsp",
			Name:      "windows_total",
			Help:      "Sample windows analyzed.",
		},
	)
	windowsMissed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "dsp",
			Name:      "windows_missed_total",
			Help:      "Windows overwritten before processing (missed deadline).",
		},
	)
	invalidSymbols = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "dsp",
			Name:      "invalid_symbols_total",
			Help:      "Symbol decisions rejected by the noise or confidence gate.",
		},
	)
	noiseFloorGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "guardtone",
			Subsystem: "dsp",
			Name:      "noise_floor",
			Help:      "Adaptive noise-floor estimate (energy units).",
		},
	)
	channelBusyGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "guardtone",
			Subsystem: "dsp",
			Name:      "channel_busy",
			Help:      "Debounced channel activity classification (1 busy, 0 idle).",
		},
	)
	receiverEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "rx",
			Name:      "events_total",
			Help:      "Frame receiver state machine events.",
		},
		[]string{"event"}, // lock, sync_abort, payload_abort, crc_fail, frame
	)
	txAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "tx",
			Name:      "attempts_total",
			Help:      "Transmit attempt outcomes. Sustained busy aborts with no sends indicate contention starvation.",
		},
		[]string{"outcome"}, // sent, busy_abort, superseded
	)
	framesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "guardtone",
			Subsystem: "tx",
			Name:      "frames_total",
			Help:      "Frames fully emitted on air.",
		},
	)
)

// RegisterMetrics registers the guardtone metric set exactly once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			windowsProcessed, windowsMissed, invalidSymbols,
			noiseFloorGauge, channelBusyGauge,
			receiverEvents, txAttempts, framesSent,
		)
	})
}

// Receiver event labels.
const (
	RxLock         = "lock"
	RxSyncAbort    = "sync_abort"
	RxPayloadAbort = "payload_abort"
	RxCRCFail      = "crc_fail"
	RxFrame        = "frame"
)

// Transmit outcome labels.
const (
	TxSent       = "sent"
	TxBusyAbort  = "busy_abort"
	TxSuperseded = "superseded"
)

func RecordWindow(missed uint64, symbolValid bool) {
	RegisterMetrics()
	windowsProcessed.Inc()
	if missed > 0 {
		windowsMissed.Add(float64(missed))
	}
	if !symbolValid {
		invalidSymbols.Inc()
	}
}

func RecordChannelState(busy bool, noiseFloor float64) {
	RegisterMetrics()
	if busy {
		channelBusyGauge.Set(1)
	} else {
		channelBusyGauge.Set(0)
	}
	noiseFloorGauge.Set(noiseFloor)
}

func RecordReceiverEvent(event string) {
	RegisterMetrics()
	receiverEvents.WithLabelValues(event).Inc()
}

func RecordTxAttempt(outcome string) {
	RegisterMetrics()
	txAttempts.WithLabelValues(outcome).Inc()
	if outcome == TxSent {
		framesSent.Inc()
	}
}
