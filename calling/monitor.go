/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package calling

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/asterlink/softphone-go-sdk/phonesdk"
)

// Quality is the coarse connection quality classification
type Quality string

const (
	QualityUnknown Quality = "unknown"
	QualityGood    Quality = "good"
	QualityFair    Quality = "fair"
	QualityPoor    Quality = "poor"
)

// ConnectionStats is one sample of connection health
type ConnectionStats struct {
	Timestamp     time.Time
	PacketsLost   int64   // lost since the previous sample
	JitterMs      float64 // inbound jitter in milliseconds
	RTTMs         float64 // current round trip time in milliseconds
	AudioLevel    float64 // local capture level in [0, 1]
	BytesSent     uint64
	BytesReceived uint64
	BitrateKbps   float64 // receive bitrate since the previous sample
	Quality       Quality
}

// Readable renders the sample for display
func (s ConnectionStats) Readable() string {
	return fmt.Sprintf("quality=%s lost=%d jitter=%.1fms rtt=%.0fms bitrate=%.0fkbps",
		s.Quality, s.PacketsLost, s.JitterMs, s.RTTMs, s.BitrateKbps)
}

// ClassifyQuality maps a sample's loss, round trip time, and jitter onto
// the good/fair/poor scale. Thresholds follow field experience with the
// Asterisk backend: calls stay usable up to roughly 150ms RTT and degrade
// sharply past 300ms.
func ClassifyQuality(packetsLost int64, rttMs, jitterMs float64) Quality {
	if packetsLost > 5 || rttMs > 300 || jitterMs > 50 {
		return QualityPoor
	}
	if packetsLost > 2 || rttMs > 150 || jitterMs > 20 {
		return QualityFair
	}
	return QualityGood
}

// MonitorConfig holds configuration for the stats monitor
type MonitorConfig struct {
	// Interval between stats samples
	Interval time.Duration
}

// DefaultMonitorConfig returns the default monitor configuration
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Interval: 1 * time.Second,
	}
}

// Monitor samples the peer connection's stats while a call is connected
// and classifies the connection quality. Start and Stop are idempotent.
type Monitor struct {
	peer   *PeerManager
	config *MonitorConfig
	logger phonesdk.Logger

	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
	last             ConnectionStats
	prevLost         int64
	prevBytesRecv    uint64
	quality          Quality
	onSample         func(stats ConnectionStats)
	onQualityChange  func(quality Quality)
	havePrevSample   bool
}

// NewMonitor creates a stats monitor for the given peer connection
func NewMonitor(peer *PeerManager, config *MonitorConfig, logger phonesdk.Logger) *Monitor {
	if config == nil {
		config = DefaultMonitorConfig()
	}
	return &Monitor{
		peer:    peer,
		config:  config,
		logger:  logger,
		quality: QualityUnknown,
	}
}

// OnSample sets the callback invoked with every stats sample
func (m *Monitor) OnSample(handler func(stats ConnectionStats)) {
	m.mu.Lock()
	m.onSample = handler
	m.mu.Unlock()
}

// OnQualityChange sets the callback invoked when the classification moves
func (m *Monitor) OnQualityChange(handler func(quality Quality)) {
	m.mu.Lock()
	m.onQualityChange = handler
	m.mu.Unlock()
}

// Start begins periodic sampling. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	go m.loop(stopCh)
}

// Stop halts sampling. Calling Stop on a stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()
}

// Running reports whether the monitor is sampling
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastSample returns the most recent stats sample
func (m *Monitor) LastSample() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-stopCh:
			return
		}
	}
}

func (m *Monitor) sample() {
	report, err := m.peer.GetStats()
	if err != nil {
		return
	}

	stats := ConnectionStats{Timestamp: time.Now()}

	var lostTotal int64
	var jitterSec float64
	var bytesRecv uint64

	for _, s := range report {
		switch v := s.(type) {
		case webrtc.InboundRTPStreamStats:
			if v.Kind == "audio" || v.Kind == "" {
				lostTotal += int64(v.PacketsLost)
				if v.Jitter > jitterSec {
					jitterSec = v.Jitter
				}
				bytesRecv += v.BytesReceived
			}
		case webrtc.OutboundRTPStreamStats:
			stats.BytesSent += v.BytesSent
		case webrtc.ICECandidatePairStats:
			if v.State == webrtc.StatsICECandidatePairStateSucceeded {
				stats.RTTMs = v.CurrentRoundTripTime * 1000
			}
		case webrtc.AudioSourceStats:
			stats.AudioLevel = v.AudioLevel
		}
	}

	stats.JitterMs = jitterSec * 1000
	stats.BytesReceived = bytesRecv

	m.mu.Lock()
	if m.havePrevSample {
		stats.PacketsLost = lostTotal - m.prevLost
		if stats.PacketsLost < 0 {
			stats.PacketsLost = 0
		}
		deltaBytes := bytesRecv - m.prevBytesRecv
		stats.BitrateKbps = float64(deltaBytes) * 8 / 1000 / m.config.Interval.Seconds()
	}
	m.prevLost = lostTotal
	m.prevBytesRecv = bytesRecv
	m.havePrevSample = true

	stats.Quality = ClassifyQuality(stats.PacketsLost, stats.RTTMs, stats.JitterMs)
	m.last = stats
	qualityChanged := stats.Quality != m.quality
	m.quality = stats.Quality
	onSample := m.onSample
	onQualityChange := m.onQualityChange
	m.mu.Unlock()

	if onSample != nil {
		onSample(stats)
	}
	if qualityChanged && onQualityChange != nil {
		m.logger.Printf("monitor: connection quality -> %s (%s)", stats.Quality, stats.Readable())
		onQualityChange(stats.Quality)
	}
}
