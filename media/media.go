/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPlaybackBlocked is returned by a PlaybackSink when the host refuses to
// start playback right now. The manager keeps the stream and retries when
// ResumePlayback is called, matching how autoplay restrictions are handled.
var ErrPlaybackBlocked = errors.New("playback blocked by host policy")

// Constraints describe the audio processing requested from a capture device
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	SampleRate       int
	ChannelCount     int
}

// FullConstraints returns the preferred capture settings for telephony audio
func FullConstraints() Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		SampleRate:       48000,
		ChannelCount:     1,
	}
}

// MinimalConstraints returns the bare settings used when the preferred ones
// cannot be satisfied
func MinimalConstraints() Constraints {
	return Constraints{}
}

// CaptureDevice opens local audio under the given constraints. Devices are
// injectable so tests and headless hosts can supply fakes.
type CaptureDevice interface {
	Name() string
	Open(constraints Constraints) (*Stream, error)
}

// PlaybackSink plays a remote audio stream. Implementations may refuse to
// start (ErrPlaybackBlocked); the manager then defers playback instead of
// failing the call.
type PlaybackSink interface {
	Play(stream *Stream) error
	SetVolume(volume float64) error
	Stop() error
}

// Config holds the configuration for the Media plugin
type Config struct {
	// Full is the first-choice constraint set
	Full Constraints
	// Minimal is the fallback constraint set
	Minimal Constraints
	// DefaultVolume is the initial output volume in [0, 1]
	DefaultVolume float64
}

// DefaultConfig returns the default configuration for the Media plugin
func DefaultConfig() *Config {
	return &Config{
		Full:          FullConstraints(),
		Minimal:       MinimalConstraints(),
		DefaultVolume: 1.0,
	}
}

// Manager owns local media acquisition and remote playback for the
// softphone. Acquisition walks an ordered fallback chain: the primary
// device with full constraints, the primary device with minimal
// constraints, then the legacy device. The first success wins.
type Manager struct {
	config *Config

	mu       sync.Mutex
	primary  CaptureDevice
	legacy   CaptureDevice
	sink     PlaybackSink
	stream   *Stream
	muted    bool
	volume   float64
	deferred *Stream
}

// New creates a new media Manager
func New(primary CaptureDevice, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}

	return &Manager{
		config:  config,
		primary: primary,
		volume:  config.DefaultVolume,
	}
}

// SetLegacyDevice sets the last-resort capture device
func (m *Manager) SetLegacyDevice(device CaptureDevice) {
	m.mu.Lock()
	m.legacy = device
	m.mu.Unlock()
}

// SetPlaybackSink sets the sink used for remote audio
func (m *Manager) SetPlaybackSink(sink PlaybackSink) {
	m.mu.Lock()
	m.sink = sink
	m.mu.Unlock()
}

// Acquire opens local audio through the fallback chain. If a stream is
// already active it is returned as-is, so concurrent callers share one
// capture. On total failure the returned error carries the classification
// of the most specific attempt.
func (m *Manager) Acquire() (*Stream, error) {
	m.mu.Lock()
	if m.stream != nil && m.stream.Active() {
		stream := m.stream
		m.mu.Unlock()
		return stream, nil
	}
	primary := m.primary
	legacy := m.legacy
	muted := m.muted
	m.mu.Unlock()

	if primary == nil {
		return nil, NewError(ErrDeviceNotFound, "no capture device configured", nil)
	}

	type attempt struct {
		device      CaptureDevice
		constraints Constraints
		label       string
	}
	attempts := []attempt{
		{primary, m.config.Full, "full constraints"},
		{primary, m.config.Minimal, "minimal constraints"},
	}
	if legacy != nil {
		attempts = append(attempts, attempt{legacy, m.config.Minimal, "legacy device"})
	}

	var failures []error
	for _, a := range attempts {
		stream, err := a.device.Open(a.constraints)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s via %s: %w", a.label, a.device.Name(), err))
			continue
		}

		m.mu.Lock()
		m.stream = stream
		m.mu.Unlock()
		if muted {
			m.applyMute(stream, true)
		}
		return stream, nil
	}

	return nil, aggregateFailures(failures)
}

// aggregateFailures folds per-attempt errors into one classified error.
// Permission problems dominate because no amount of constraint relaxation
// fixes them; otherwise the first specific classification wins.
func aggregateFailures(failures []error) error {
	kind := ErrUnknown
	for _, f := range failures {
		if KindOf(f) == ErrPermissionDenied {
			kind = ErrPermissionDenied
			break
		}
		if kind == ErrUnknown && KindOf(f) != ErrUnknown {
			kind = KindOf(f)
		}
	}
	return NewError(kind, "all capture attempts failed", errors.Join(failures...))
}

// Release stops the active stream and any deferred playback. Safe to call
// repeatedly and with nothing acquired.
func (m *Manager) Release() {
	m.mu.Lock()
	stream := m.stream
	sink := m.sink
	m.stream = nil
	m.deferred = nil
	m.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if sink != nil {
		_ = sink.Stop()
	}
}

// ActiveStream returns the current local stream, or nil
func (m *Manager) ActiveStream() *Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil && m.stream.Active() {
		return m.stream
	}
	return nil
}

// SetMuted toggles every audio track on the active stream. The flag is
// remembered so a stream acquired later starts in the right state.
func (m *Manager) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	stream := m.stream
	m.mu.Unlock()

	if stream != nil {
		m.applyMute(stream, muted)
	}
}

// Muted reports the current mute flag
func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *Manager) applyMute(stream *Stream, muted bool) {
	for _, t := range stream.AudioTracks() {
		t.SetEnabled(!muted)
	}
}

// SetOutputVolume sets the playback volume, clamped to [0, 1]
func (m *Manager) SetOutputVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	m.mu.Lock()
	m.volume = volume
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		_ = sink.SetVolume(volume)
	}
}

// OutputVolume returns the current playback volume
func (m *Manager) OutputVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// PlayRemote starts playback of a remote stream on the configured sink. If
// the sink reports ErrPlaybackBlocked the stream is held for a later
// ResumePlayback call and no error is returned.
func (m *Manager) PlayRemote(stream *Stream) error {
	m.mu.Lock()
	sink := m.sink
	volume := m.volume
	m.mu.Unlock()

	if sink == nil {
		return nil
	}

	_ = sink.SetVolume(volume)
	if err := sink.Play(stream); err != nil {
		if errors.Is(err, ErrPlaybackBlocked) {
			m.mu.Lock()
			m.deferred = stream
			m.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to start remote playback: %w", err)
	}
	return nil
}

// ResumePlayback retries playback that was deferred by a blocked sink.
// Returns true if deferred playback was started.
func (m *Manager) ResumePlayback() bool {
	m.mu.Lock()
	stream := m.deferred
	sink := m.sink
	m.mu.Unlock()

	if stream == nil || sink == nil {
		return false
	}
	if err := sink.Play(stream); err != nil {
		return false
	}

	m.mu.Lock()
	m.deferred = nil
	m.mu.Unlock()
	return true
}
