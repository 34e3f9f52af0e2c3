/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 AsterLink Contributors
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package media

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Track is a single local media track. Implementations wrap whatever the
// capture device produces; the manager only needs stop and enable control.
type Track interface {
	ID() string
	Kind() string
	SetEnabled(enabled bool)
	Enabled() bool
	Stop() error
}

// Stream is a set of local tracks acquired together. A stream stays active
// until Stop is called; Stop is idempotent.
type Stream struct {
	id     string
	mu     sync.Mutex
	tracks []Track
	active bool
}

// NewStream creates an active stream from the given tracks
func NewStream(tracks []Track) *Stream {
	return &Stream{
		id:     uuid.New().String(),
		tracks: tracks,
		active: true,
	}
}

// ID returns the stream identifier
func (s *Stream) ID() string {
	return s.id
}

// Active reports whether the stream still holds live tracks
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Tracks returns the stream's tracks
func (s *Stream) Tracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks := make([]Track, len(s.tracks))
	copy(tracks, s.tracks)
	return tracks
}

// AudioTracks returns only the audio tracks
func (s *Stream) AudioTracks() []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	var audio []Track
	for _, t := range s.tracks {
		if t.Kind() == "audio" {
			audio = append(audio, t)
		}
	}
	return audio
}

// Stop stops every track and marks the stream inactive. Calling Stop on an
// already stopped stream is a no-op.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	tracks := make([]Track, len(s.tracks))
	copy(tracks, s.tracks)
	s.mu.Unlock()

	for _, t := range tracks {
		_ = t.Stop()
	}
}

// SampleTrack adapts a pion TrackLocalStaticSample to the Track interface
// so a capture device can feed audio samples straight into a peer
// connection. While disabled, writes are swallowed so the far end hears
// silence.
type SampleTrack struct {
	local *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	stopped bool
}

// NewSampleTrack creates an audio sample track with the given codec
func NewSampleTrack(capability webrtc.RTPCodecCapability, trackID, streamID string) (*SampleTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(capability, trackID, streamID)
	if err != nil {
		return nil, err
	}
	return &SampleTrack{local: local, enabled: true}, nil
}

// Local returns the underlying pion track for AddTrack calls
func (t *SampleTrack) Local() *webrtc.TrackLocalStaticSample {
	return t.local
}

// ID returns the track identifier
func (t *SampleTrack) ID() string {
	return t.local.ID()
}

// Kind returns the track kind
func (t *SampleTrack) Kind() string {
	return t.local.Kind().String()
}

// SetEnabled enables or disables the track
func (t *SampleTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

// Enabled reports whether the track is enabled
func (t *SampleTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Stop marks the track stopped; further writes are dropped
func (t *SampleTrack) Stop() error {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	return nil
}

// WriteSample forwards a captured sample to the peer connection, dropping
// it if the track is muted or stopped.
func (t *SampleTrack) WriteSample(sample media.Sample) error {
	t.mu.Lock()
	enabled := t.enabled && !t.stopped
	t.mu.Unlock()
	if !enabled {
		return nil
	}
	return t.local.WriteSample(sample)
}
