// SPDX-License-Identifier: MIT
package pipeline

import (
	"sync/atomic"
	"time"

	"chordscope/internal/analysis"
	"chordscope/internal/chord"
)

// Snapshot is one published analysis result. Published snapshots are never
// modified; readers may keep them as long as they like.
type Snapshot struct {
	Seq        uint64
	Time       time.Time
	Profile    analysis.PitchClassProfile
	Decision   chord.Decision
	Candidates []chord.Estimate
	Gated      bool
	Failed     bool // The tick failed; Profile is the previous one.
}

// SnapshotProvider exposes the most recent snapshot.
type SnapshotProvider interface {
	Latest() *Snapshot
}

// Slot holds the latest snapshot. One writer publishes, any number of
// readers load; a reader always sees a complete snapshot.
type Slot struct {
	current atomic.Pointer[Snapshot]
}

// Publish replaces the current snapshot.
func (s *Slot) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Latest returns the current snapshot, or nil before the first publish.
func (s *Slot) Latest() *Snapshot {
	return s.current.Load()
}

// Message is the JSON form of a snapshot sent to remote displays.
type Message struct {
	Type      string    `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds.
	Profile   []float64 `json:"profile"`
	Label     *string   `json:"label"` // null when no chord was matched.
	Strength  float64   `json:"strength"`
	Confident bool      `json:"confident"`
	Display   string    `json:"display"`
	Failed    bool      `json:"failed,omitempty"`
}

// Message converts the snapshot for transports.
func (s *Snapshot) Message() Message {
	m := Message{
		Type:      "chord",
		Seq:       s.Seq,
		Timestamp: s.Time.UnixMilli(),
		Profile:   s.Profile.Clone(),
		Strength:  s.Decision.Estimate.Strength,
		Confident: s.Decision.Confident(),
		Display:   s.Decision.String(),
		Failed:    s.Failed,
	}
	if s.Decision.Estimate.HasChord() {
		label := s.Decision.Estimate.Label
		m.Label = &label
	}
	return m
}
