package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mntlake/rustcast/internal/fanout"
	"github.com/mntlake/rustcast/internal/frame"
)

// Metadata is the current now-playing information for a Stream. Both
// fields are optional; nil means absent rather than tagged with an empty
// string, matching the original Rust implementation's Option<String>
// fields (audio.rs), which serde serializes as JSON null. The zero value
// (both nil) is the default state before any decoder metadata event has
// arrived.
type Metadata struct {
	Artist *string
	Title  *string
}

// Stream is the per-mountpoint aggregate owned by one pipeline run: its
// identity, its mountpoint name, its guarded now-playing metadata, and the
// fan-out that publishes encoded frames to listeners. The id is immutable
// for the lifetime of the Stream; metadata may change at any time under its
// own lock, independent of the registry lock.
type Stream struct {
	ID         uuid.UUID
	Mountpoint string

	metaMu sync.RWMutex
	meta   Metadata

	FanOut *fanout.FanOut[*frame.Frame]
}

// NewStream builds a fresh Stream with a newly generated id, empty
// metadata, and a new fan-out of the given per-subscriber queue capacity.
func NewStream(mountpoint string, queueCapacity int) *Stream {
	return &Stream{
		ID:         uuid.New(),
		Mountpoint: mountpoint,
		FanOut:     fanout.New[*frame.Frame](queueCapacity),
	}
}

// SetMetadata replaces the stream's now-playing metadata under the
// exclusive metadata lock. Safe to call concurrently with Metadata.
func (s *Stream) SetMetadata(m Metadata) {
	s.metaMu.Lock()
	s.meta = m
	s.metaMu.Unlock()
}

// Metadata returns a snapshot of the current now-playing metadata under the
// shared metadata lock. Safe to call concurrently with SetMetadata.
func (s *Stream) Metadata() Metadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.meta
}
