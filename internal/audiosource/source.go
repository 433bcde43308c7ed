// Package audiosource defines the decoded-PCM packet source contract the
// pipeline driver consumes, and its one concrete implementation: a
// pull-based Ogg/Vorbis decoder built on xlab/vorbis-go's libogg/libvorbis
// bindings.
package audiosource

import "errors"

// ErrBadPacket marks a single unintelligible packet. The stream may
// continue; the pipeline skips the packet and calls Read again.
var ErrBadPacket = errors.New("audiosource: bad packet")

// EventKind tags which variant an Event holds.
type EventKind int

const (
	// EventAudio carries a decoded PCM frame: one sample slice per channel,
	// all of equal length.
	EventAudio EventKind = iota
	// EventMetadata carries a fresh Metadata snapshot parsed from a
	// mid-stream comment packet.
	EventMetadata
	// EventEOF marks a clean end of stream; no further Read calls are made.
	EventEOF
)

// Metadata is the artist/title pair extracted from a Vorbis comment
// packet. Either field is nil if the corresponding comment entry was
// absent, distinguishing "not tagged" from "tagged with an empty string".
type Metadata struct {
	Artist *string
	Title  *string
}

// Event is the result of one successful Read call.
type Event struct {
	Kind     EventKind
	Audio    [][]int16 // [channel][sample], channels of equal length
	Metadata Metadata
}

// Source is a decoded-PCM stream presented as a sequence of read events.
//
// Read returns exactly one of: an EventAudio or EventMetadata Event with a
// nil error; an EventEOF Event with a nil error, signalling a clean end of
// stream after which Read is not called again; or a zero Event with a
// non-nil error, which is either ErrBadPacket (this packet was
// unintelligible, but the caller should call Read again) or some other
// error wrapping the underlying transport failure (terminal; Read is not
// called again).
type Source interface {
	Read() (Event, error)

	// SampleRate is the decoder's sample rate in Hz.
	SampleRate() int
	// Channels is the channel count, 1 or 2 in practice.
	Channels() int
	// BitrateNominal is the stream's nominal bitrate in bits/second.
	BitrateNominal() int
	// CodecName is a short identifier for logging, e.g. "vorbis".
	CodecName() string
}
