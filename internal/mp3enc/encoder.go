// Package mp3enc adapts shine-mp3 to the pipeline's [channel][sample]int16
// packet shape, per spec.md §4.C: mono input is duplicated to both encoder
// channels, the output buffer is pre-sized with the encoder's own
// worst-case formula, and any encoder error is fatal to the pipeline.
//
// Grounded on _examples/other_examples's alkime/memos internal/audio
// encoder, the one file in the retrieved pack that exercises shine-mp3's
// real API: NewEncoder(sampleRate, channels int) *Encoder and
// (*Encoder).Write(io.Writer, []int16 interleaved) error. That file also
// documents shine-mp3's own mono encoding bug and works around it by
// always constructing a stereo encoder and duplicating samples — the same
// workaround spec.md §4.C independently calls for, so it is kept as-is.
package mp3enc

import (
	"bytes"
	"fmt"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
)

// Encoder wraps a shine-mp3 encoder instance for one stream's sample rate.
type Encoder struct {
	enc *shine.Encoder
}

// New configures an encoder for sampleRate Hz. channels and bitrateKbps
// are accepted to mirror the source's own parameters (spec.md §4.F step
// 9) and for caller-side logging, but shine-mp3's constructor observed in
// the pack exposes no bitrate or quality-tier knob of its own — see
// DESIGN.md for this library-shape limitation. The encoder is always
// constructed stereo, matching spec.md §4.C's mono-duplication contract.
func New(sampleRate, channels, bitrateKbps int) (*Encoder, error) {
	_ = channels
	_ = bitrateKbps
	return &Encoder{enc: shine.NewEncoder(sampleRate, 2)}, nil
}

// Encode takes one decoded packet ([channel][sample]int16, channels equal
// in length) and returns its MP3-encoded bytes. A one-channel packet is
// duplicated to both encoder inputs, per spec.md §4.C; a packet of two or
// more channels uses the first two channel vectors, and an empty packet is
// an error. The output buffer is
// pre-grown to the encoder's own worst-case sizing recommendation
// (num_samples*5/4 + 7200 bytes) before the encode call fills it.
func (e *Encoder) Encode(packet [][]int16) ([]byte, error) {
	var left, right []int16
	switch len(packet) {
	case 0:
		return nil, fmt.Errorf("mp3enc: empty packet")
	case 1:
		left, right = packet[0], packet[0]
	default:
		left, right = packet[0], packet[1]
	}

	n := len(left)
	interleaved := make([]int16, n*2)
	for i := 0; i < n; i++ {
		interleaved[i*2] = left[i]
		interleaved[i*2+1] = right[i]
	}

	var out bytes.Buffer
	out.Grow(n*5/4 + 7200)
	if err := e.enc.Write(&out, interleaved); err != nil {
		return nil, fmt.Errorf("mp3enc: encode: %w", err)
	}
	return out.Bytes(), nil
}
