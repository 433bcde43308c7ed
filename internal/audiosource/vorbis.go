package audiosource

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/xlab/vorbis-go/vorbis"
)

// dataChunkSize is the amount read from the underlying transport per Ogg
// sync buffer refill, matching the teacher's decoder pump in
// xlab-vorbis-go/decoder/decoder.go.
const dataChunkSize = 4096

// vorbisCommentPacketType is the Ogg packet type byte identifying a Vorbis
// comment header, per the Vorbis I spec ("type 3" packets begin with this
// byte followed by the "vorbis" magic).
const vorbisCommentPacketType = 3

var vorbisMagic = []byte("vorbis")

// VorbisSource is the Ogg/Vorbis variant of Source. It wraps an upgraded
// HTTP upload body; seeking is never attempted (live Vorbis decode has no
// use for it, and a seek attempt would indicate a bug upstream).
//
// This is a pull restructuring of the teacher's push/channel decode pump:
// the teacher's Decode runs a goroutine that sends whole samplesPerChannel
// frames over a channel. Read here drives the identical libogg/libvorbis
// call sequence synchronously, one packet at a time, so the pipeline's own
// loop (spec.md §4.F) is the sole driver of progress.
type VorbisSource struct {
	input io.Reader

	syncState   vorbis.OggSyncState
	streamState vorbis.OggStreamState
	page        vorbis.OggPage
	packet      vorbis.OggPacket
	info        vorbis.Info
	comment     vorbis.Comment
	dspState    vorbis.DspState
	block       vorbis.Block

	haveSyncedPage bool
	eos            bool
}

// NewVorbisSource parses the three Vorbis header packets from r and
// returns a Source ready to decode audio packets. r is never read beyond
// what the header parse and subsequent Read calls consume; no seeking is
// performed.
func NewVorbisSource(r io.Reader) (*VorbisSource, error) {
	s := &VorbisSource{input: r}
	vorbis.OggSyncInit(&s.syncState)

	if err := s.readHeaders(); err != nil {
		s.cleanup()
		return nil, err
	}

	if ret := vorbis.SynthesisInit(&s.dspState, &s.info); ret < 0 {
		s.cleanup()
		return nil, errors.New("audiosource: vorbis synthesis init failed")
	}
	vorbis.BlockInit(&s.dspState, &s.block)

	return s, nil
}

func (s *VorbisSource) SampleRate() int     { return int(s.info.Rate) }
func (s *VorbisSource) Channels() int       { return int(s.info.Channels) }
func (s *VorbisSource) CodecName() string   { return "vorbis" }
func (s *VorbisSource) BitrateNominal() int { return int(s.info.BitrateNominal) }

// Close releases the libvorbis/libogg state. Safe to call once after
// decoding ends.
func (s *VorbisSource) Close() { s.cleanup() }

func (s *VorbisSource) cleanup() {
	vorbis.BlockClear(&s.block)
	vorbis.DspClear(&s.dspState)
	vorbis.OggStreamClear(&s.streamState)
	vorbis.CommentClear(&s.comment)
	vorbis.InfoClear(&s.info)
	vorbis.OggSyncDestroy(&s.syncState)
}

// readChunk pulls the next block of bytes from the transport into the Ogg
// sync layer. io.ErrUnexpectedEOF (a short final read) is folded into
// io.EOF, matching the teacher's readChunk.
func (s *VorbisSource) readChunk() (int, error) {
	buf := vorbis.OggSyncBuffer(&s.syncState, dataChunkSize)
	n, err := io.ReadFull(s.input, buf[:dataChunkSize])
	vorbis.OggSyncWrote(&s.syncState, n)
	if err == io.ErrUnexpectedEOF {
		return n, io.EOF
	}
	return n, err
}

func (s *VorbisSource) readHeaders() error {
	if _, err := s.readChunk(); err != nil && err != io.EOF {
		return fmt.Errorf("audiosource: reading initial header chunk: %w", err)
	}

	if ret := vorbis.OggSyncPageout(&s.syncState, &s.page); ret != 1 {
		return errors.New("audiosource: not a valid Ogg bitstream")
	}

	vorbis.OggStreamInit(&s.streamState, vorbis.OggPageSerialno(&s.page))
	vorbis.InfoInit(&s.info)
	vorbis.CommentInit(&s.comment)

	if ret := vorbis.OggStreamPagein(&s.streamState, &s.page); ret < 0 {
		return errors.New("audiosource: first page does not belong to this Vorbis stream")
	}
	if ret := vorbis.OggStreamPacketout(&s.streamState, &s.packet); ret != 1 {
		return errors.New("audiosource: unable to fetch the identification packet")
	}
	if ret := vorbis.SynthesisHeaderin(&s.info, &s.comment, &s.packet); ret < 0 {
		return fmt.Errorf("audiosource: unable to decode the identification header: %d", ret)
	}

	headersRead := 0
forPage:
	for headersRead < 2 {
		switch res := vorbis.OggSyncPageout(&s.syncState, &s.page); {
		case res < 0:
			continue forPage
		case res == 0:
			if _, err := s.readChunk(); err != nil {
				return errors.New("audiosource: eof while reading Vorbis headers")
			}
			continue forPage
		}
		vorbis.OggStreamPagein(&s.streamState, &s.page)
		for headersRead < 2 {
			ret := vorbis.OggStreamPacketout(&s.streamState, &s.packet)
			if ret < 0 {
				return errors.New("audiosource: data missing near a secondary header")
			} else if ret == 0 {
				continue forPage
			}
			if ret := vorbis.SynthesisHeaderin(&s.info, &s.comment, &s.packet); ret < 0 {
				return errors.New("audiosource: unable to read a secondary Vorbis header")
			}
			headersRead++
		}
	}

	s.info.Deref()
	s.comment.Deref()
	s.comment.UserComments = make([][]byte, s.comment.Comments)
	s.comment.Deref()
	return nil
}

// Read drives the decode state machine forward until it has a full
// variant to report: an audio packet's decoded PCM, a mid-stream metadata
// update, clean end of stream, a skippable bad packet, or a terminal
// transport error.
func (s *VorbisSource) Read() (Event, error) {
	for {
		if !s.haveSyncedPage {
			switch ret := vorbis.OggSyncPageout(&s.syncState, &s.page); {
			case ret < 0:
				return Event{}, ErrBadPacket
			case ret == 0:
				if _, err := s.readChunk(); err != nil {
					if err == io.EOF {
						return Event{Kind: EventEOF}, nil
					}
					return Event{}, fmt.Errorf("audiosource: reading stream: %w", err)
				}
				continue
			}
			vorbis.OggStreamPagein(&s.streamState, &s.page)
			s.haveSyncedPage = true
			s.eos = vorbis.OggPageEos(&s.page) == 1
		}

		ret := vorbis.OggStreamPacketout(&s.streamState, &s.packet)
		if ret < 0 {
			return Event{}, ErrBadPacket
		}
		if ret == 0 {
			s.haveSyncedPage = false
			if s.eos {
				return Event{Kind: EventEOF}, nil
			}
			continue
		}

		if isCommentPacket(&s.packet) {
			meta, err := parseCommentPacket(&s.packet)
			if err != nil {
				return Event{}, ErrBadPacket
			}
			return Event{Kind: EventMetadata, Metadata: meta}, nil
		}

		audio, err := s.decodeAudioPacket()
		if err != nil {
			return Event{}, ErrBadPacket
		}
		if audio == nil {
			continue
		}
		return Event{Kind: EventAudio, Audio: audio}, nil
	}
}

// decodeAudioPacket runs one packet through the synthesis pipeline and
// returns its decoded samples as [channel][sample]int16, or nil if the
// packet produced no PCM (a valid outcome for some packets).
func (s *VorbisSource) decodeAudioPacket() ([][]int16, error) {
	if vorbis.Synthesis(&s.block, &s.packet) != 0 {
		return nil, nil
	}
	vorbis.SynthesisBlockin(&s.dspState, &s.block)

	channels := int(s.info.Channels)
	pcm := [][][]float32{make([][]float32, channels)}

	samples := vorbis.SynthesisPcmout(&s.dspState, pcm)
	if samples <= 0 {
		return nil, nil
	}

	out := make([][]int16, channels)
	for ch := 0; ch < channels; ch++ {
		out[ch] = make([]int16, samples)
		src := pcm[0][ch][:samples]
		for i, v := range src {
			out[ch][i] = floatToInt16(v)
		}
	}
	vorbis.SynthesisRead(&s.dspState, samples)
	return out, nil
}

func floatToInt16(v float32) int16 {
	f := v * 32768
	switch {
	case f > 32767:
		return 32767
	case f < -32768:
		return -32768
	default:
		return int16(f)
	}
}

// isCommentPacket reports whether an Ogg packet is a Vorbis comment header
// by its leading type byte and magic, per the Vorbis I spec framing.
func isCommentPacket(p *vorbis.OggPacket) bool {
	if p.Bytes < int32(1+len(vorbisMagic)) {
		return false
	}
	data := p.Packet[:p.Bytes]
	return data[0] == vorbisCommentPacketType && bytes.Equal(data[1:1+len(vorbisMagic)], vorbisMagic)
}

// parseCommentPacket extracts ARTIST and TITLE from a raw Vorbis comment
// packet's user-comment list, per spec.md §4.B: case-sensitive key match,
// first occurrence wins, all other fields ignored.
//
// Vorbis comments are laid out as: vendor-length(u32 LE) + vendor bytes +
// comment-count(u32 LE) + for each comment: length(u32 LE) + "KEY=value"
// bytes. The leading type byte and "vorbis" magic (already matched by
// isCommentPacket) precede this layout.
func parseCommentPacket(p *vorbis.OggPacket) (Metadata, error) {
	data := p.Packet[:p.Bytes]
	data = data[1+len(vorbisMagic):]

	readU32 := func() (uint32, bool) {
		if len(data) < 4 {
			return 0, false
		}
		v := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		data = data[4:]
		return v, true
	}

	vendorLen, ok := readU32()
	if !ok || int(vendorLen) > len(data) {
		return Metadata{}, errors.New("audiosource: truncated comment vendor")
	}
	data = data[vendorLen:]

	count, ok := readU32()
	if !ok {
		return Metadata{}, errors.New("audiosource: truncated comment count")
	}

	var meta Metadata
	haveArtist, haveTitle := false, false
	for i := uint32(0); i < count; i++ {
		length, ok := readU32()
		if !ok || int(length) > len(data) {
			return Metadata{}, errors.New("audiosource: truncated comment entry")
		}
		entry := data[:length]
		data = data[length:]

		key, value, found := bytes.Cut(entry, []byte("="))
		if !found {
			continue
		}
		switch {
		case !haveArtist && string(key) == "ARTIST":
			v := string(value)
			meta.Artist = &v
			haveArtist = true
		case !haveTitle && string(key) == "TITLE":
			v := string(value)
			meta.Title = &v
			haveTitle = true
		}
	}
	return meta, nil
}
