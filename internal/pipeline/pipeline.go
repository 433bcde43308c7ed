// Package pipeline drives one source session end-to-end: claim the
// mountpoint, authenticate, upgrade the connection, decode, encode, dump to
// disk, and publish, per spec.md §4.F's twelve-step sequence.
package pipeline

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mntlake/rustcast/internal/audiosource"
	"github.com/mntlake/rustcast/internal/frame"
	"github.com/mntlake/rustcast/internal/hooks"
	"github.com/mntlake/rustcast/internal/mp3enc"
	"github.com/mntlake/rustcast/internal/registry"
	"github.com/mntlake/rustcast/internal/rlog"
)

// sourceTCPBufferSize matches the teacher's source/handler.go tuning for a
// source connection carrying up to 320kbps audio.
const sourceTCPBufferSize = 65536

// StatusError carries the HTTP status the pipeline wants written back to
// the source client when admission fails before the connection has been
// upgraded.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string { return e.Msg }

var (
	errAlreadyLive = &StatusError{Status: http.StatusConflict, Msg: "Stream already live"}
	errRejected    = &StatusError{Status: http.StatusForbidden, Msg: "Rejected by stream_start hook"}
	errHookFailed  = &StatusError{Status: http.StatusInternalServerError, Msg: "stream_start hook unavailable"}
)

// Pipeline holds the dependencies shared by all source sessions. Each call
// to Run governs one session; Run keeps no state on the Pipeline and may be
// called concurrently for different SOURCE requests.
type Pipeline struct {
	Registry   *registry.Registry
	Hooks      *hooks.Client
	DumpPath   string // template containing "{uuid}"
	QueueCap   int    // per-subscriber fan-out queue capacity; 0 uses the fan-out default
}

// Run executes the full pipeline sequence for one SOURCE request. mountpoint
// is the already-extracted, extension-stripped path; w must support
// http.Hijacker so the connection can be upgraded once admitted.
func (p *Pipeline) Run(w http.ResponseWriter, r *http.Request, mountpoint string) error {
	password := extractPassword(r.Header.Get("Authorization"))
	logICYHeaders(r, mountpoint)

	guard, err := p.Registry.Claim(mountpoint)
	if err != nil {
		return errAlreadyLive
	}
	// Release is idempotent, so one deferred call covers every exit path:
	// claim failure never reaches here, hook rejection releases while still
	// Starting, and a normal run releases after Live per step 12.
	defer guard.Release()

	stream := registry.NewStream(mountpoint, p.QueueCap)

	if err := p.Hooks.StreamStart(mountpoint, stream.ID.String(), password); err != nil {
		if errors.Is(err, hooks.ErrReject) {
			rlog.Info("stream_start rejected", rlog.F("mountpoint", mountpoint), rlog.F("id", stream.ID))
			return errRejected
		}
		rlog.Error("stream_start hook failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		return errHookFailed
	}

	p.Registry.Promote(guard, stream)
	// Once Live, listeners may subscribe; closing the fan-out on every exit
	// path ends their Recv loops. Deferred calls run in reverse order, so
	// this runs after the stream_end hook and before guard.Release.
	defer stream.FanOut.Close()

	conn, err := upgrade(w)
	if err != nil {
		rlog.Error("hijack failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		return nil
	}
	defer conn.Close()
	optimizeTCPConnection(conn)

	src, err := audiosource.NewVorbisSource(bufio.NewReaderSize(conn, sourceTCPBufferSize))
	if err != nil {
		rlog.Error("audio source init failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		return nil
	}
	defer src.Close()

	dumpPath := strings.ReplaceAll(p.DumpPath, "{uuid}", stream.ID.String())
	dump, err := os.Create(dumpPath)
	if err != nil {
		rlog.Error("dump file open failed", rlog.F("mountpoint", mountpoint), rlog.F("path", dumpPath), rlog.F("error", err))
		return nil
	}
	defer dump.Close()

	enc, err := mp3enc.New(src.SampleRate(), src.Channels(), src.BitrateNominal()/1000)
	if err != nil {
		rlog.Error("encoder configuration failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		return nil
	}

	rlog.Info("stream started",
		rlog.F("id", stream.ID),
		rlog.F("mountpoint", mountpoint),
		rlog.F("codec", src.CodecName()),
		rlog.F("sample_rate", src.SampleRate()),
		rlog.F("channels", src.Channels()),
		rlog.F("kbps", src.BitrateNominal()/1000),
	)
	start := time.Now()

	p.runLoop(src, enc, stream, dump, mountpoint)

	rlog.Info("stream finished",
		rlog.F("id", stream.ID),
		rlog.F("mountpoint", mountpoint),
		rlog.F("elapsed_seconds", time.Since(start).Seconds()),
	)
	if err := p.Hooks.StreamEnd(mountpoint, stream.ID.String()); err != nil {
		rlog.Error("stream_end hook failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
	}

	return nil
}

// runLoop is step 11 of spec.md §4.F: pull from the source, route
// metadata, encode audio, dump, and publish, applying the per-error-kind
// policy of spec.md §7.
func (p *Pipeline) runLoop(src audiosource.Source, enc *mp3enc.Encoder, stream *registry.Stream, dump io.Writer, mountpoint string) {
	channels := src.Channels()

	for {
		ev, err := src.Read()
		if err != nil {
			if errors.Is(err, audiosource.ErrBadPacket) {
				continue
			}
			rlog.Info("source disconnected", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
			return
		}

		switch ev.Kind {
		case audiosource.EventEOF:
			return
		case audiosource.EventMetadata:
			stream.SetMetadata(registry.Metadata(ev.Metadata))
			continue
		case audiosource.EventAudio:
			if len(ev.Audio) != channels {
				rlog.Error("malformed frame, aborting stream",
					rlog.F("mountpoint", mountpoint),
					rlog.F("got_channels", len(ev.Audio)),
					rlog.F("want_channels", channels))
				return
			}

			encoded, err := enc.Encode(ev.Audio)
			if err != nil {
				rlog.Error("encoder error, aborting stream", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
				return
			}
			if len(encoded) == 0 {
				continue
			}

			if _, err := dump.Write(encoded); err != nil {
				rlog.Error("dump write failed, aborting stream", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
				return
			}

			stream.FanOut.Publish(frame.New(encoded))
		}
	}
}

// icyHeaders are the ICY-style request headers a SOURCE client may send
// alongside the upload, grounded on the teacher's source/handler.go
// parseMetadata. spec.md's Metadata model is narrower (artist/title only,
// sourced from Vorbis comments), so these are logged for operational
// visibility and never feed the registry's Metadata.
var icyHeaders = []string{
	"ice-name", "ice-genre", "ice-url", "ice-bitrate", "ice-public", "Content-Type",
}

// logICYHeaders records whichever of icyHeaders were present on the
// request, so operators can see what a source client advertised about
// itself without those values affecting stream behavior.
func logICYHeaders(r *http.Request, mountpoint string) {
	fields := []rlog.Field{rlog.F("mountpoint", mountpoint)}
	for _, h := range icyHeaders {
		if v := r.Header.Get(h); v != "" {
			fields = append(fields, rlog.F(h, v))
		}
	}
	if len(fields) > 1 {
		rlog.Info("source request headers", fields...)
	}
}

// extractPassword implements spec.md §8 invariant 6: base64-decode the
// token after "Basic ", take the substring after the first ':'; any parse
// failure yields no password.
func extractPassword(authorization string) string {
	const prefix = "Basic "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorization, prefix))
	if err != nil {
		return ""
	}
	_, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return ""
	}
	return password
}

// upgrade hijacks the HTTP connection and writes the immediate 200 OK
// Icecast source clients expect before they start streaming, grounded on
// source/handler.go's HandleSource hijack sequence.
func upgrade(w http.ResponseWriter) (net.Conn, error) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, fmt.Errorf("pipeline: response writer does not support hijacking")
	}
	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		return nil, fmt.Errorf("pipeline: hijack: %w", err)
	}
	if _, err := bufrw.WriteString("HTTP/1.0 200 OK\r\n\r\n"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pipeline: writing upgrade response: %w", err)
	}
	if err := bufrw.Flush(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pipeline: flushing upgrade response: %w", err)
	}
	return conn, nil
}

// optimizeTCPConnection applies the teacher's source-connection TCP tuning
// (source/handler.go's optimizeTCPConnection): disable Nagle's algorithm
// for low latency, enable keep-alive, and widen socket buffers for
// high-bitrate audio.
func optimizeTCPConnection(conn net.Conn) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	tcpConn.SetNoDelay(true)
	tcpConn.SetKeepAlive(true)
	tcpConn.SetKeepAlivePeriod(30 * time.Second)
	tcpConn.SetReadBuffer(sourceTCPBufferSize)
	tcpConn.SetWriteBuffer(sourceTCPBufferSize)
}
