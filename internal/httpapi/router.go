// Package httpapi is the HTTP dispatch surface of spec.md §4.G: routes
// SOURCE uploads to the pipeline, GET *.mp3 (or extension-less) requests to
// the listener handler, and GET *.json requests to the metadata handler.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mntlake/rustcast/internal/hooks"
	"github.com/mntlake/rustcast/internal/pipeline"
	"github.com/mntlake/rustcast/internal/registry"
	"github.com/mntlake/rustcast/internal/rlog"
)

// requestFormat tags what a listener-facing GET request asked for.
type requestFormat int

const (
	formatMP3 requestFormat = iota
	formatJSON
)

// extractRequestFormat implements spec.md §8 invariant 5: an explicit
// ".json" suffix selects the metadata format; anything else, including no
// extension at all, is the MP3 stream format. The returned mountpoint has
// the matched extension stripped.
func extractRequestFormat(path string) (requestFormat, string) {
	if mount, ok := strings.CutSuffix(path, ".json"); ok {
		return formatJSON, mount
	}
	if mount, ok := strings.CutSuffix(path, ".mp3"); ok {
		return formatMP3, mount
	}
	return formatMP3, path
}

// botUserAgents mirrors the teacher's listener.go bot/preview-fetcher
// filter: a bot never reaches fanout.Subscribe, sparing the fan-out a
// subscriber that will never read.
var botUserAgents = []string{
	"WhatsApp", "facebookexternalhit", "Facebot", "Twitterbot", "LinkedInBot",
	"Slackbot", "TelegramBot", "Discordbot", "Googlebot", "bingbot", "YandexBot",
	"DuckDuckBot", "Baiduspider", "curl", "wget", "python-requests",
	"Go-http-client", "Apache-HttpClient", "Java/", "okhttp",
}

func isBotUserAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, bot := range botUserAgents {
		if strings.Contains(ua, strings.ToLower(bot)) {
			return true
		}
	}
	return false
}

// Router is the top-level http.Handler implementing spec.md §4.G/§6.
type Router struct {
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
	Hooks    *hooks.Client

	// SessionCookieName is the optional cookie config.SessionCookie names;
	// empty means no session id is reported to listener hooks.
	SessionCookieName string
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == "SOURCE" {
		rt.handleSource(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	format, mountpoint := extractRequestFormat(r.URL.Path)
	switch format {
	case formatJSON:
		rt.handleMetadata(w, mountpoint)
	default:
		rt.handleListener(w, r, mountpoint)
	}
}

func (rt *Router) handleSource(w http.ResponseWriter, r *http.Request) {
	_, mountpoint := extractRequestFormat(r.URL.Path)

	if err := rt.Pipeline.Run(w, r, mountpoint); err != nil {
		var statusErr *pipeline.StatusError
		if errors.As(err, &statusErr) {
			http.Error(w, statusErr.Msg, statusErr.Status)
			return
		}
		rlog.Error("pipeline run failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (rt *Router) handleListener(w http.ResponseWriter, r *http.Request, mountpoint string) {
	if isBotUserAgent(r.Header.Get("User-Agent")) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	stream := rt.Registry.Lookup(mountpoint)
	if stream == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	sessionCookie := rt.sessionCookieValue(r)
	streamID := stream.ID.String()
	if err := rt.Hooks.ListenerStart(streamID, sessionCookie); err != nil {
		rlog.Error("listener_start hook failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
	}
	defer func() {
		if err := rt.Hooks.ListenerEnd(streamID, sessionCookie); err != nil {
			rlog.Error("listener_end hook failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		}
	}()

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	conn, bufrw, err := hijacker.Hijack()
	if err != nil {
		rlog.Error("listener hijack failed", rlog.F("mountpoint", mountpoint), rlog.F("error", err))
		return
	}
	defer conn.Close()

	if _, err := bufrw.WriteString("HTTP/1.0 200 OK\r\nServer: Rustcast\r\nContent-Type: audio/mpeg\r\n\r\n"); err != nil {
		return
	}
	if err := bufrw.Flush(); err != nil {
		return
	}

	recv := stream.FanOut.Subscribe()
	defer recv.Close()

	for {
		f, ok := recv.Recv()
		if !ok {
			return
		}
		if _, err := bufrw.Write(f.Data); err != nil {
			return
		}
		if err := bufrw.Flush(); err != nil {
			return
		}
	}
}

func (rt *Router) sessionCookieValue(r *http.Request) string {
	if rt.SessionCookieName == "" {
		return ""
	}
	c, err := r.Cookie(rt.SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// metadataResponse mirrors the original Rust server's MountpointJson,
// whose artist/title fields are Option<String> and serialize via serde as
// JSON null when absent; Go's encoding/json gives a nil *string the same
// null encoding, with no omitempty (the keys are always present).
type metadataResponse struct {
	Artist *string `json:"artist"`
	Title  *string `json:"title"`
}

func (rt *Router) handleMetadata(w http.ResponseWriter, mountpoint string) {
	stream := rt.Registry.Lookup(mountpoint)
	if stream == nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	meta := stream.Metadata()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(metadataResponse{Artist: meta.Artist, Title: meta.Title})
}
