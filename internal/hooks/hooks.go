// Package hooks invokes the four optional webhook URLs the server's
// configuration may declare: stream_start, stream_end, listener_start, and
// listener_end. All four are POSTs of a JSON body; absence of a configured
// URL means "allow / skip" per spec.md §4.H.
package hooks

import (
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// ErrReject is returned by StreamStart when the hook explicitly answers
// {"ok": false}.
var ErrReject = errors.New("hooks: stream_start rejected")

// Config holds the four optional webhook URLs, mirroring the TOML
// [webhooks] table in spec.md §6.
type Config struct {
	StreamStart   string
	StreamEnd     string
	ListenerStart string
	ListenerEnd   string
}

// Client invokes the configured webhooks over HTTP.
type Client struct {
	cfg Config
	http *resty.Client
}

// New builds a Client. The resty client carries whatever default timeout
// resty itself applies; spec.md §5 deliberately sets no explicit deadline
// on hook calls.
func New(cfg Config) *Client {
	return &Client{cfg: cfg, http: resty.New()}
}

type streamStartRequest struct {
	Mountpoint string `json:"mountpoint"`
	UUID       string `json:"uuid"`
	Password   string `json:"password"`
}

type streamStartResponse struct {
	OK bool `json:"ok"`
}

// StreamStart invokes the stream_start hook, if configured. A nil error
// with no URL configured means "allow". ErrReject means the hook answered
// {"ok": false}. Any other error means the hook call itself failed
// (HookTransport per spec.md §7).
func (c *Client) StreamStart(mountpoint, uuid, password string) error {
	if c.cfg.StreamStart == "" {
		return nil
	}

	var resp streamStartResponse
	r, err := c.http.R().
		SetBody(streamStartRequest{Mountpoint: mountpoint, UUID: uuid, Password: password}).
		SetResult(&resp).
		Post(c.cfg.StreamStart)
	if err != nil {
		return fmt.Errorf("hooks: stream_start transport: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("hooks: stream_start status %d", r.StatusCode())
	}
	if !resp.OK {
		return ErrReject
	}
	return nil
}

type streamEndRequest struct {
	Mountpoint string `json:"mountpoint"`
	UUID       string `json:"uuid"`
}

// StreamEnd invokes the stream_end hook, if configured. Any failure is
// reported to the caller for logging only; spec.md §4.F step 12 says
// stream_end failures are logged but never propagated.
func (c *Client) StreamEnd(mountpoint, uuid string) error {
	if c.cfg.StreamEnd == "" {
		return nil
	}
	r, err := c.http.R().
		SetBody(streamEndRequest{Mountpoint: mountpoint, UUID: uuid}).
		Post(c.cfg.StreamEnd)
	if err != nil {
		return fmt.Errorf("hooks: stream_end transport: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("hooks: stream_end status %d", r.StatusCode())
	}
	return nil
}

type listenerRequest struct {
	UUID          string `json:"uuid"`
	SessionCookie string `json:"session_cookie"`
}

// ListenerStart invokes the listener_start hook, if configured, at
// listener connect — one of the Open Question resolutions spec.md §9
// names explicitly as something "an implementation should wire".
func (c *Client) ListenerStart(uuid, sessionCookie string) error {
	return c.postListenerHook(c.cfg.ListenerStart, uuid, sessionCookie)
}

// ListenerEnd invokes the listener_end hook, if configured, at listener
// disconnect.
func (c *Client) ListenerEnd(uuid, sessionCookie string) error {
	return c.postListenerHook(c.cfg.ListenerEnd, uuid, sessionCookie)
}

func (c *Client) postListenerHook(url, uuid, sessionCookie string) error {
	if url == "" {
		return nil
	}
	r, err := c.http.R().
		SetBody(listenerRequest{UUID: uuid, SessionCookie: sessionCookie}).
		Post(url)
	if err != nil {
		return fmt.Errorf("hooks: listener hook transport: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("hooks: listener hook status %d", r.StatusCode())
	}
	return nil
}
