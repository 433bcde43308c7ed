// Package registry implements the process-wide mountpoint → stream mapping
// with its three-state lifecycle (absent / starting / live), grounded on the
// locking idiom of stream/mount.go's MountManager (map guarded by a single
// RWMutex, short critical sections, no I/O under lock) generalized to the
// claim/promote/lookup state machine spec.md §4.E requires.
package registry

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAlreadyLive is returned by Claim when a mountpoint already has an
// entry, live or starting.
var ErrAlreadyLive = errors.New("registry: mountpoint already live")

// entryState tags what a registry slot currently holds.
type entryState int

const (
	stateStarting entryState = iota
	stateLive
)

type entry struct {
	state  entryState
	stream *Stream
}

// Registry maps mountpoint names to their current lifecycle entry. The zero
// value is not usable (its map is nil); construct with New.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// ClaimGuard reserves a mountpoint name in the Starting state. Release
// removes the entry unconditionally, regardless of what state it is in when
// called; it is safe to call Release more than once (only the first call
// has an effect), matching the "destructor runs on every exit path" scoped
// acquisition spec.md §4.E and §9 describe.
type ClaimGuard struct {
	reg        *Registry
	mountpoint string
	released   atomic.Bool
}

// Release removes this guard's mountpoint entry from the registry. Safe to
// call multiple times; only the first call has an effect.
func (g *ClaimGuard) Release() {
	if g.released.Swap(true) {
		return
	}
	g.reg.mu.Lock()
	delete(g.reg.entries, g.mountpoint)
	g.reg.mu.Unlock()
}

// Claim reserves mountpoint in the Starting state. It fails with
// ErrAlreadyLive if any entry (Starting or Live) already occupies that
// name. The returned guard's Release removes the entry on every exit path.
func (r *Registry) Claim(mountpoint string) (*ClaimGuard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[mountpoint]; exists {
		return nil, ErrAlreadyLive
	}
	r.entries[mountpoint] = &entry{state: stateStarting}
	return &ClaimGuard{reg: r, mountpoint: mountpoint}, nil
}

// Promote replaces the Starting entry held by guard with a Live entry
// wrapping stream. It is a programming error to call Promote after the
// guard's Release, or for an entry not currently Starting under this
// guard's mountpoint; both cases panic, since only the guard owner can
// legally transition out of Starting and by construction no other caller
// can reach this state.
func (r *Registry) Promote(guard *ClaimGuard, stream *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if guard.released.Load() {
		panic("registry: promote called with a released claim guard")
	}
	e, ok := r.entries[guard.mountpoint]
	if !ok || e.state != stateStarting {
		panic("registry: promote called on a mountpoint not in Starting state")
	}
	e.state = stateLive
	e.stream = stream
}

// Lookup returns the live Stream for mountpoint, or nil if the mountpoint
// is absent or still Starting. Starting entries are deliberately invisible
// to lookups so listeners see 404 until the source has authenticated.
func (r *Registry) Lookup(mountpoint string) *Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[mountpoint]
	if !ok || e.state != stateLive {
		return nil
	}
	return e.stream
}
