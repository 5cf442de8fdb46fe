// Package tempid tracks client-minted placeholder ids from creation until the
// server assigns the real id, and releases work parked on them when it does.
package tempid

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Prefix marks an id as client-minted. Server ids never carry it.
const Prefix = "temp-"

// State of a temporary id.
type State int

const (
	Unknown    State = iota
	Registered       // minted, create call in flight
	Resolved         // server id known
	Deleted          // removed locally before it resolved
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Resolved:
		return "resolved"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// IsTemp reports whether id was minted by the client.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// Mint returns a fresh temporary id for an entity kind, e.g. "temp-set-<uuid>".
func Mint(kind string) string {
	return fmt.Sprintf("%s%s-%s", Prefix, kind, uuid.NewString())
}

// Replayer receives the work parked on a temporary id.
type Replayer interface {
	Replay(tempID, realID string)
	Drop(tempID string)
}

// DiscardFunc is told about a server entity created for a temporary id that
// was deleted locally before the create returned.
type DiscardFunc func(tempID, realID string)

type entry struct {
	state  State
	realID string
}

// Registry maps temporary ids to server ids. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	replayer  Replayer
	onDiscard DiscardFunc
}

// NewRegistry creates a registry that forwards resolutions to r.
func NewRegistry(r Replayer) *Registry {
	return &Registry{entries: make(map[string]*entry), replayer: r}
}

// OnDiscard installs the hook called when a deleted temp id resolves anyway.
func (r *Registry) OnDiscard(fn DiscardFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onDiscard = fn
}

// Register records a temporary id whose create call is about to be sent.
func (r *Registry) Register(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[tempID]; !ok {
		r.entries[tempID] = &entry{state: Registered}
	}
}

// Resolve records the server id for tempID and replays everything parked on it.
// Resolving a deleted id forgets it and calls the discard hook instead.
// Resolving an already resolved id is a no-op.
func (r *Registry) Resolve(tempID, realID string) {
	r.mu.Lock()
	e, ok := r.entries[tempID]
	if !ok {
		e = &entry{state: Registered}
		r.entries[tempID] = e
	}
	switch e.state {
	case Resolved:
		r.mu.Unlock()
		return
	case Deleted:
		delete(r.entries, tempID)
		discard := r.onDiscard
		r.mu.Unlock()
		if discard != nil {
			discard(tempID, realID)
		}
		return
	}
	e.state = Resolved
	e.realID = realID
	r.mu.Unlock()

	if r.replayer != nil {
		r.replayer.Replay(tempID, realID)
	}
}

// MarkDeleted records that the entity behind tempID was removed locally. Work
// parked on it is dropped. Returns false if the id had already resolved; the
// caller must then delete the real entity instead.
func (r *Registry) MarkDeleted(tempID string) bool {
	r.mu.Lock()
	e, ok := r.entries[tempID]
	if ok && e.state == Resolved {
		r.mu.Unlock()
		return false
	}
	if !ok {
		e = &entry{}
		r.entries[tempID] = e
	}
	e.state = Deleted
	r.mu.Unlock()

	if r.replayer != nil {
		r.replayer.Drop(tempID)
	}
	return true
}

// Abandon forgets a temporary id whose create call failed. Work parked on it is dropped.
func (r *Registry) Abandon(tempID string) {
	r.mu.Lock()
	e, ok := r.entries[tempID]
	if ok && e.state == Resolved {
		r.mu.Unlock()
		return
	}
	delete(r.entries, tempID)
	r.mu.Unlock()

	if r.replayer != nil {
		r.replayer.Drop(tempID)
	}
}

// Park calls enqueue while holding the registry lock if tempID is still
// pending, so parked work cannot miss the replay. If the id is unknown, has
// resolved or has been deleted, enqueue is not called and the state says which.
func (r *Registry) Park(tempID string, enqueue func()) (realID string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tempID]
	if !ok {
		return "", Unknown
	}
	if e.state != Registered {
		return e.realID, e.state
	}
	enqueue()
	return "", Registered
}

// Lookup returns the server id for tempID if it has resolved.
// Non-temporary ids are returned as-is.
func (r *Registry) Lookup(id string) (string, bool) {
	if !IsTemp(id) {
		return id, true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok && e.state == Resolved {
		return e.realID, true
	}
	return "", false
}

// State returns the current state of tempID.
func (r *Registry) State(tempID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[tempID]; ok {
		return e.state
	}
	return Unknown
}
