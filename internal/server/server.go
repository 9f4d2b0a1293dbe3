// Package server implements the authoritative half of the sync engine: an
// append-only patch log, per-client last-mutation acknowledgement, and
// poke fan-out to connected clients.
package server

import (
	"context"
	"fmt"
	"sync"

	mutationspkg "github.com/tanishqk/syncd/internal/mutations"
	"github.com/tanishqk/syncd/internal/patchlog"
	"github.com/tanishqk/syncd/internal/synclog"
	"github.com/tanishqk/syncd/internal/syncproto"
	"github.com/tanishqk/syncd/internal/syncutil"
)

// ClientHandle is how the server reaches a connected client to tell it
// there may be news. Poke carries no payload; the client is expected to
// respond by pulling.
type ClientHandle interface {
	Poke()
}

// Server is the authoritative log of patches, the per-client
// last-mutation-id table, and the registry of connected client handles.
// A Server is safe for concurrent use.
type Server struct {
	mu             sync.Mutex
	log            []syncproto.Patch
	lastMutationID map[string]string
	handles        map[uint64]ClientHandle
	nextHandleID   uint64

	registry *mutationspkg.Registry
	store    patchlog.Store
	logger   synclog.Logger
	dispatch syncutil.Dispatcher
}

// Config configures a Server. Registry is required; everything else has a
// sensible zero-dependency default.
type Config struct {
	// Registry supplies the named mutator functions this server executes
	// on push. Required.
	Registry *mutationspkg.Registry

	// Store optionally persists the patch log. Defaults to an in-memory
	// store (spec.md §6: "an implementation may persist the server patch
	// log").
	Store patchlog.Store

	// Logger receives trace output. Defaults to a no-op logger.
	Logger synclog.Logger

	// Dispatch runs each connected handle's Poke call. Defaults to
	// syncutil.AsyncDispatcher, matching spec.md §4.3's "the poke is
	// fire-and-forget."
	Dispatch syncutil.Dispatcher
}

// New constructs a Server. It loads any existing patches from cfg.Store
// before returning, so a restarted server resumes at its prior version.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("server: Config.Registry is required")
	}
	store := cfg.Store
	if store == nil {
		store = patchlog.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = synclog.NoopLogger()
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = syncutil.AsyncDispatcher
	}

	existing, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("server: load patch log: %w", err)
	}

	return &Server{
		log:            existing,
		lastMutationID: map[string]string{},
		handles:        map[uint64]ClientHandle{},
		registry:       cfg.Registry,
		store:          store,
		logger:         logger.Subspace("server"),
		dispatch:       dispatch,
	}, nil
}

// ConnectToClient registers h so it receives pokes after future pushes.
// The returned disconnect function removes it; calling disconnect more
// than once, or on a handle already removed, is a no-op.
func (s *Server) ConnectToClient(h ClientHandle) (disconnect func()) {
	s.mu.Lock()
	id := s.nextHandleID
	s.nextHandleID++
	s.handles[id] = h
	s.mu.Unlock()

	removed := false
	return func() {
		if removed {
			return
		}
		removed = true
		s.mu.Lock()
		delete(s.handles, id)
		s.mu.Unlock()
	}
}

// Get scans the log from newest to oldest and returns the first patch
// containing key.
func (s *Server) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(key)
}

func (s *Server) getLocked(key string) (any, bool) {
	for i := len(s.log) - 1; i >= 0; i-- {
		if v, ok := s.log[i][key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Push runs every mutation in the batch, in order, against one shared
// server transaction (spec.md §4.3: "a single server transaction"), then
// appends the accumulated patch to the log as one atomic step — one push
// produces exactly one log entry, regardless of batch size (spec.md §3:
// "Patch at index i is the result of push #i+1"). It records the id of
// the batch's last mutation as clientID's pending ack and pokes every
// connected handle.
//
// An unknown mutator name anywhere in the batch aborts the whole push
// before any mutator runs or any patch is appended — spec.md §7 treats an
// unknown name as a programming error, and a partially-applied batch would
// leave the log in a state no single client intended.
func (s *Server) Push(ctx context.Context, clientID string, mutations []syncproto.Mutation) error {
	if len(mutations) == 0 {
		return fmt.Errorf("server: push: mutation list must not be empty")
	}

	s.mu.Lock()

	for _, m := range mutations {
		if _, ok := s.registry.Lookup(m.Name); !ok {
			s.mu.Unlock()
			return fmt.Errorf("server: push: %w: %q", mutationspkg.ErrUnknownMutator, m.Name)
		}
	}

	tx := newTransaction(s.log)
	for _, m := range mutations {
		fn, _ := s.registry.Lookup(m.Name)
		before := tx.patch.Clone()
		if err := mutationspkg.Invoke(fn, tx, m.Args...); err != nil {
			tx.patch = before
			s.logger.Error("mutator failed during push, skipping", "mutation", m.Name, "clientID", clientID, "err", err)
			continue
		}
	}

	s.log = append(s.log, tx.patch)
	if err := s.store.Append(tx.patch); err != nil {
		s.logger.Error("failed to persist patch", "err", err)
	}

	s.lastMutationID[clientID] = mutations[len(mutations)-1].ID

	handles := make([]ClientHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}

	// The poke fan-out happens after the lock is released: a poke may
	// synchronously trigger a pull back into this server (e.g. under a
	// synchronous Dispatcher in tests), and Pull takes the same lock.
	s.mu.Unlock()

	for _, h := range handles {
		handle := h
		s.dispatch(func() { handle.Poke() })
	}

	return nil
}

// Pull returns the patches the client has not yet seen, merged into one,
// plus the ack of the client's last pushed mutation if one is pending.
// A cookie greater than the server's current version is clamped to the
// current version, yielding an empty patch rather than an error.
func (s *Server) Pull(ctx context.Context, clientID string, cookie uint64) (syncproto.PullResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := uint64(len(s.log))
	if cookie > version {
		cookie = version
	}

	merged := syncproto.MergePatches(s.log[cookie:])

	resp := syncproto.PullResponse{
		Cookie: version,
		Patch:  merged.Clone(),
	}
	if mutationID, ok := s.lastMutationID[clientID]; ok {
		resp.LastMutationID = &mutationID
		delete(s.lastMutationID, clientID)
	}
	return resp, nil
}
