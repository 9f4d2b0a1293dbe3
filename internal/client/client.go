// Package client implements the replica half of the sync engine: a local
// database snapshot, an optimistic mutation queue that rebases over fresh
// authoritative state, and key-scoped reactive watchers.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tanishqk/syncd/internal/mutations"
	"github.com/tanishqk/syncd/internal/server"
	"github.com/tanishqk/syncd/internal/synclog"
	"github.com/tanishqk/syncd/internal/syncproto"
	"github.com/tanishqk/syncd/internal/syncutil"
)

// Server is the subset of server.Server a Client talks to. Declaring it
// here rather than depending on the whole concrete type keeps the
// dependency one-directional and makes the client trivially testable
// against a fake.
type Server interface {
	ConnectToClient(h server.ClientHandle) (disconnect func())
	Get(key string) (any, bool)
	Push(ctx context.Context, clientID string, mutations []syncproto.Mutation) error
	Pull(ctx context.Context, clientID string, cookie uint64) (syncproto.PullResponse, error)
}

// optimisticRecord is a pending mutation whose patch is re-derived on every
// rebase until the server acknowledges it (spec.md §3).
type optimisticRecord struct {
	MutationID string
	Name       string
	Args       []any
	Patch      syncproto.Patch
}

type subscription struct {
	id int64
	cb func(any)
}

// Client is a local replica: a database snapshot, an optimistic queue of
// not-yet-acknowledged mutations, and a registry of key-scoped watchers.
// A Client is safe for concurrent use.
type Client struct {
	mu         sync.Mutex
	clientID   string
	conn       Server
	registry   *mutations.Registry
	logger     synclog.Logger
	dispatch   syncutil.Dispatcher
	disconnect func()

	db         map[string]any
	cookie     *uint64
	pullQueued bool
	queue      []optimisticRecord
	subs       map[string][]subscription
	nextSubID  int64
}

// Config configures a Client. ServerConn, ClientID and Registry are
// required.
type Config struct {
	// ServerConn is the server this client talks to.
	ServerConn Server

	// ClientID identifies this client to the server across pushes and
	// pulls. Required, and must be unique per connected client.
	ClientID string

	// Registry supplies the named mutator functions this client can
	// invoke and rebase. Required, and should be the same set of names
	// the server's registry knows, since the server re-executes pushed
	// mutations by name.
	Registry *mutations.Registry

	// Logger receives trace output. Defaults to a no-op logger.
	Logger synclog.Logger

	// Dispatch runs the client's three suspension points: the initial
	// pull, a poke-triggered pull, and the push issued after a local
	// mutation. Defaults to syncutil.SyncDispatcher, which runs them
	// inline — appropriate for tests and for any caller driving its own
	// event loop explicitly. Pass syncutil.AsyncDispatcher for a client
	// that should not block its caller.
	Dispatch syncutil.Dispatcher
}

// New constructs a Client, registers it with cfg.ServerConn, and schedules
// the initial pull (spec.md §4.4: "Construction schedules an immediate
// pull(clientId) with no cookie").
func New(cfg Config) (*Client, error) {
	if cfg.ServerConn == nil {
		return nil, fmt.Errorf("client: Config.ServerConn is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client: Config.ClientID is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("client: Config.Registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = synclog.NoopLogger()
	}
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = syncutil.SyncDispatcher
	}

	c := &Client{
		clientID: cfg.ClientID,
		conn:     cfg.ServerConn,
		registry: cfg.Registry,
		logger:   logger.Subspace("client").Subspace(cfg.ClientID),
		dispatch: dispatch,
		db:       map[string]any{},
		subs:     map[string][]subscription{},
	}
	c.disconnect = cfg.ServerConn.ConnectToClient(c)

	c.dispatch(func() { c.pullAndHandle(context.Background(), 0) })

	return c, nil
}

// Close disconnects this client from its server. It does not discard local
// state; Get and watchers continue to reflect the last-known view.
func (c *Client) Close() {
	if c.disconnect != nil {
		c.disconnect()
	}
}

// Poke is the inbound notification from the server that there may be news.
// If the initial pull has not yet resolved, the poke is queued rather than
// dropped (spec.md §9's recommended resolution of its own open question)
// and redelivered once that pull completes.
func (c *Client) Poke() {
	c.mu.Lock()
	if c.cookie == nil {
		c.pullQueued = true
		c.mu.Unlock()
		return
	}
	cookie := *c.cookie
	c.mu.Unlock()

	c.dispatch(func() { c.pullAndHandle(context.Background(), cookie) })
}

func (c *Client) pullAndHandle(ctx context.Context, cookie uint64) {
	resp, err := c.conn.Pull(ctx, c.clientID, cookie)
	if err != nil {
		c.logger.Error("pull failed", "err", err)
		return
	}
	c.onPull(resp.Clone())
}

// onPull implements spec.md §4.4's eight-step algorithm.
func (c *Client) onPull(resp syncproto.PullResponse) {
	c.mu.Lock()

	if resp.LastMutationID == nil {
		// Step 1: initial pull.
		for k, v := range resp.Patch {
			c.db[k] = v
		}
		cookie := resp.Cookie
		c.cookie = &cookie
		emitKeys := resp.Patch.Keys()
		requeued := c.pullQueued
		c.pullQueued = false
		c.mu.Unlock()

		c.emitKeys(emitKeys)
		if requeued {
			c.Poke()
		}
		return
	}

	ack := *resp.LastMutationID
	idx := -1
	for i, rec := range c.queue {
		if rec.MutationID == ack {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Step 2, not-found branch: protocol divergence. Log and return.
		c.logger.Warn("ack for unknown mutation id, ignoring", "mutationId", ack)
		c.mu.Unlock()
		return
	}

	// Step 3: overwrite DB keys from the server patch.
	for k, v := range resp.Patch {
		c.db[k] = v
	}

	// Step 4: start the emit-set from the server patch's keys.
	emitSet := map[string]struct{}{}
	for _, k := range resp.Patch.Keys() {
		emitSet[k] = struct{}{}
	}

	// Step 5: rebase every record strictly after the acked one, each
	// against the (now updated) DB alone, per spec — not against its
	// still-pending siblings' patches.
	remaining := c.queue[idx+1:]
	rebased := make([]optimisticRecord, 0, len(remaining))
	for _, rec := range remaining {
		tx := newTransaction(c.db, nil)
		fn, ok := c.registry.Lookup(rec.Name)
		if !ok {
			c.logger.Error("rebase: unknown mutator, dropping record", "name", rec.Name)
			continue
		}
		if err := mutations.Invoke(fn, tx, rec.Args...); err != nil {
			c.logger.Error("rebase: mutator failed, dropping record", "name", rec.Name, "err", err)
			continue
		}
		rec.Patch = tx.patch
		rebased = append(rebased, rec)
		for k := range tx.patch {
			emitSet[k] = struct{}{}
		}
	}

	// Step 6: drop the acked record and everything at or before it.
	c.queue = rebased

	// Step 7: advance the cookie.
	cookie := resp.Cookie
	c.cookie = &cookie

	emitKeys := make([]string, 0, len(emitSet))
	for k := range emitSet {
		emitKeys = append(emitKeys, k)
	}
	c.mu.Unlock()

	// Step 8: emit the effective value for every key in the emit-set.
	c.emitKeys(emitKeys)
}

// Mutate runs the named mutator against the current database, producing a
// patch that is applied optimistically and then pushed to the server.
func (c *Client) Mutate(name string, args ...any) error {
	c.mu.Lock()
	fn, ok := c.registry.Lookup(name)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("client: mutate: %w: %q", mutations.ErrUnknownMutator, name)
	}

	outstanding := make([]syncproto.Patch, len(c.queue))
	for i, rec := range c.queue {
		outstanding[i] = rec.Patch
	}
	tx := newTransaction(c.db, outstanding)
	if err := mutations.Invoke(fn, tx, args...); err != nil {
		c.mu.Unlock()
		return err
	}

	id := uuid.NewString()
	c.queue = append(c.queue, optimisticRecord{
		MutationID: id,
		Name:       name,
		Args:       args,
		Patch:      tx.patch,
	})
	emitKeys := tx.patch.Keys()
	mutation := syncproto.Mutation{ID: id, Name: name, Args: args}
	c.mu.Unlock()

	c.emitKeys(emitKeys)

	c.dispatch(func() {
		if err := c.conn.Push(context.Background(), c.clientID, []syncproto.Mutation{mutation.Clone()}); err != nil {
			c.logger.Error("push failed", "err", err)
		}
	})
	return nil
}

// Get returns the effective value for key: the value from the newest
// optimistic record whose patch contains it, otherwise the DB's value,
// otherwise false (spec.md invariant I1).
func (c *Client) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Client) getLocked(key string) (any, bool) {
	for i := len(c.queue) - 1; i >= 0; i-- {
		if v, ok := c.queue[i].Patch[key]; ok {
			return v, true
		}
	}
	if v, ok := c.db[key]; ok {
		return v, true
	}
	return nil, false
}

// Watch registers cb to be called with key's effective value whenever it
// changes. Multiple callbacks per key fire in registration order. The
// returned unsubscribe function removes exactly this registration;
// calling it more than once is a no-op. Watch does not deliver an initial
// value — callers that want one should call Get themselves.
func (c *Client) Watch(key string, cb func(any)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[key] = append(c.subs[key], subscription{id: id, cb: cb})
	c.mu.Unlock()

	removed := false
	return func() {
		if removed {
			return
		}
		removed = true
		c.mu.Lock()
		defer c.mu.Unlock()
		list := c.subs[key]
		for i, s := range list {
			if s.id == id {
				c.subs[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// emitKeys fires every subscriber of every key in keys with that key's
// current effective value.
func (c *Client) emitKeys(keys []string) {
	for _, k := range keys {
		v, _ := c.Get(k)

		c.mu.Lock()
		subs := append([]subscription(nil), c.subs[k]...)
		c.mu.Unlock()

		for _, s := range subs {
			s.cb(v)
		}
	}
}
