// Package syncutil holds small pieces shared by internal/server and
// internal/client that do not belong to either package's domain logic.
package syncutil

// Dispatcher runs fn at one of the protocol's three suspension points: the
// initial pull, a poke-triggered pull, and the push issued after a local
// mutation. The spec describes these as points where a real client yields
// to the event loop; SyncDispatcher runs fn inline so tests stay
// deterministic, while AsyncDispatcher runs it on its own goroutine to
// match a real client's fire-and-forget behavior.
type Dispatcher func(fn func())

// SyncDispatcher runs fn immediately, on the calling goroutine. It is the
// client's default (the server defaults to AsyncDispatcher): every suspension point resolves before the call that triggered
// it returns, which makes single-threaded test assertions straightforward.
func SyncDispatcher(fn func()) { fn() }

// AsyncDispatcher runs fn on a new goroutine and returns immediately. Use
// this to exercise the protocol's asynchronous, fire-and-forget semantics,
// e.g. a poke that triggers a pull without blocking the caller that sent
// the poke.
func AsyncDispatcher(fn func()) { go fn() }
