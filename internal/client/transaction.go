package client

import "github.com/tanishqk/syncd/internal/syncproto"

// transaction is the client-side Transaction (spec §4.1): a read-through
// view of the client's current effective state plus a fresh patch buffer.
// Get prefers the buffer, then the outstanding optimistic patches (newest
// first, matching I1's "newest optimistic record" rule), then the DB
// snapshot; Set only ever writes to the buffer. outstanding is a snapshot
// of the queue at the moment the transaction was built: a new mutation
// must see the cumulative effect of mutations still awaiting
// acknowledgement, or back-to-back local calls like add(2) then add(3)
// would each compute against a stale base.
type transaction struct {
	db          map[string]any
	outstanding []syncproto.Patch // oldest first
	patch       syncproto.Patch
}

func newTransaction(db map[string]any, outstanding []syncproto.Patch) *transaction {
	return &transaction{db: db, outstanding: outstanding, patch: syncproto.Patch{}}
}

func (t *transaction) Get(key string) (any, bool) {
	if v, ok := t.patch[key]; ok {
		return v, true
	}
	for i := len(t.outstanding) - 1; i >= 0; i-- {
		if v, ok := t.outstanding[i][key]; ok {
			return v, true
		}
	}
	v, ok := t.db[key]
	return v, ok
}

func (t *transaction) Set(key string, value any) {
	t.patch[key] = value
}
