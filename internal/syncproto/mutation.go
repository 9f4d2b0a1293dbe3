package syncproto

// Mutation is a named, deterministic operation submitted by a client: the
// mutator name (Name), its arguments (Args), and the opaque id the client
// minted for this invocation (ID).
type Mutation struct {
	ID   string `json:"mutationId"`
	Name string `json:"key"`
	Args []any  `json:"args,omitempty"`
}

// Clone returns a copy of m with its Args slice and any container-typed
// argument copied, so the caller can safely mutate its own copy.
func (m Mutation) Clone() Mutation {
	out := m
	if m.Args != nil {
		out.Args = make([]any, len(m.Args))
		for i, a := range m.Args {
			out.Args[i] = cloneValue(a)
		}
	}
	return out
}

// PullResponse is returned by Server.Pull. LastMutationID is nil unless
// the server has a pending acknowledgement for the requesting client,
// per the consume-on-read semantics of the last-mutation-id table.
type PullResponse struct {
	Cookie         uint64  `json:"cookie"`
	Patch          Patch   `json:"patch"`
	LastMutationID *string `json:"lastMutationId,omitempty"`
}

// Clone returns a deep copy of r.
func (r PullResponse) Clone() PullResponse {
	out := PullResponse{Cookie: r.Cookie, Patch: r.Patch.Clone()}
	if r.LastMutationID != nil {
		id := *r.LastMutationID
		out.LastMutationID = &id
	}
	return out
}
