// Package syncproto defines the wire-shaped messages exchanged between a
// client and a server: patches, mutations and pull responses. Every type
// here carries a Clone method so that values crossing the client/server
// boundary are copied rather than aliased, per the value-copy requirement
// of the replication protocol.
package syncproto

// Patch is a set of writes produced by a single mutation, or the merge of
// several. The absence of a key means "no change" — there is no delete
// sentinel.
type Patch map[string]any

// Clone returns a deep-enough copy of p: the top-level map is always
// copied, and any nested map[string]any or []any values are copied
// recursively. Other concrete value types (numbers, strings, structs a
// mutator chose to store) are copied by reference, on the assumption that
// mutators never mutate a value returned from Get in place — they build
// and Set a new value instead (see the mutations package).
func (p Patch) Clone() Patch {
	if p == nil {
		return nil
	}
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge applies src on top of p in place, newest-last-wins, and returns p
// for chaining.
func (p Patch) Merge(src Patch) Patch {
	for k, v := range src {
		p[k] = v
	}
	return p
}

// Keys returns the keys present in p, in no particular order.
func (p Patch) Keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

// MergePatches merges a sequence of patches left-to-right, newest-last
// wins, into a single fresh Patch.
func MergePatches(patches []Patch) Patch {
	out := Patch{}
	for _, p := range patches {
		out.Merge(p)
	}
	return out
}
