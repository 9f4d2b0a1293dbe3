package main

import "github.com/tanishqk/syncd/internal/mutations"

// demoRegistry builds a fresh registry of the reference mutators, mirroring
// what a client and server in the same deployment would each construct
// independently (spec.md requires identical mutator sets, not a shared one).
func demoRegistry() *mutations.Registry {
	reg := mutations.NewRegistry()
	reg.Register("add", mutations.Add)
	reg.Register("addTodo", mutations.AddTodo)
	reg.Register("toggleTodo", mutations.ToggleTodo)
	return reg
}
