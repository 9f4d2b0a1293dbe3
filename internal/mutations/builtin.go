package mutations

import "fmt"

// Todo is the element type of the "todos" list used by the reference
// AddTodo/ToggleTodo mutators. It is JSON-serializable like any other
// value a mutator may store.
type Todo struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Add is the reference counter mutator used throughout the spec's
// testable-property scenarios: add(tx, x) sets "value" to its previous
// value (0 if unset) plus x.
func Add(tx Transaction, args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("add: expected exactly 1 argument, got %d", len(args))
	}
	delta, ok := toInt64(args[0])
	if !ok {
		return fmt.Errorf("add: argument must be numeric, got %T", args[0])
	}

	var current int64
	if v, ok := tx.Get("value"); ok {
		current, ok = toInt64(v)
		if !ok {
			return fmt.Errorf("add: existing value is not numeric, got %T", v)
		}
	}
	tx.Set("value", current+delta)
	return nil
}

// AddTodo appends a new, not-done todo under the "todos" key.
func AddTodo(tx Transaction, args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("addTodo: expected exactly 1 argument, got %d", len(args))
	}
	text, ok := args[0].(string)
	if !ok {
		return fmt.Errorf("addTodo: argument must be a string, got %T", args[0])
	}

	existing := todosOf(tx)
	next := make([]Todo, len(existing), len(existing)+1)
	copy(next, existing)
	next = append(next, Todo{Text: text, Done: false})
	tx.Set("todos", next)
	return nil
}

// ToggleTodo flips the Done flag of the todo at the given index.
func ToggleTodo(tx Transaction, args ...any) error {
	if len(args) != 1 {
		return fmt.Errorf("toggleTodo: expected exactly 1 argument, got %d", len(args))
	}
	idx64, ok := toInt64(args[0])
	if !ok {
		return fmt.Errorf("toggleTodo: argument must be numeric, got %T", args[0])
	}
	idx := int(idx64)

	existing := todosOf(tx)
	if idx < 0 || idx >= len(existing) {
		return fmt.Errorf("toggleTodo: index %d out of range (have %d todos)", idx, len(existing))
	}

	next := make([]Todo, len(existing))
	copy(next, existing)
	next[idx].Done = !next[idx].Done
	tx.Set("todos", next)
	return nil
}

// todosOf reads the "todos" key tolerating the handful of shapes a value
// may arrive in: a native []Todo (set by a prior call in this process), a
// []any of map[string]any (after a JSON round trip through a persisted
// patch log), or absent entirely.
func todosOf(tx Transaction) []Todo {
	v, ok := tx.Get("todos")
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case []Todo:
		return t
	case []any:
		out := make([]Todo, 0, len(t))
		for _, item := range t {
			switch m := item.(type) {
			case map[string]any:
				text, _ := m["text"].(string)
				done, _ := m["done"].(bool)
				out = append(out, Todo{Text: text, Done: done})
			case Todo:
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}
