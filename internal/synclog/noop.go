package synclog

// noopLogger discards everything. It is useful as a default in tests and in
// any embedder that has no logging story of its own yet.
type noopLogger struct{}

// NoopLogger returns a Logger that discards all messages.
func NoopLogger() Logger { return noopLogger{} }

func (noopLogger) Debug(string, ...any)     {}
func (noopLogger) Info(string, ...any)      {}
func (noopLogger) Warn(string, ...any)      {}
func (noopLogger) Error(string, ...any)     {}
func (n noopLogger) Subspace(string) Logger { return n }
