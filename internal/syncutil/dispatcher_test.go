package syncutil

import (
	"sync"
	"testing"
)

func TestSyncDispatcherRunsInline(t *testing.T) {
	ran := false
	SyncDispatcher(func() { ran = true })
	if !ran {
		t.Fatalf("expected fn to have run before SyncDispatcher returned")
	}
}

func TestAsyncDispatcherRunsEventually(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	AsyncDispatcher(func() { wg.Done() })
	wg.Wait()
}
