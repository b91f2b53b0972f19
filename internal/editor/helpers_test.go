package editor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/adops/internal/catalog"
	"github.com/matthewbaird/adops/internal/composition"
	"github.com/matthewbaird/adops/internal/event"
)

func ptr(s string) *string { return &s }

// sequentialIDs yields kind-1, kind-2, ... across every tree of a manager.
func sequentialIDs() composition.Option {
	var mu sync.Mutex
	n := 0
	return composition.WithIDGenerator(func(kind composition.NodeKind) string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", kind, n)
	})
}

type eventLog struct {
	mu   sync.Mutex
	evts []event.DomainEvent
}

func (l *eventLog) Record(_ context.Context, evt event.DomainEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evts = append(l.evts, evt)
	return nil
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.evts))
	for i, e := range l.evts {
		out[i] = e.EventType
	}
	return out
}

func (l *eventLog) last() event.DomainEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evts[len(l.evts)-1]
}

func seededCatalog(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	f, err := catalog.DefaultFixture()
	require.NoError(t, err)
	c := catalog.NewMemoryCatalog()
	require.NoError(t, c.Seed(context.Background(), f))
	return c
}

type testEnv struct {
	mgr    *Manager
	repo   *MemoryRepository
	events *eventLog
}

func newTestEnv(t *testing.T, tweak ...func(*Config)) *testEnv {
	t.Helper()
	env := &testEnv{repo: NewMemoryRepository(), events: &eventLog{}}
	cfg := Config{
		Catalog:     seededCatalog(t),
		Persister:   env.repo,
		Loader:      env.repo,
		Recorder:    env.events,
		TreeOptions: []composition.Option{sequentialIDs()},
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	env.mgr = NewManager(cfg)
	return env
}
