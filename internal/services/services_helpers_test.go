package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/repositories/memory"
)

var testNow = time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func seededRegistry(t *testing.T) *memory.Registry {
	t.Helper()
	seed, err := memory.DefaultSeed()
	if err != nil {
		t.Fatalf("default seed: %v", err)
	}
	return memory.NewRegistry(&seed)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, event)
	return "msg-" + event.Type, nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + string(rune('0'+n))
	}
}

func templateIDs(items []Template) []string {
	ids := make([]string, len(items))
	for i, t := range items {
		ids[i] = t.ID
	}
	return ids
}
