package access

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func typeKeys(d *Detector, keys ...string) {
	for _, key := range keys {
		d.Key(KeyEvent{Key: key})
	}
}

func TestDetectorSequenceElevates(t *testing.T) {
	store := NewMemoryStore()
	d := NewDetector(store)
	require.False(t, d.IsElevated())

	typeKeys(d, "x", "A", "d", "m")
	require.False(t, d.IsElevated())
	typeKeys(d, "n")
	require.True(t, d.IsElevated())

	value, ok := store.Get(KeyElevated)
	require.True(t, ok)
	require.Equal(t, "true", value)
}

func TestDetectorSequenceWrongOrder(t *testing.T) {
	d := NewDetector(NewMemoryStore())
	typeKeys(d, "d", "a", "n", "m")
	require.False(t, d.IsElevated())
	typeKeys(d, "m", "n", "a", "d")
	require.False(t, d.IsElevated())
	require.Len(t, d.Snapshot().Window, 4)
}

func TestDetectorIgnoresModifierAndEmptyKeys(t *testing.T) {
	d := NewDetector(NewMemoryStore())
	typeKeys(d, "a", "Shift", "", "d", "Control", "m", "n")
	require.True(t, d.IsElevated())
}

func TestDetectorChord(t *testing.T) {
	var fired []Trigger
	d := NewDetector(NewMemoryStore(), WithOnElevate(func(trigger Trigger) {
		fired = append(fired, trigger)
	}))

	require.False(t, d.Key(KeyEvent{Key: "a", Ctrl: true}))
	require.False(t, d.IsElevated())

	require.True(t, d.Key(KeyEvent{Key: "A", Ctrl: true, Shift: true}))
	require.True(t, d.IsElevated())

	require.True(t, d.Key(KeyEvent{Key: "A", Ctrl: true, Shift: true}), "chord is still suppressed after elevation")
	require.Equal(t, []Trigger{TriggerChord}, fired)
}

func TestDetectorClicks(t *testing.T) {
	var fired []Trigger
	store := NewMemoryStore()
	d := NewDetector(store, WithOnElevate(func(trigger Trigger) {
		fired = append(fired, trigger)
	}))

	for i := 0; i < 4; i++ {
		d.Click(DefaultClickTarget)
	}
	d.Click("footer")
	require.Equal(t, 4, d.Snapshot().ClickCount, "other elements do not reset the counter")
	require.False(t, d.IsElevated())

	d.Click(DefaultClickTarget)
	state := d.Snapshot()
	require.True(t, state.Elevated)
	require.Equal(t, 0, state.ClickCount)

	d.Click(DefaultClickTarget)
	require.Equal(t, 1, d.Snapshot().ClickCount)
	require.Equal(t, []Trigger{TriggerClicks}, fired)
}

func TestDetectorRestoresSession(t *testing.T) {
	store := NewMemoryStore()
	first := NewDetector(store)
	first.Click(DefaultClickTarget)
	first.Click(DefaultClickTarget)
	typeKeys(first, "a", "d")

	second := NewDetector(store)
	require.False(t, second.IsElevated())
	require.Equal(t, 2, second.Snapshot().ClickCount)
	typeKeys(second, "m", "n")
	require.True(t, second.IsElevated())

	var fired bool
	third := NewDetector(store, WithOnElevate(func(Trigger) { fired = true }))
	require.True(t, third.IsElevated())
	require.False(t, fired)
}

func TestDetectorRejectsSeparatorInKeys(t *testing.T) {
	store := NewMemoryStore()
	first := NewDetector(store)
	typeKeys(first, "a", "d\x1fm", "x\ny", "\t")
	require.Equal(t, []string{"a"}, first.Snapshot().Window)

	second := NewDetector(store)
	require.Equal(t, []string{"a"}, second.Snapshot().Window)
	typeKeys(second, "d", "m", "n")
	require.True(t, second.IsElevated())
}

func TestDetectorConcurrentInput(t *testing.T) {
	store := NewMemoryStore()
	var mu sync.Mutex
	var fired []Trigger
	d := NewDetector(store, WithOnElevate(func(trigger Trigger) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, trigger)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Key(KeyEvent{Key: fmt.Sprintf("k%d", (i+j)%3)})
				_ = d.Snapshot()
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.Click(DefaultClickTarget)
				_ = d.IsElevated()
			}
		}()
	}
	wg.Wait()

	require.True(t, d.IsElevated())
	require.Len(t, d.Snapshot().Window, 4)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Trigger{TriggerClicks}, fired)

	value, ok := store.Get(KeyElevated)
	require.True(t, ok)
	require.Equal(t, "true", value)
}

func TestDetectorOptions(t *testing.T) {
	d := NewDetector(nil,
		WithSequence("up", "up", "down"),
		WithChord("alt+k"),
		WithClickThreshold(2),
		WithClickTarget("badge"),
	)
	typeKeys(d, "ArrowLeft", "up", "up", "down")
	require.True(t, d.IsElevated())

	d = NewDetector(nil, WithChord("alt+k"))
	require.False(t, d.Key(KeyEvent{Key: "a", Ctrl: true, Shift: true}))
	require.True(t, d.Key(KeyEvent{Key: "k", Alt: true}))

	d = NewDetector(nil, WithClickThreshold(2), WithClickTarget("badge"))
	d.Click("logo")
	d.Click("badge")
	d.Click("badge")
	require.True(t, d.IsElevated())
}

func TestParseChord(t *testing.T) {
	chord, ok := ParseChord("Ctrl+Shift+A")
	require.True(t, ok)
	require.Equal(t, Chord{Ctrl: true, Shift: true, Letter: "a"}, chord)
	require.Equal(t, "ctrl+shift+a", chord.String())

	for _, bad := range []string{"", "a", "ctrl+", "ctrl+ab", "ctrl+a+b"} {
		_, ok := ParseChord(bad)
		require.False(t, ok, bad)
	}
}
