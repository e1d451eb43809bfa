// Package access reveals the hidden back-office entry point after a secret gesture.
//
// The elevated flag only toggles navigation visibility. Admin routes still
// require an authenticated administrator.
package access

import (
	"strconv"
	"strings"
	"sync"
)

// Session keys written by the detector.
const (
	KeyElevated = "access.elevated"
	KeyWindow   = "access.window"
	KeyClicks   = "access.clicks"
)

const windowSeparator = "\x1f"

// Defaults applied when no option overrides them.
var (
	DefaultSequence       = []string{"a", "d", "m", "n"}
	DefaultChord          = "ctrl+shift+a"
	DefaultClickThreshold = 5
	DefaultClickTarget    = "logo"
)

// Trigger names the gesture that elevated a session.
type Trigger string

const (
	TriggerSequence Trigger = "sequence"
	TriggerChord    Trigger = "chord"
	TriggerClicks   Trigger = "clicks"
)

// SessionStore persists values for the lifetime of one browser session.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStore is a SessionStore backed by a map.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements SessionStore.
func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok
}

// Set implements SessionStore.
func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// KeyEvent is a single keystroke with its modifier state.
type KeyEvent struct {
	Key   string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// State is a point-in-time view of the detector.
type State struct {
	Elevated   bool
	Window     []string
	ClickCount int
}

// Option customises a Detector.
type Option func(*Detector)

// WithSequence sets the key sequence that elevates the session.
func WithSequence(keys ...string) Option {
	return func(d *Detector) {
		seq := make([]string, 0, len(keys))
		for _, key := range keys {
			if normalized := normalizeKey(key); normalized != "" {
				seq = append(seq, normalized)
			}
		}
		if len(seq) > 0 {
			d.sequence = seq
		}
	}
}

// WithChord sets the modifier chord, written like "ctrl+shift+a".
func WithChord(notation string) Option {
	return func(d *Detector) {
		if chord, ok := ParseChord(notation); ok {
			d.chord = chord
		}
	}
}

// WithClickThreshold sets how many clicks on the target elevate the session.
func WithClickThreshold(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.threshold = n
		}
	}
}

// WithClickTarget sets the element identifier whose clicks are counted.
func WithClickTarget(target string) Option {
	return func(d *Detector) {
		if trimmed := strings.TrimSpace(target); trimmed != "" {
			d.target = trimmed
		}
	}
}

// WithOnElevate registers a hook invoked once when the session becomes elevated.
func WithOnElevate(fn func(Trigger)) Option {
	return func(d *Detector) {
		d.onElevate = fn
	}
}

// Detector watches key and click input for the unlock gestures.
type Detector struct {
	mu        sync.Mutex
	store     SessionStore
	sequence  []string
	chord     Chord
	threshold int
	target    string
	onElevate func(Trigger)

	elevated bool
	window   []string
	clicks   int
}

// NewDetector builds a detector and restores any state found in store.
func NewDetector(store SessionStore, opts ...Option) *Detector {
	if store == nil {
		store = NewMemoryStore()
	}
	chord, _ := ParseChord(DefaultChord)
	d := &Detector{
		store:     store,
		sequence:  append([]string(nil), DefaultSequence...),
		chord:     chord,
		threshold: DefaultClickThreshold,
		target:    DefaultClickTarget,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.restore()
	return d
}

func (d *Detector) restore() {
	if value, ok := d.store.Get(KeyElevated); ok && value == "true" {
		d.elevated = true
	}
	if value, ok := d.store.Get(KeyWindow); ok && value != "" {
		keys := strings.Split(value, windowSeparator)
		if len(keys) > len(d.sequence) {
			keys = keys[len(keys)-len(d.sequence):]
		}
		d.window = keys
	}
	if value, ok := d.store.Get(KeyClicks); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 && n < d.threshold {
			d.clicks = n
		}
	}
}

// IsElevated reports whether the hidden entry point should be shown.
func (d *Detector) IsElevated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elevated
}

// Snapshot returns a copy of the detector state.
func (d *Detector) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return State{
		Elevated:   d.elevated,
		Window:     append([]string(nil), d.window...),
		ClickCount: d.clicks,
	}
}

// Key feeds a keystroke into the sequence and chord triggers. It returns true
// when the event matched the chord and the default action should be suppressed.
func (d *Detector) Key(ev KeyEvent) bool {
	key := normalizeKey(ev.Key)
	if key == "" || isModifier(key) {
		return false
	}

	d.mu.Lock()
	var fired Trigger
	handled := d.chord.Matches(ev)
	if handled {
		fired = d.elevateLocked(TriggerChord)
	}

	d.window = append(d.window, key)
	if extra := len(d.window) - len(d.sequence); extra > 0 {
		d.window = append([]string(nil), d.window[extra:]...)
	}
	d.store.Set(KeyWindow, strings.Join(d.window, windowSeparator))
	if fired == "" && equalKeys(d.window, d.sequence) {
		fired = d.elevateLocked(TriggerSequence)
	}
	d.mu.Unlock()

	d.notify(fired)
	return handled
}

// Click counts a click on target. Clicks on other elements are ignored.
func (d *Detector) Click(target string) {
	if strings.TrimSpace(target) != d.target {
		return
	}

	d.mu.Lock()
	var fired Trigger
	d.clicks++
	if d.clicks >= d.threshold {
		d.clicks = 0
		fired = d.elevateLocked(TriggerClicks)
	}
	d.store.Set(KeyClicks, strconv.Itoa(d.clicks))
	d.mu.Unlock()

	d.notify(fired)
}

// elevateLocked returns the trigger when this call performed the transition.
func (d *Detector) elevateLocked(trigger Trigger) Trigger {
	if d.elevated {
		return ""
	}
	d.elevated = true
	d.store.Set(KeyElevated, "true")
	return trigger
}

func (d *Detector) notify(trigger Trigger) {
	if trigger == "" || d.onElevate == nil {
		return
	}
	d.onElevate(trigger)
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
