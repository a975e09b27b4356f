// Package hotkey registers global playback shortcuts.
package hotkey

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// ErrAccessibility is returned by Start when the process may not observe
// global key events.
var ErrAccessibility = errors.New("hotkey: accessibility permission not granted")

// Actions are the callbacks bound to global shortcuts. Nil actions are not
// registered.
type Actions struct {
	TogglePlay  func()
	SeekBack    func()
	SeekForward func()
	SpeedDown   func()
	SpeedUp     func()
}

// Binding is one key combination and its action.
type Binding struct {
	Name   string
	Keys   []string
	Action func()
}

// String renders the combination, e.g. "ctrl+alt+space".
func (b Binding) String() string {
	return strings.Join(b.Keys, "+")
}

// HotkeyManager owns the global keyboard hook.
type HotkeyManager struct {
	actions Actions

	mu       sync.Mutex
	running  bool
	done     chan struct{}
	statusCb func(granted bool)
}

// NewHotkeyManager creates a manager for actions. Call Start to register.
func NewHotkeyManager(actions Actions) *HotkeyManager {
	return &HotkeyManager{actions: actions}
}

// SetStatusCallback sets a callback invoked with the accessibility
// permission state each time Start checks it.
func (m *HotkeyManager) SetStatusCallback(cb func(granted bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCb = cb
}

// Bindings returns the shortcuts that Start registers.
func (m *HotkeyManager) Bindings() []Binding {
	all := []Binding{
		{"toggle-play", []string{"ctrl", "alt", "space"}, m.actions.TogglePlay},
		{"seek-back", []string{"ctrl", "alt", "left"}, m.actions.SeekBack},
		{"seek-forward", []string{"ctrl", "alt", "right"}, m.actions.SeekForward},
		{"speed-down", []string{"ctrl", "alt", "["}, m.actions.SpeedDown},
		{"speed-up", []string{"ctrl", "alt", "]"}, m.actions.SpeedUp},
	}

	bindings := all[:0]
	for _, b := range all {
		if b.Action != nil {
			bindings = append(bindings, b)
		}
	}
	return bindings
}

// Start registers the shortcuts and starts the event loop.
func (m *HotkeyManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	granted := IsAccessibilityEnabled(true)
	if m.statusCb != nil {
		go m.statusCb(granted)
	}
	if !granted {
		return ErrAccessibility
	}

	for _, b := range m.Bindings() {
		action := b.Action
		name := b.Name
		hook.Register(hook.KeyDown, b.Keys, func(hook.Event) {
			slog.Debug("hotkey", "action", name)
			go action()
		})
	}

	events := hook.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-hook.Process(events)
	}()

	m.done = done
	m.running = true
	slog.Info("hotkeys registered", "count", len(m.Bindings()))
	return nil
}

// Stop ends the event loop.
func (m *HotkeyManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	hook.End()

	select {
	case <-m.done:
	case <-time.After(time.Second):
		slog.Warn("hotkey loop did not exit")
	}
	m.running = false
	m.done = nil
}
