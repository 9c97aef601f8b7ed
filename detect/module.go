package detect

import (
	"context"
	"fmt"
)

// Result resolves an IsAudioDeviceConnected call.
type Result struct {
	Record Record
	Err    error
}

// Module is the caller-facing surface of headphone detection. A nil or
// zero Module is not linked and rejects every call with ErrNotLinked.
type Module struct {
	notifier *Notifier
}

func NewModule(n *Notifier) *Module {
	return &Module{notifier: n}
}

func (m *Module) linked() bool {
	return m != nil && m.notifier != nil
}

// IsAudioDeviceConnected resolves with the current record. The returned
// channel receives exactly one Result; callers that lose interest may
// drop it. A nil ctx is treated as context.Background.
func (m *Module) IsAudioDeviceConnected(ctx context.Context) <-chan Result {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan Result, 1)
	switch {
	case !m.linked():
		out <- Result{Err: ErrNotLinked}
	case ctx.Err() != nil:
		out <- Result{Err: ctx.Err()}
	default:
		out <- Result{Record: m.notifier.Query()}
	}
	return out
}

// OnAudioDeviceChanged registers fn for every connectivity publish.
func (m *Module) OnAudioDeviceChanged(fn func(Record)) (*Subscription, error) {
	return m.AddListener(AudioDeviceChangedNotification, fn)
}

// AddListener is the generic emitter entry point. The only event name it
// accepts is AudioDeviceChangedNotification.
func (m *Module) AddListener(event string, fn func(Record)) (*Subscription, error) {
	if !m.linked() {
		return nil, ErrNotLinked
	}
	if event != AudioDeviceChangedNotification {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if fn == nil {
		return nil, fmt.Errorf("detect: nil listener for %s", event)
	}
	return m.notifier.Subscribe(fn), nil
}

// Initialize starts watching when the module is first brought up.
func (m *Module) Initialize() {
	if m.linked() {
		m.notifier.StartWatching()
	}
}

// HostResume re-registers for hardware events after HostPause.
func (m *Module) HostResume() {
	if m.linked() {
		m.notifier.StartWatching()
	}
}

// HostPause stops watching while the host is suspended.
func (m *Module) HostPause() {
	if m.linked() {
		m.notifier.StopWatching()
	}
}

// HostDestroy stops watching for good. A later HostResume still works.
func (m *Module) HostDestroy() {
	if m.linked() {
		m.notifier.StopWatching()
	}
}

func (m *Module) Notifier() *Notifier {
	if m == nil {
		return nil
	}
	return m.notifier
}
