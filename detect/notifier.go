package detect

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// State is the watch state of a Notifier.
type State int

const (
	StateIdle State = iota
	StateWatching
)

func (s State) String() string {
	if s == StateWatching {
		return "watching"
	}
	return "idle"
}

// Notifier turns host hardware events into published Records.
//
// Every delivered event triggers one recomputation and one publish, even
// when the record is unchanged.
type Notifier struct {
	source    EventSource
	collector *Collector
	log       *slog.Logger

	// watchMu serializes StartWatching and StopWatching. It is never held
	// together with mu while calling into the event source.
	watchMu sync.Mutex

	mu     sync.Mutex
	state  State
	reg    Registration
	epoch  uint64
	nextID uint64
	subs   []*Subscription
}

func NewNotifier(src EventSource, c *Collector, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{source: src, collector: c, log: log}
}

// StartWatching registers with the event source. Calling it while already
// watching does nothing. A registration failure is logged and leaves the
// notifier idle.
func (n *Notifier) StartWatching() {
	n.watchMu.Lock()
	defer n.watchMu.Unlock()

	n.mu.Lock()
	if n.state == StateWatching {
		n.mu.Unlock()
		n.log.Debug("already watching, skipping registration")
		return
	}
	n.epoch++
	epoch := n.epoch
	n.mu.Unlock()

	n.log.Debug("registering for hardware events", "kinds", len(WatchedEvents))
	reg, err := n.source.Register(WatchedEvents, func(ev Event) { n.handle(epoch, ev) })
	if err != nil {
		n.log.Error("register event source", "err", err)
		return
	}

	n.mu.Lock()
	n.state = StateWatching
	n.reg = reg
	n.mu.Unlock()
	n.log.Info("watching audio devices")
}

// StopWatching releases the event source registration. It does nothing
// when idle. An unregistration failure is logged and the notifier keeps
// watching.
func (n *Notifier) StopWatching() {
	n.watchMu.Lock()
	defer n.watchMu.Unlock()

	n.mu.Lock()
	if n.state == StateIdle {
		n.mu.Unlock()
		n.log.Debug("not watching, nothing to unregister")
		return
	}
	reg := n.reg
	n.mu.Unlock()

	if err := reg.Unregister(); err != nil {
		n.log.Error("unregister event source", "err", err)
		return
	}

	n.mu.Lock()
	n.state = StateIdle
	n.reg = nil
	n.epoch++
	n.mu.Unlock()
	n.log.Info("stopped watching audio devices")
}

func (n *Notifier) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Query computes the current record. It does not touch subscriptions.
func (n *Notifier) Query() Record {
	return n.collector.Compute()
}

// Subscribe registers fn for every publish until the returned
// subscription is removed.
func (n *Notifier) Subscribe(fn func(Record)) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	s := &Subscription{id: n.nextID, fn: fn, n: n}
	n.subs = append(n.subs, s)
	return s
}

// Listeners returns the number of active subscriptions.
func (n *Notifier) Listeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Notifier) handle(epoch uint64, ev Event) {
	n.mu.Lock()
	stale := epoch != n.epoch
	n.mu.Unlock()
	if stale {
		n.log.Debug("dropping event from stale registration", "kind", ev.Kind)
		return
	}

	n.log.Debug("received hardware event", "kind", ev.Kind, "source", ev.Source)
	rec := n.collector.Compute()
	n.publish(rec)
}

func (n *Notifier) publish(rec Record) {
	n.mu.Lock()
	snapshot := make([]*Subscription, len(n.subs))
	copy(snapshot, n.subs)
	n.mu.Unlock()

	n.log.Debug("publishing", "event", AudioDeviceChangedNotification,
		"audioJack", rec.AudioJack, "bluetooth", rec.Bluetooth, "listeners", len(snapshot))
	for _, s := range snapshot {
		if s.removed.Load() {
			continue
		}
		s.fn(rec)
	}
}

func (n *Notifier) remove(s *Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, cur := range n.subs {
		if cur == s {
			n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
			return
		}
	}
}

// Subscription is one registered listener.
type Subscription struct {
	id      uint64
	fn      func(Record)
	n       *Notifier
	removed atomic.Bool
}

func (s *Subscription) ID() uint64 { return s.id }

// Remove detaches the listener. Calling it more than once is harmless.
func (s *Subscription) Remove() {
	if s.removed.Swap(true) {
		return
	}
	s.n.remove(s)
}

// Active reports whether the listener still receives publishes.
func (s *Subscription) Active() bool {
	return !s.removed.Load()
}
