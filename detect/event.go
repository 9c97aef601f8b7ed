package detect

import "fmt"

// EventKind is a hardware event the notifier reacts to.
type EventKind int

const (
	EventRoutePlug EventKind = iota + 1
	EventRadioStateChanged
	EventConnectionStateChanged
	EventLinkConnected
	EventLinkDisconnected
	EventAudioBecomingNoisy
	EventScoAudioStateUpdated
)

// WatchedEvents is the fixed set of kinds the notifier registers for.
var WatchedEvents = []EventKind{
	EventRoutePlug,
	EventRadioStateChanged,
	EventConnectionStateChanged,
	EventLinkConnected,
	EventLinkDisconnected,
	EventAudioBecomingNoisy,
	EventScoAudioStateUpdated,
}

var eventNames = map[EventKind]string{
	EventRoutePlug:              "route_plug",
	EventRadioStateChanged:      "radio_state_changed",
	EventConnectionStateChanged: "connection_state_changed",
	EventLinkConnected:          "link_connected",
	EventLinkDisconnected:       "link_disconnected",
	EventAudioBecomingNoisy:     "audio_becoming_noisy",
	EventScoAudioStateUpdated:   "sco_audio_state_updated",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one hardware notification. Source identifies the producer for
// logging only; it never reaches listeners.
type Event struct {
	Kind   EventKind
	Source string
}

// EventSource delivers host hardware events. Register starts delivery of
// the given kinds to fn; fn is called for one event at a time.
type EventSource interface {
	Register(kinds []EventKind, fn func(Event)) (Registration, error)
}

// Registration is an active EventSource subscription. After Unregister
// returns nil no further calls are made to the registered function.
type Registration interface {
	Unregister() error
}
