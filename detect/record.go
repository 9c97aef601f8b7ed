// Package detect reduces raw audio-route and Bluetooth signals into a
// two-field headphone connectivity record and publishes a fresh record to
// listeners every time the host reports a relevant hardware event.
package detect

import "errors"

// AudioDeviceChangedNotification names the notification channel on which
// records are published.
const AudioDeviceChangedNotification = "AUDIO_DEVICE_CHANGED_NOTIFICATION"

var (
	// ErrUnsupported is returned by a Platform for a capability the host
	// cannot report.
	ErrUnsupported = errors.New("detect: capability not supported on this host")

	// ErrNotLinked is returned by a Module that has no notifier behind it.
	ErrNotLinked = errors.New("detect: headphone detection is not linked; verify that the hpdetect daemon is installed and running")

	// ErrUnknownEvent is returned by AddListener for an event name other
	// than AudioDeviceChangedNotification.
	ErrUnknownEvent = errors.New("detect: unknown event name")
)

// Record is a snapshot of headphone connectivity.
type Record struct {
	AudioJack bool `json:"audioJack"`
	Bluetooth bool `json:"bluetooth"`
}

// Constants returns the tokens a caller needs to subscribe through a
// generic event emitter.
func Constants() map[string]string {
	return map[string]string{
		AudioDeviceChangedNotification: AudioDeviceChangedNotification,
	}
}
