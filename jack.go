package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/mil-ad/hpdetect/detect"
)

// Linux input event constants from linux/input-event-codes.h.
const (
	evSW = 0x05

	swHeadphoneInsert    = 0x02
	swMicrophoneInsert   = 0x04
	swLineoutInsert      = 0x06
	swJackPhysicalInsert = 0x07
	swMax                = 0x10
)

var jackSwitches = []int{swHeadphoneInsert, swMicrophoneInsert, swLineoutInsert, swJackPhysicalInsert}

func bitSet(bits []byte, n int) bool {
	if n/8 >= len(bits) {
		return false
	}
	return bits[n/8]&(1<<(n%8)) != 0
}

// isJackDevice reports whether an EV_SW capability bitmap covers any
// audio jack switch.
func isJackDevice(swBits []byte) bool {
	for _, sw := range jackSwitches {
		if bitSet(swBits, sw) {
			return true
		}
	}
	return false
}

// jackRoute maps the current switch state of a jack to the route it
// provides. ok is false when nothing output-capable is plugged in.
func jackRoute(state []byte) (t detect.DeviceType, ok bool) {
	hp := bitSet(state, swHeadphoneInsert)
	mic := bitSet(state, swMicrophoneInsert)
	switch {
	case hp && mic:
		return detect.DeviceWiredHeadset, true
	case hp:
		return detect.DeviceWiredHeadphones, true
	case bitSet(state, swLineoutInsert):
		return detect.DeviceLineOut, true
	}
	return detect.DeviceUnknown, false
}

type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// decodeInputEvent reads the type/code/value tail of a struct input_event.
// The leading timeval varies in size by architecture and is skipped.
func decodeInputEvent(b []byte) (inputEvent, bool) {
	if len(b) < 8 {
		return inputEvent{}, false
	}
	tail := b[len(b)-8:]
	return inputEvent{
		Type:  binary.LittleEndian.Uint16(tail[0:2]),
		Code:  binary.LittleEndian.Uint16(tail[2:4]),
		Value: int32(binary.LittleEndian.Uint32(tail[4:8])),
	}, true
}

// jackEvents maps one input event to detect events. Pulling headphones out
// also counts as the audio becoming noisy.
func jackEvents(ev inputEvent) []detect.EventKind {
	if ev.Type != evSW {
		return nil
	}
	isJack := false
	for _, sw := range jackSwitches {
		if int(ev.Code) == sw {
			isJack = true
			break
		}
	}
	if !isJack {
		return nil
	}
	if ev.Code == swHeadphoneInsert && ev.Value == 0 {
		return []detect.EventKind{detect.EventRoutePlug, detect.EventAudioBecomingNoisy}
	}
	return []detect.EventKind{detect.EventRoutePlug}
}

// jackSensor is an evdev node that reports jack switches.
type jackSensor struct {
	path string
}

func isEventNode(name string) bool {
	return strings.HasPrefix(name, "event")
}

// findJacks returns the event devices under dir that isJack accepts.
func findJacks(dir string, isJack func(string) bool) ([]jackSensor, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "event*"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	var out []jackSensor
	for _, p := range paths {
		if isJack(p) {
			out = append(out, jackSensor{path: p})
		}
	}
	return out, nil
}

// jackSet enumerates jack-sensing input devices under dir.
type jackSet struct {
	dir string
	log *slog.Logger
}

func (s *jackSet) routes() ([]detect.DeviceType, error) {
	jacks, err := findJacks(s.dir, isJackPath)
	if err != nil {
		return nil, err
	}
	var out []detect.DeviceType
	for _, j := range jacks {
		t, ok, err := j.route()
		if err != nil {
			if !errors.Is(err, detect.ErrUnsupported) {
				s.log.Warn("read jack state", "device", j.path, "err", err)
			}
			continue
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}
