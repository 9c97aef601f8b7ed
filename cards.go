package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mil-ad/hpdetect/detect"
)

// cardScanner classifies ALSA sound cards found in sysfs.
type cardScanner struct {
	dir string
}

func (s *cardScanner) routes() ([]detect.DeviceType, error) {
	cards, err := filepath.Glob(filepath.Join(s.dir, "card*"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.dir, err)
	}
	var out []detect.DeviceType
	for _, card := range cards {
		out = append(out, classifyCard(card))
	}
	return out, nil
}

// hasPlayback reports whether the card exposes a playback PCM. Capture-only
// cards such as webcam microphones are not output routes.
func hasPlayback(card string) bool {
	pcms, _ := filepath.Glob(filepath.Join(card, "pcmC*D*p"))
	return len(pcms) > 0
}

// classifyCard treats any playback card behind a USB bus as a USB headset,
// which is what a USB audio device plugged into a desktop almost always is.
func classifyCard(card string) detect.DeviceType {
	if !hasPlayback(card) {
		return detect.DeviceUnknown
	}
	path := card
	if resolved, err := filepath.EvalSymlinks(filepath.Join(card, "device")); err == nil {
		path = resolved
	} else if resolved, err := filepath.EvalSymlinks(card); err == nil {
		path = resolved
	}
	if strings.Contains(path, "/usb") {
		return detect.DeviceUSBHeadset
	}

	id, _ := os.ReadFile(filepath.Join(card, "id"))
	if strings.Contains(strings.ToUpper(string(id)), "HDMI") {
		return detect.DeviceHDMI
	}
	return detect.DeviceBuiltinSpeaker
}
