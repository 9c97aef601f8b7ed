//go:build !linux

package main

import "github.com/mil-ad/hpdetect/detect"

var inputEventSize = 24

func isJackPath(string) bool { return false }

func (j jackSensor) route() (detect.DeviceType, bool, error) {
	return detect.DeviceUnknown, false, detect.ErrUnsupported
}
