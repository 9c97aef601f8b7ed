//go:build linux

package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/mil-ad/hpdetect/detect"
)

// inputEventSize is sizeof(struct input_event) on this architecture.
var inputEventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

const (
	iocRead = 2
	swBytes = (swMax + 8) / 8
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

func eviocgbit(ev, size uintptr) uintptr { return ioc(iocRead, 'E', 0x20+ev, size) }

func eviocgsw(size uintptr) uintptr { return ioc(iocRead, 'E', 0x1b, size) }

func ioctlBytes(fd int, req uintptr, buf []byte) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(unsafe.Pointer(&buf[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

// isJackPath reports whether the evdev node at path advertises a jack
// switch. Nodes that cannot be opened or queried are not jacks.
func isJackPath(path string) bool {
	bits, err := readBits(path, eviocgbit(evSW, swBytes))
	if err != nil {
		return false
	}
	return isJackDevice(bits)
}

func readBits(path string, req uintptr) ([]byte, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer unix.Close(fd)

	buf := make([]byte, swBytes)
	if err := ioctlBytes(fd, req, buf); err != nil {
		return nil, fmt.Errorf("ioctl %s: %w", path, err)
	}
	return buf, nil
}

func (j jackSensor) route() (detect.DeviceType, bool, error) {
	state, err := readBits(j.path, eviocgsw(swBytes))
	if err != nil {
		return detect.DeviceUnknown, false, err
	}
	t, ok := jackRoute(state)
	return t, ok, nil
}
