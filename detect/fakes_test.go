package detect

import (
	"errors"
	"io"
	"log/slog"
	"sync"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePlatform is a scripted Platform.
type fakePlatform struct {
	radio     bool
	radioErr  error
	routes    bool
	devices   []DeviceType
	devErr    error
	sco, a2dp bool

	mu          sync.Mutex
	deviceCalls int
	legacyCalls int
}

func (p *fakePlatform) BluetoothEnabled() (bool, error) { return p.radio, p.radioErr }

func (p *fakePlatform) SupportsRouteEnumeration() bool { return p.routes }

func (p *fakePlatform) OutputDevices() ([]DeviceType, error) {
	p.mu.Lock()
	p.deviceCalls++
	p.mu.Unlock()
	return p.devices, p.devErr
}

func (p *fakePlatform) ScoActive() (bool, error) {
	p.mu.Lock()
	p.legacyCalls++
	p.mu.Unlock()
	return p.sco, nil
}

func (p *fakePlatform) A2dpActive() (bool, error) {
	p.mu.Lock()
	p.legacyCalls++
	p.mu.Unlock()
	return p.a2dp, nil
}

func (p *fakePlatform) set(devices ...DeviceType) {
	p.mu.Lock()
	p.devices = devices
	p.mu.Unlock()
}

// fakeSource records registrations and lets tests emit events.
type fakeSource struct {
	mu              sync.Mutex
	registerErr     error
	unregisterErr   error
	registerCalls   int
	unregisterCalls int
	kinds           []EventKind
	handler         func(Event)
}

type fakeRegistration struct{ src *fakeSource }

func (s *fakeSource) Register(kinds []EventKind, fn func(Event)) (Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerCalls++
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	s.kinds = kinds
	s.handler = fn
	return &fakeRegistration{src: s}, nil
}

func (r *fakeRegistration) Unregister() error {
	r.src.mu.Lock()
	defer r.src.mu.Unlock()
	r.src.unregisterCalls++
	if r.src.unregisterErr != nil {
		return r.src.unregisterErr
	}
	r.src.handler = nil
	return nil
}

// emit delivers ev to the current handler, if any. It reports whether a
// handler was registered.
func (s *fakeSource) emit(ev Event) bool {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return false
	}
	h(ev)
	return true
}

func (s *fakeSource) calls() (register, unregister int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCalls, s.unregisterCalls
}

var errBoom = errors.New("boom")
