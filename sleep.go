package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/mil-ad/hpdetect/detect"
)

const (
	login1Name   = "org.freedesktop.login1"
	login1Iface  = "org.freedesktop.login1.Manager"
	sleepSignal  = login1Iface + ".PrepareForSleep"
	sleepRule    = "type='signal',sender='" + login1Name + "',interface='" + login1Iface + "',member='PrepareForSleep'"
	addMatchCall = "org.freedesktop.DBus.AddMatch"
	delMatchCall = "org.freedesktop.DBus.RemoveMatch"
)

// sleepWatcher pauses the module while the machine suspends and resumes
// it on wake-up.
type sleepWatcher struct {
	conn   *dbus.Conn
	module *detect.Module
	log    *slog.Logger

	signals     chan *dbus.Signal
	transitions chan bool
	done        chan struct{}
	wg          sync.WaitGroup
}

func watchSleep(conn *dbus.Conn, m *detect.Module, log *slog.Logger) (*sleepWatcher, error) {
	if err := conn.BusObject().Call(addMatchCall, 0, sleepRule).Err; err != nil {
		return nil, fmt.Errorf("add sleep match: %w", err)
	}
	s := newSleepWatcher(m, log)
	s.conn = conn
	conn.Signal(s.signals)
	s.start()
	return s, nil
}

// newSleepWatcher builds a watcher fed from s.signals. It has no bus
// attached until watchSleep subscribes one.
func newSleepWatcher(m *detect.Module, log *slog.Logger) *sleepWatcher {
	return &sleepWatcher{
		module:      m,
		log:         log,
		signals:     make(chan *dbus.Signal, 16),
		transitions: make(chan bool, 4),
		done:        make(chan struct{}),
	}
}

func (s *sleepWatcher) start() {
	s.wg.Add(2)
	go s.readSignals()
	go s.apply()
}

// readSignals only forwards; the module transitions run on apply so this
// loop keeps draining godbus while a pause unregisters other channels.
func (s *sleepWatcher) readSignals() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.signals:
			if sig == nil || sig.Name != sleepSignal || len(sig.Body) < 1 {
				continue
			}
			sleeping, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			select {
			case s.transitions <- sleeping:
			case <-s.done:
				return
			}
		}
	}
}

func (s *sleepWatcher) apply() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case sleeping := <-s.transitions:
			if sleeping {
				s.log.Info("system going to sleep, pausing")
				s.module.HostPause()
			} else {
				s.log.Info("system resumed")
				s.module.HostResume()
			}
		}
	}
}

func (s *sleepWatcher) close() {
	if s.conn != nil {
		if err := s.conn.BusObject().Call(delMatchCall, 0, sleepRule).Err; err != nil {
			s.log.Warn("remove sleep match", "err", err)
		}
		s.conn.RemoveSignal(s.signals)
	}
	close(s.done)
	s.wg.Wait()
}
