package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/godbus/dbus/v5"

	"github.com/mil-ad/hpdetect/detect"
)

// eventSource produces detect events from BlueZ signals, sound device
// nodes and jack switches. bz may be nil.
type eventSource struct {
	bz       *bluez
	soundDir string
	inputDir string
	log      *slog.Logger

	// isJack reports whether an input node carries jack switches. Nil
	// means isJackPath.
	isJack func(path string) bool
}

func (s *eventSource) jackFilter() func(string) bool {
	if s.isJack != nil {
		return s.isJack
	}
	return isJackPath
}

func (s *eventSource) Register(kinds []detect.EventKind, fn func(detect.Event)) (detect.Registration, error) {
	w := &watch{
		src:    s,
		want:   make(map[detect.EventKind]bool, len(kinds)),
		fn:     fn,
		events: make(chan detect.Event, 32),
		done:   make(chan struct{}),
	}
	for _, k := range kinds {
		w.want[k] = true
	}
	if err := w.start(); err != nil {
		w.release()
		return nil, err
	}
	return w, nil
}

// watch is one registration. Producers feed events into a single channel
// drained by one dispatch goroutine, so fn never runs concurrently with
// itself.
type watch struct {
	src  *eventSource
	want map[detect.EventKind]bool
	fn   func(detect.Event)

	events     chan detect.Event
	done       chan struct{}
	producers  sync.WaitGroup
	dispatcher sync.WaitGroup

	rules   []string
	signals chan *dbus.Signal
	fsw     *fsnotify.Watcher

	jacksMu     sync.Mutex
	jacks       []io.Closer
	jacksClosed bool

	mu       sync.Mutex
	released bool
}

func (w *watch) start() error {
	w.dispatcher.Add(1)
	go w.dispatch()

	if bz := w.src.bz; bz != nil {
		for _, rule := range bz.matchRules() {
			if err := bz.conn.BusObject().Call(addMatchCall, 0, rule).Err; err != nil {
				return fmt.Errorf("add match %q: %w", rule, err)
			}
			w.rules = append(w.rules, rule)
		}
		w.signals = make(chan *dbus.Signal, 16)
		bz.conn.Signal(w.signals)
		w.producers.Add(1)
		go w.dbusLoop(bz)
	}

	if err := w.watchDevices(); err != nil {
		w.src.log.Warn("device hot-plug unavailable", "err", err)
	}
	w.openJacks()
	return nil
}

func (w *watch) dispatch() {
	defer w.dispatcher.Done()
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.events:
			w.fn(ev)
		}
	}
}

func (w *watch) emit(kind detect.EventKind, source string) {
	if !w.want[kind] {
		return
	}
	select {
	case w.events <- detect.Event{Kind: kind, Source: source}:
	case <-w.done:
	}
}

func (w *watch) dbusLoop(bz *bluez) {
	defer w.producers.Done()
	for {
		select {
		case <-w.done:
			return
		case sig, ok := <-w.signals:
			if !ok {
				return
			}
			for _, k := range signalEvents(sig, bz.adapter, bz.transportUUID) {
				w.emit(k, string(sig.Path))
			}
		}
	}
}

// watchDevices follows node creation in the sound and input directories.
// A directory that cannot be watched is logged and skipped.
func (w *watch) watchDevices() error {
	var dirs []string
	for _, dir := range []string{w.src.soundDir, w.src.inputDir} {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	if len(dirs) == 0 {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	added := 0
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.src.log.Warn("watch directory", "dir", dir, "err", err)
			continue
		}
		added++
	}
	if added == 0 {
		fsw.Close()
		return errors.New("no directory could be watched")
	}
	w.fsw = fsw
	w.producers.Add(1)
	go w.fsLoop()
	return nil
}

// isPlaybackNode matches ALSA playback PCM and control nodes.
func isPlaybackNode(name string) bool {
	for _, pattern := range []string{"pcmC*D*p", "controlC*"} {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (w *watch) fsLoop() {
	defer w.producers.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleNode(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.src.log.Warn("device watcher", "err", err)
		}
	}
}

func (w *watch) handleNode(ev fsnotify.Event) {
	dir, name := filepath.Dir(ev.Name), filepath.Base(ev.Name)
	switch {
	case w.src.soundDir != "" && dir == filepath.Clean(w.src.soundDir):
		if (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove)) && isPlaybackNode(name) {
			w.emit(detect.EventRoutePlug, ev.Name)
		}
	case w.src.inputDir != "" && dir == filepath.Clean(w.src.inputDir):
		// Removed jack nodes end their reader with a read error.
		if ev.Has(fsnotify.Create) && isEventNode(name) && w.src.jackFilter()(ev.Name) {
			if w.addJack(ev.Name) {
				w.emit(detect.EventRoutePlug, ev.Name)
			}
		}
	}
}

func (w *watch) openJacks() {
	if w.src.inputDir == "" {
		return
	}
	jacks, err := findJacks(w.src.inputDir, w.src.jackFilter())
	if err != nil {
		w.src.log.Warn("find jack devices", "err", err)
		return
	}
	opened := 0
	for _, j := range jacks {
		if w.addJack(j.path) {
			opened++
		}
	}
	w.src.log.Debug("jack devices opened", "count", opened)
}

// addJack starts a reader for the jack node at path. It returns false once
// the watch is released or when the node cannot be opened.
func (w *watch) addJack(path string) bool {
	w.jacksMu.Lock()
	defer w.jacksMu.Unlock()
	if w.jacksClosed {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		w.src.log.Warn("open jack device", "device", path, "err", err)
		return false
	}
	w.jacks = append(w.jacks, f)
	w.producers.Add(1)
	go w.readJack(f, path)
	return true
}

// readJack decodes input events until r fails, which happens when it is
// closed by Unregister.
func (w *watch) readJack(r io.Reader, name string) {
	defer w.producers.Done()
	buf := make([]byte, inputEventSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			select {
			case <-w.done:
			default:
				w.src.log.Warn("jack device read stopped", "device", name, "err", err)
			}
			return
		}
		ev, ok := decodeInputEvent(buf)
		if !ok {
			continue
		}
		for _, k := range jackEvents(ev) {
			w.emit(k, name)
		}
	}
}

// Unregister stops every producer and waits for the dispatcher to exit.
// It must not be called from the registered function.
func (w *watch) Unregister() error {
	return w.release()
}

func (w *watch) release() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	w.released = true

	var errs []error
	if bz := w.src.bz; bz != nil {
		for _, rule := range w.rules {
			if err := bz.conn.BusObject().Call(delMatchCall, 0, rule).Err; err != nil {
				errs = append(errs, fmt.Errorf("remove match %q: %w", rule, err))
			}
		}
		// Removed before done is closed so the signal loop keeps draining
		// while godbus detaches the channel.
		if w.signals != nil {
			bz.conn.RemoveSignal(w.signals)
		}
	}

	close(w.done)
	if w.fsw != nil {
		if err := w.fsw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watcher: %w", err))
		}
	}
	w.jacksMu.Lock()
	w.jacksClosed = true
	for _, j := range w.jacks {
		j.Close()
	}
	w.jacksMu.Unlock()
	w.producers.Wait()
	w.dispatcher.Wait()
	return errors.Join(errs...)
}
