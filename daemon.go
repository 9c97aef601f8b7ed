package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/mil-ad/hpdetect/detect"
)

// watchBuffer bounds the publishes queued for one watch client. A client
// that falls this far behind is disconnected.
const watchBuffer = 64

type daemon struct {
	module *detect.Module
	log    *slog.Logger
}

func (d *daemon) handleRequest(ctx context.Context, req IPCRequest) IPCResponse {
	switch req.Command {
	case cmdStatus:
		res := <-d.module.IsAudioDeviceConnected(ctx)
		if res.Err != nil {
			return IPCResponse{Error: res.Err.Error()}
		}
		rec := res.Record
		return IPCResponse{Record: &rec, State: d.module.Notifier().State().String()}

	case cmdConstants:
		return IPCResponse{Constants: detect.Constants()}

	default:
		return IPCResponse{Error: fmt.Sprintf("unknown command: %q", req.Command)}
	}
}

func (d *daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	var req IPCRequest
	if err := dec.Decode(&req); err != nil {
		resp := IPCResponse{Error: "invalid request: " + err.Error()}
		json.NewEncoder(conn).Encode(resp)
		return
	}

	if req.Command == cmdWatch {
		d.streamChanges(ctx, conn)
		return
	}

	resp := d.handleRequest(ctx, req)
	json.NewEncoder(conn).Encode(resp)
}

// streamChanges writes one response per publish until the client hangs up,
// ctx ends or the client falls behind.
func (d *daemon) streamChanges(ctx context.Context, conn net.Conn) {
	id := uuid.New()
	log := d.log.With("stream", id.String())

	updates := make(chan detect.Record, watchBuffer)
	overflow := make(chan struct{})
	var overflowed bool
	sub, err := d.module.OnAudioDeviceChanged(func(rec detect.Record) {
		select {
		case updates <- rec:
		default:
			if !overflowed {
				overflowed = true
				close(overflow)
			}
		}
	})
	if err != nil {
		json.NewEncoder(conn).Encode(IPCResponse{Error: err.Error()})
		return
	}
	defer sub.Remove()
	log.Info("watch stream opened")
	defer log.Info("watch stream closed")

	// The client sends nothing after the request; a read returning means
	// it went away.
	gone := make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn)
		close(gone)
	}()

	enc := json.NewEncoder(conn)
	for {
		select {
		case rec := <-updates:
			resp := IPCResponse{Event: detect.AudioDeviceChangedNotification, Record: &rec}
			if err := enc.Encode(resp); err != nil {
				log.Debug("write to watch client", "err", err)
				return
			}
		case <-overflow:
			log.Warn("watch client too slow, dropping stream")
			return
		case <-gone:
			return
		case <-ctx.Done():
			return
		}
	}
}

func runDaemon(cfg Config) error {
	log, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		log.Warn("system bus unavailable, bluetooth detection disabled", "err", err)
		conn = nil
	} else {
		defer conn.Close()
	}

	var bz *bluez
	if conn != nil {
		bz, err = newBluez(conn, cfg.Adapter, cfg.Enumeration, log.With("component", "bluez"))
		if err != nil {
			log.Warn("bluetooth detection disabled", "err", err)
			bz = nil
		}
	}

	platform := &hostPlatform{
		bz: bz,
		wired: []routeSource{
			&jackSet{dir: cfg.InputDir, log: log.With("component", "jack")},
			&cardScanner{dir: cfg.SysfsSoundDir},
		},
		log: log.With("component", "platform"),
	}
	src := &eventSource{
		bz:       bz,
		soundDir: cfg.SoundDir,
		inputDir: cfg.InputDir,
		log:      log.With("component", "events"),
	}
	collector := detect.NewCollector(platform, log.With("component", "collector"))
	notifier := detect.NewNotifier(src, collector, log.With("component", "notifier"))
	module := detect.NewModule(notifier)

	module.Initialize()
	defer module.HostDestroy()
	if notifier.State() != detect.StateWatching {
		log.Warn("not watching for hardware events, status queries still work")
	}

	if cfg.PauseOnSleep && conn != nil {
		sw, err := watchSleep(conn, module, log.With("component", "sleep"))
		if err != nil {
			log.Warn("sleep tracking disabled", "err", err)
		} else {
			defer sw.close()
		}
	}

	sock := cfg.Socket
	os.Remove(sock) // remove stale socket
	ln, err := net.Listen("unix", sock)
	if err != nil {
		return fmt.Errorf("listen %s: %w", sock, err)
	}
	os.Chmod(sock, 0700)
	defer os.Remove(sock)
	defer ln.Close()

	d := &daemon{module: module, log: log.With("component", "ipc")}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		ln.Close()
	}()

	log.Info("listening", "socket", sock)
	for {
		c, err := ln.Accept()
		if err != nil {
			// Listener closed by shutdown goroutine.
			return nil
		}
		go d.handleConn(ctx, c)
	}
}
