package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/mil-ad/hpdetect/detect"
)

func ipcDial(ctx context.Context, sock string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", sock)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w (is `hpdetect daemon` running?)", err)
	}
	return conn, nil
}

func ipcCall(ctx context.Context, sock string, req IPCRequest) (IPCResponse, error) {
	conn, err := ipcDial(ctx, sock)
	if err != nil {
		return IPCResponse{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// queryConnectivity asks the daemon for the current record.
func queryConnectivity(ctx context.Context, sock string) (detect.Record, error) {
	resp, err := ipcCall(ctx, sock, IPCRequest{Command: cmdStatus})
	if err != nil {
		return detect.Record{}, err
	}
	if resp.Record == nil {
		return detect.Record{}, errors.New("daemon returned no record")
	}
	return *resp.Record, nil
}

// watchConnectivity calls fn for every record the daemon publishes until
// ctx ends or the daemon closes the stream.
func watchConnectivity(ctx context.Context, sock string, fn func(detect.Record)) error {
	conn, err := ipcDial(ctx, sock)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := json.NewEncoder(conn).Encode(IPCRequest{Command: cmdWatch}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	dec := json.NewDecoder(conn)
	for {
		var resp IPCResponse
		if err := dec.Decode(&resp); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if resp.Error != "" {
			return errors.New(resp.Error)
		}
		if resp.Event == detect.AudioDeviceChangedNotification && resp.Record != nil {
			fn(*resp.Record)
		}
	}
}

func runStatus(cfg Config) error {
	resp, err := ipcCall(context.Background(), cfg.Socket, IPCRequest{Command: cmdStatus})
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}

func runWatch(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	return watchConnectivity(ctx, cfg.Socket, func(rec detect.Record) {
		enc.Encode(rec)
	})
}

func runConstants(cfg Config) error {
	resp, err := ipcCall(context.Background(), cfg.Socket, IPCRequest{Command: cmdConstants})
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(resp.Constants)
}
