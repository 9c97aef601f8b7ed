package main

import "github.com/mil-ad/hpdetect/detect"

const (
	cmdStatus    = "status"
	cmdWatch     = "watch"
	cmdConstants = "constants"
)

// IPCRequest is sent from the CLI client to the daemon.
type IPCRequest struct {
	Command string `json:"command"` // "status" | "watch" | "constants"
}

// IPCResponse is sent from the daemon back to the CLI client. A watch
// stream is a sequence of responses, one per publish.
type IPCResponse struct {
	Record    *detect.Record    `json:"record,omitempty"`
	Event     string            `json:"event,omitempty"`
	State     string            `json:"state,omitempty"` // "watching" | "idle"
	Constants map[string]string `json:"constants,omitempty"`
	Error     string            `json:"error,omitempty"`
}
