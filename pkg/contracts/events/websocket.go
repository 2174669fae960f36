// Package events contains the WebSocket message contracts.
package events

import (
	"time"

	"cryptorecs/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeRunStatus carries every import run transition
	MessageTypeRunStatus MessageType = "run_status"

	MessageTypeConnect MessageType = "connect"
	MessageTypeError   MessageType = "error"
)

// WebSocketMessage is the envelope of every message pushed to clients
type WebSocketMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// RunStatusEvent is the payload of a run_status message
type RunStatusEvent struct {
	Run      domain.Run `json:"run"`
	Terminal bool       `json:"terminal"`
}

// NewRunStatusMessage wraps a run snapshot in a message envelope
func NewRunStatusMessage(run domain.Run) WebSocketMessage {
	return WebSocketMessage{
		Type:      MessageTypeRunStatus,
		Timestamp: time.Now().UTC(),
		Data: RunStatusEvent{
			Run:      run,
			Terminal: run.Status.IsTerminal(),
		},
	}
}
