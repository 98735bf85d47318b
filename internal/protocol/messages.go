package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTranscript MessageType = "client_transcript"
	TypeClientControl    MessageType = "client_control"
	TypeCommandResult    MessageType = "command_result"
	TypeSystemEvent      MessageType = "system_event"
	TypeErrorEvent       MessageType = "error_event"
)

// Command modes carried on a client transcript.
const (
	ModeStructured = "structured"
	ModeFreeform   = "freeform"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientTranscript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Mode      string      `json:"mode,omitempty"`
	TSMs      int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type CommandResult struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Kind      string      `json:"kind"`
	Reply     string      `json:"reply"`
	Tab       string      `json:"tab,omitempty"`
	Warnings  []string    `json:"warnings,omitempty"`
	TSMs      int64       `json:"ts_ms"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTranscript:
		var msg ClientTranscript
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Text == "" {
			return nil, errors.New("invalid client_transcript")
		}
		if msg.Mode != "" && msg.Mode != ModeStructured && msg.Mode != ModeFreeform {
			return nil, fmt.Errorf("invalid client_transcript mode %q", msg.Mode)
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
