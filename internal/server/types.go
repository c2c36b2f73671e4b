// Package server defines the inbound frame types read from WebSocket clients
// and utility helpers that are reused across client and handler logic.
package server

import (
	"encoding/json"
	"strings"
)

// Inbound event names sent by the browser client.
const (
	inboundMessage         = "message"
	inboundFontChange      = "fontChange"
	inboundFontColorChange = "fontColorChange"
	inboundCode            = "broadcast_code"
)

// Inbound is the JSON frame a client sends: {"event": ..., "data": {...}}.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type messagePayload struct {
	Data *string `json:"data"`
}

// fontPayload and fontColorPayload use pointers so an absent field can fall
// back to the default while an explicit empty string is kept.
type fontPayload struct {
	Font *string `json:"font"`
}

type fontColorPayload struct {
	Color *string `json:"color"`
}

type codePayload struct {
	Code string `json:"code"`
}

func valueOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
