package ws

import "encoding/json"

// Frame types. Clients send chat and ping; the server answers with the rest.
const (
	FrameChat       = "chat"
	FramePing       = "ping"
	FrameMessage    = "message"
	FrameEscalation = "escalation"
	FrameError      = "error"
	FramePong       = "pong"
)

// Frame is one websocket message in either direction
type Frame struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// ErrorContent is the payload of an error frame
type ErrorContent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encode(frameType string, content any) ([]byte, error) {
	out := struct {
		Type    string `json:"type"`
		Content any    `json:"content,omitempty"`
	}{Type: frameType, Content: content}
	return json.Marshal(out)
}
