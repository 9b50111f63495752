// Package telephony covers both sides of the phone leg: the media-stream
// websocket frames and the provider's REST API for call control.
package telephony

import "encoding/json"

// Media-stream frame events.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventStop      = "stop"
)

// Frame is one inbound media-stream envelope.
type Frame struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid,omitempty"`
	Start     *FrameStart `json:"start,omitempty"`
	Media     *FrameMedia `json:"media,omitempty"`
}

// FrameStart carries the identifiers bound at stream start.
type FrameStart struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

// FrameMedia carries one base64 audio payload.
type FrameMedia struct {
	Payload string `json:"payload"`
}

func DecodeFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

type outboundMedia struct {
	Event     string     `json:"event"`
	StreamSid string     `json:"streamSid"`
	Media     FrameMedia `json:"media"`
}

type outboundClear struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}
