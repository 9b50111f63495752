package telephony

import (
	"sync"

	"github.com/gorilla/websocket"
)

// StreamConn is the outbound side of one media-stream websocket. The
// bridge sends audio and clear frames from the AI-reader goroutine while
// the server goroutine reads, so writes are serialized by a mutex.
type StreamConn struct {
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func NewStreamConn(ws *websocket.Conn) *StreamConn {
	return &StreamConn{ws: ws}
}

func (c *StreamConn) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// SendMedia relays one base64 audio payload to the caller.
func (c *StreamConn) SendMedia(streamSid, payload string) error {
	return c.send(outboundMedia{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     FrameMedia{Payload: payload},
	})
}

// SendClear flushes the provider's buffered outbound audio, cutting off
// playback on barge-in.
func (c *StreamConn) SendClear(streamSid string) error {
	return c.send(outboundClear{Event: "clear", StreamSid: streamSid})
}
