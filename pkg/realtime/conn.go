package realtime

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type Config struct {
	APIKey      string  `envconfig:"API_KEY" required:"true"`
	URL         string  `envconfig:"URL" default:"wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"`
	Voice       string  `envconfig:"VOICE" default:"alloy"`
	Temperature float64 `envconfig:"TEMPERATURE" default:"0.7"`
}

// Conn is one AI-stream websocket. Reads happen from a single goroutine;
// writes are serialized by a mutex because the bridge and the telephony
// reader both send.
type Conn struct {
	cfg          Config
	instructions string

	writeMu sync.Mutex
	ws      *websocket.Conn
}

// Dial opens the AI stream. instructions is the system prompt installed at
// session configuration time.
func Dial(cfg Config, instructions string) (*Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, _, err := websocket.DefaultDialer.Dial(cfg.URL, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return &Conn{cfg: cfg, instructions: instructions, ws: ws}, nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// Read blocks for the next server event. A closed stream surfaces as an
// error; the caller treats it as end of call.
func (c *Conn) Read() (ServerEvent, error) {
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return ServerEvent{}, err
	}
	return DecodeServerEvent(raw)
}

func (c *Conn) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// ConfigureSession installs turn detection, audio formats, the system
// instructions, and the tool schemas.
func (c *Conn) ConfigureSession() error {
	return c.send(sessionUpdateEvent{
		Type: "session.update",
		Session: sessionPayload{
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         0.3,
				SilenceDurationMs: 1000,
			},
			InputAudioFormat:   "g711_ulaw",
			OutputAudioFormat:  "g711_ulaw",
			Voice:              c.cfg.Voice,
			Instructions:       c.instructions,
			Tools:              ToolSchemas(),
			Modalities:         []string{"text", "audio"},
			Temperature:        c.cfg.Temperature,
			InputTranscription: transcription{Model: "whisper-1"},
		},
	})
}

func (c *Conn) AppendAudio(payload string) error {
	return c.send(audioAppendEvent{Type: "input_audio_buffer.append", Audio: payload})
}

// CreateResponse asks the AI to speak the given instructions aloud.
func (c *Conn) CreateResponse(instructions string, maxOutputTokens int) error {
	return c.send(responseCreateEvent{
		Type: "response.create",
		Response: responsePayload{
			Modalities:      []string{"text", "audio"},
			Instructions:    instructions,
			Voice:           c.cfg.Voice,
			Temperature:     c.cfg.Temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
}

// CreateAssistantItem injects an assistant message into the conversation
// without triggering a response, used for interim "checking" notices.
func (c *Conn) CreateAssistantItem(text string) error {
	return c.send(itemCreateEvent{
		Type: "conversation.item.create",
		Item: assistantItem{
			Type:    "message",
			Role:    "assistant",
			Content: []contentPart{{Type: "text", Text: text}},
		},
	})
}

// CreateToolOutput reports a tool call's result back to the AI.
func (c *Conn) CreateToolOutput(output string) error {
	return c.send(itemCreateEvent{
		Type: "conversation.item.create",
		Item: toolOutputItem{Type: "function_call_output", Output: output},
	})
}

func (c *Conn) CancelResponse() error {
	return c.send(responseCancelEvent{Type: "response.cancel"})
}
