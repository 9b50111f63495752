// Package realtime speaks the AI backend's websocket protocol: JSON
// envelopes keyed by a "type" string, covering session lifecycle, audio
// appends, response control, and tool-call completion.
package realtime

import "encoding/json"

// Server event types the bridge dispatches on.
const (
	EventSessionCreated          = "session.created"
	EventSessionUpdated          = "session.updated"
	EventSpeechStarted           = "input_audio_buffer.speech_started"
	EventAudioDelta              = "response.audio.delta"
	EventContentDone             = "response.content.done"
	EventAudioTranscriptDone     = "response.audio_transcript.done"
	EventUserTranscriptCompleted = "conversation.item.input_audio_transcription.completed"
	EventToolArgumentsDone       = "response.function_call_arguments.done"
)

// ServerEvent is one inbound AI envelope. Only the fields relevant to the
// received type are populated.
type ServerEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Content    string `json:"content,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

func DecodeServerEvent(raw []byte) (ServerEvent, error) {
	var evt ServerEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return ServerEvent{}, err
	}
	return evt, nil
}

type sessionUpdateEvent struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	TurnDetection      turnDetection `json:"turn_detection"`
	InputAudioFormat   string        `json:"input_audio_format"`
	OutputAudioFormat  string        `json:"output_audio_format"`
	Voice              string        `json:"voice"`
	Instructions       string        `json:"instructions"`
	Tools              []Tool        `json:"tools"`
	Modalities         []string      `json:"modalities"`
	Temperature        float64       `json:"temperature"`
	InputTranscription transcription `json:"input_audio_transcription"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type transcription struct {
	Model string `json:"model"`
}

// Tool is one function schema exposed to the AI backend.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  toolParameters `json:"parameters"`
}

type toolParameters struct {
	Type                 string                  `json:"type"`
	Properties           map[string]toolProperty `json:"properties"`
	Required             []string                `json:"required,omitempty"`
	AdditionalProperties bool                    `json:"additionalProperties"`
}

type toolProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type audioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type itemCreateEvent struct {
	Type string      `json:"type"`
	Item interface{} `json:"item"`
}

type assistantItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolOutputItem struct {
	Type   string `json:"type"`
	Output string `json:"output"`
}

type responseCreateEvent struct {
	Type     string          `json:"type"`
	Response responsePayload `json:"response"`
}

type responsePayload struct {
	Modalities      []string `json:"modalities"`
	Instructions    string   `json:"instructions"`
	Voice           string   `json:"voice"`
	Temperature     float64  `json:"temperature"`
	MaxOutputTokens int      `json:"max_output_tokens"`
}

type responseCancelEvent struct {
	Type string `json:"type"`
}

// ToolSchemas is the fixed tool set the bridge exposes to the AI backend.
func ToolSchemas() []Tool {
	return []Tool{
		{
			Type:        "function",
			Name:        "access_knowledge_base",
			Description: "Access the knowledge base to answer the user's question.",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"question": {Type: "string", Description: "The question to ask the knowledge base."},
				},
				Required: []string{"question"},
			},
		},
		{
			Type:        "function",
			Name:        "schedule_training_session",
			Description: "Schedule a training session for the user by collecting necessary details such as time and email.",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"preferred_time": {Type: "string", Description: "The preferred time for the training session in ISO 8601 format."},
					"email":          {Type: "string", Description: "The user's email address to send meeting details."},
				},
				Required: []string{"preferred_time", "email"},
			},
		},
		{
			Type:        "function",
			Name:        "retrieve_user_email",
			Description: "Retrieve the user's email address.",
			Parameters:  toolParameters{Type: "object", Properties: map[string]toolProperty{}},
		},
		{
			Type:        "function",
			Name:        "handle_investment_query",
			Description: "Handle investment inquiries by offering to connect the caller to a fundraising expert.",
			Parameters:  toolParameters{Type: "object", Properties: map[string]toolProperty{}},
		},
		{
			Type:        "function",
			Name:        "access_long_term_memory",
			Description: "Retrieve relevant long-term memory information for the user based on the current context.",
			Parameters: toolParameters{
				Type: "object",
				Properties: map[string]toolProperty{
					"query": {Type: "string", Description: "The user's current message to query against long-term memory."},
				},
				Required: []string{"query"},
			},
		},
	}
}
