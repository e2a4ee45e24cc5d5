package realtime

import (
	"encoding/json"

	"orpheus/internal/tools"
)

// Client event types (sent upstream)
const (
	EventTypeSessionUpdate          = "session.update"
	EventTypeInputAudioAppend       = "input_audio_buffer.append"
	EventTypeInputAudioCommit       = "input_audio_buffer.commit"
	EventTypeConversationItemCreate = "conversation.item.create"
	EventTypeResponseCreate         = "response.create"
	EventTypeResponseCancel         = "response.cancel"
)

// Server event types (received from upstream)
const (
	EventTypeSessionCreated          = "session.created"
	EventTypeSpeechStarted           = "input_audio_buffer.speech_started"
	EventTypeSpeechStopped           = "input_audio_buffer.speech_stopped"
	EventTypeInputTranscriptDone     = "conversation.item.input_audio_transcription.completed"
	EventTypeResponseAudioDelta      = "response.audio.delta"
	EventTypeResponseTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseTranscriptDone  = "response.audio_transcript.done"
	EventTypeFunctionCallArgsDone    = "response.function_call_arguments.done"
	EventTypeResponseDone            = "response.done"
	EventTypeError                   = "error"
)

// ServerEvent is one upstream message. The wire format keeps most
// payload fields at the top level, so one flat struct covers every
// event type the session layer consumes.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitempty"`

	// Audio / transcript payloads
	Delta      string `json:"delta,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	Transcript string `json:"transcript,omitempty"`

	// Tool call payload (response.function_call_arguments.done)
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`

	// Completed response payload (response.done)
	Response *ResponsePayload `json:"response,omitempty"`

	// Error payload
	Error *APIError `json:"error,omitempty"`
}

// ResponsePayload is the response object attached to response.done
type ResponsePayload struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Usage  *Usage `json:"usage,omitempty"`
}

// Usage carries token counts split by modality
type Usage struct {
	TotalTokens        int64        `json:"total_tokens"`
	InputTokens        int64        `json:"input_tokens"`
	OutputTokens       int64        `json:"output_tokens"`
	InputTokenDetails  TokenDetails `json:"input_token_details"`
	OutputTokenDetails TokenDetails `json:"output_token_details"`
}

// TokenDetails splits a token count into text and audio
type TokenDetails struct {
	TextTokens  int64 `json:"text_tokens"`
	AudioTokens int64 `json:"audio_tokens"`
}

// APIError is the upstream error payload
type APIError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SessionConfig describes the conversation parameters advertised in
// session.update: persona, voice, audio formats and the tool catalog.
type SessionConfig struct {
	Instructions string
	Voice        string
	Temperature  float64
	Tools        []tools.Definition

	// ServerVAD enables upstream turn detection. When false the caller
	// side runs local VAD and commits audio buffers explicitly.
	ServerVAD bool
}

// sessionUpdateEvent is the wire form of session.update
type sessionUpdateEvent struct {
	Type    string         `json:"type"`
	Session sessionPayload `json:"session"`
}

type sessionPayload struct {
	Modalities        []string         `json:"modalities"`
	Instructions      string           `json:"instructions"`
	Voice             string           `json:"voice"`
	InputAudioFormat  string           `json:"input_audio_format"`
	OutputAudioFormat string           `json:"output_audio_format"`
	Temperature       float64          `json:"temperature,omitempty"`
	Tools             []toolDefinition `json:"tools"`
	ToolChoice        string           `json:"tool_choice"`
	TurnDetection     *turnDetection   `json:"turn_detection"`

	InputAudioTranscription *transcriptionConfig `json:"input_audio_transcription,omitempty"`
}

// toolDefinition flattens tools.Definition into the realtime tool
// schema, which carries the type discriminator inline.
type toolDefinition struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

// NewSessionUpdate builds the session.update event sent right after
// connecting (and again after every reconnect).
func NewSessionUpdate(cfg SessionConfig) interface{} {
	defs := make([]toolDefinition, 0, len(cfg.Tools))
	for _, d := range cfg.Tools {
		defs = append(defs, toolDefinition{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}

	payload := sessionPayload{
		Modalities:              []string{"audio", "text"},
		Instructions:            cfg.Instructions,
		Voice:                   cfg.Voice,
		InputAudioFormat:        "pcm16",
		OutputAudioFormat:       "pcm16",
		Temperature:             cfg.Temperature,
		Tools:                   defs,
		ToolChoice:              "auto",
		InputAudioTranscription: &transcriptionConfig{Model: "whisper-1"},
	}
	if cfg.ServerVAD {
		payload.TurnDetection = &turnDetection{Type: "server_vad"}
	}

	return sessionUpdateEvent{Type: EventTypeSessionUpdate, Session: payload}
}

// NewInputAudioAppend wraps one base64 PCM16 frame for upstream
func NewInputAudioAppend(audioB64 string) interface{} {
	return struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}{Type: EventTypeInputAudioAppend, Audio: audioB64}
}

// NewInputAudioCommit closes the current input buffer (local VAD mode)
func NewInputAudioCommit() interface{} {
	return struct {
		Type string `json:"type"`
	}{Type: EventTypeInputAudioCommit}
}

// NewFunctionCallOutput returns a tool result to the conversation.
// The output is always a string; the dispatcher guarantees that.
func NewFunctionCallOutput(callID, output string) interface{} {
	return struct {
		Type string `json:"type"`
		Item struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		} `json:"item"`
	}{
		Type: EventTypeConversationItemCreate,
		Item: struct {
			Type   string `json:"type"`
			CallID string `json:"call_id"`
			Output string `json:"output"`
		}{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// NewResponseCreate asks the model to produce the next response,
// typically right after a tool result lands.
func NewResponseCreate() interface{} {
	return struct {
		Type string `json:"type"`
	}{Type: EventTypeResponseCreate}
}

// ParseToolArguments decodes the arguments JSON attached to a
// function_call_arguments.done event. A missing payload is an empty
// argument set, not an error.
func ParseToolArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	return args, nil
}
