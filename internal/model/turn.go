package model

import (
	"encoding/json"
	"fmt"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleTool   Role = "tool"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleModel, RoleTool:
		return true
	}
	return false
}

// Turn is one message of a request: a role and its ordered parts.
type Turn struct {
	Role    Role
	Content []Part
}

type turnJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (t Turn) MarshalJSON() ([]byte, error) {
	content, err := marshalParts(t.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(turnJSON{Role: t.Role, Content: content})
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw turnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.Role.Valid() {
		return fmt.Errorf("model: invalid role %q", raw.Role)
	}

	var parts []Part
	if len(raw.Content) > 0 && string(raw.Content) != "null" {
		var err error
		parts, err = unmarshalParts(raw.Content)
		if err != nil {
			return err
		}
	}

	t.Role = raw.Role
	t.Content = parts
	return nil
}

// Text returns the concatenation of the turn's text parts.
func (t Turn) Text() string {
	var s string
	for _, p := range t.Content {
		if tp, ok := p.(TextPart); ok {
			s += tp.Text
		}
	}
	return s
}

// PrebuiltVoiceConfig selects one of the preset voices.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type SpeechConfig struct {
	VoiceConfig  *VoiceConfig `json:"voiceConfig,omitempty"`
	LanguageCode string       `json:"languageCode,omitempty"`
}

// RequestConfig holds generation parameters. Only the first request of a
// stream is consulted.
type RequestConfig struct {
	APIKey             string        `json:"apiKey,omitempty"`
	Temperature        *float32      `json:"temperature,omitempty"`
	TopP               *float32      `json:"topP,omitempty"`
	TopK               *float32      `json:"topK,omitempty"`
	MaxOutputTokens    int32         `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// ToolDescriptor declares a tool the model may call.
type ToolDescriptor struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	InputSchema  map[string]any `json:"inputSchema,omitempty"`
	OutputSchema map[string]any `json:"outputSchema,omitempty"`
}

// Request is one unit of the inbound stream. Each request carries only new
// messages; history is kept by the live session itself.
type Request struct {
	Messages   []Turn           `json:"messages"`
	Config     *RequestConfig   `json:"config,omitempty"`
	Tools      []ToolDescriptor `json:"tools,omitempty"`
	Candidates int              `json:"candidates,omitempty"`
}

// ResponseChunk is one unit of model output.
type ResponseChunk struct {
	Role    Role
	Content []Part
}

type chunkJSON struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func (c ResponseChunk) MarshalJSON() ([]byte, error) {
	content, err := marshalParts(c.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chunkJSON{Role: c.Role, Content: content})
}

func (c *ResponseChunk) UnmarshalJSON(data []byte) error {
	var raw chunkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parts, err := unmarshalParts(raw.Content)
	if err != nil {
		return err
	}
	c.Role = raw.Role
	c.Content = parts
	return nil
}
