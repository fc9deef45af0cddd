package model

import (
	"encoding/json"
	"fmt"
)

// Part is a single piece of a conversation turn. It is one of TextPart,
// MediaPart, ToolRequestPart or ToolResponsePart.
type Part interface {
	isPart()
}

// TextPart carries plain text.
type TextPart struct {
	Text string
}

// MediaPart references media by URL. Inline media uses a data URI.
type MediaPart struct {
	URL         string
	ContentType string
}

// ToolRequestPart is a tool invocation requested by the model.
type ToolRequestPart struct {
	Name  string
	Ref   string
	Input map[string]any
}

// ToolResponsePart is the result of a tool invocation, sent back by the client.
type ToolResponsePart struct {
	Name   string
	Ref    string
	Output any
}

func (TextPart) isPart()         {}
func (MediaPart) isPart()        {}
func (ToolRequestPart) isPart()  {}
func (ToolResponsePart) isPart() {}

// Media is the wire form of a MediaPart.
type Media struct {
	URL         string `json:"url" bson:"url"`
	ContentType string `json:"contentType,omitempty" bson:"content_type,omitempty"`
}

// ToolRequest is the wire form of a ToolRequestPart.
type ToolRequest struct {
	Name  string         `json:"name" bson:"name"`
	Ref   string         `json:"ref,omitempty" bson:"ref,omitempty"`
	Input map[string]any `json:"input,omitempty" bson:"input,omitempty"`
}

// ToolResponse is the wire form of a ToolResponsePart.
type ToolResponse struct {
	Name   string `json:"name" bson:"name"`
	Ref    string `json:"ref,omitempty" bson:"ref,omitempty"`
	Output any    `json:"output,omitempty" bson:"output,omitempty"`
}

// PartRecord is how a Part is encoded on the wire and in storage. Exactly one
// field is set.
type PartRecord struct {
	Text         *string       `json:"text,omitempty" bson:"text,omitempty"`
	Media        *Media        `json:"media,omitempty" bson:"media,omitempty"`
	ToolRequest  *ToolRequest  `json:"toolRequest,omitempty" bson:"tool_request,omitempty"`
	ToolResponse *ToolResponse `json:"toolResponse,omitempty" bson:"tool_response,omitempty"`
}

// Record converts a Part into its envelope form.
func Record(p Part) PartRecord {
	switch v := p.(type) {
	case TextPart:
		text := v.Text
		return PartRecord{Text: &text}
	case MediaPart:
		return PartRecord{Media: &Media{URL: v.URL, ContentType: v.ContentType}}
	case ToolRequestPart:
		return PartRecord{ToolRequest: &ToolRequest{Name: v.Name, Ref: v.Ref, Input: v.Input}}
	case ToolResponsePart:
		return PartRecord{ToolResponse: &ToolResponse{Name: v.Name, Ref: v.Ref, Output: v.Output}}
	default:
		panic(fmt.Sprintf("model: unknown part type %T", p))
	}
}

// Part decodes the envelope, failing unless exactly one variant is set.
func (r PartRecord) Part() (Part, error) {
	var (
		part Part
		n    int
	)
	if r.Text != nil {
		part = TextPart{Text: *r.Text}
		n++
	}
	if r.Media != nil {
		part = MediaPart{URL: r.Media.URL, ContentType: r.Media.ContentType}
		n++
	}
	if r.ToolRequest != nil {
		part = ToolRequestPart{Name: r.ToolRequest.Name, Ref: r.ToolRequest.Ref, Input: r.ToolRequest.Input}
		n++
	}
	if r.ToolResponse != nil {
		part = ToolResponsePart{Name: r.ToolResponse.Name, Ref: r.ToolResponse.Ref, Output: r.ToolResponse.Output}
		n++
	}

	if n != 1 {
		return nil, fmt.Errorf("model: part must have exactly one variant, got %d", n)
	}

	return part, nil
}

// Records converts parts into envelopes.
func Records(parts []Part) []PartRecord {
	records := make([]PartRecord, 0, len(parts))
	for _, p := range parts {
		records = append(records, Record(p))
	}
	return records
}

// Parts decodes a list of envelopes.
func Parts(records []PartRecord) ([]Part, error) {
	parts := make([]Part, 0, len(records))
	for i, r := range records {
		p, err := r.Part()
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// Content is a stored conversation turn.
type Content struct {
	Parts []PartRecord `json:"parts" bson:"parts"`
	Role  Role         `json:"role" bson:"role"`
}

func marshalParts(parts []Part) ([]byte, error) {
	return json.Marshal(Records(parts))
}

func unmarshalParts(data []byte) ([]Part, error) {
	var records []PartRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return Parts(records)
}
