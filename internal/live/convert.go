package live

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/m2tx/live_bridge/internal/metrics"
	"github.com/m2tx/live_bridge/internal/model"
	"github.com/m2tx/live_bridge/internal/tools"
	"github.com/pkg/errors"
	"google.golang.org/genai"
)

const defaultMIMEType = "application/octet-stream"

// SessionConfig is derived once from the first request of a stream.
type SessionConfig struct {
	Model              string
	ResponseModalities []genai.Modality
	SystemInstruction  string
	Tools              []*genai.FunctionDeclaration
	Temperature        *float32
	TopP               *float32
	TopK               *float32
	MaxOutputTokens    int32
	CandidateCount     int
	SpeechConfig       *genai.SpeechConfig
}

func newSessionConfig(modelName string, req *model.Request) SessionConfig {
	cfg := SessionConfig{
		Model:          modelName,
		Tools:          tools.ToProtocolTools(req.Tools),
		CandidateCount: req.Candidates,
	}

	var system []string
	for _, m := range req.Messages {
		if m.Role != model.RoleSystem {
			continue
		}
		for _, p := range m.Content {
			if tp, ok := p.(model.TextPart); ok {
				system = append(system, tp.Text)
			}
		}
	}
	cfg.SystemInstruction = strings.Join(system, "\n")

	if c := req.Config; c != nil {
		for _, m := range c.ResponseModalities {
			cfg.ResponseModalities = append(cfg.ResponseModalities, genai.Modality(strings.ToUpper(m)))
		}
		cfg.Temperature = c.Temperature
		cfg.TopP = c.TopP
		cfg.TopK = c.TopK
		cfg.MaxOutputTokens = c.MaxOutputTokens
		cfg.SpeechConfig = toSpeechConfig(c.SpeechConfig)
	}

	return cfg
}

func toSpeechConfig(sc *model.SpeechConfig) *genai.SpeechConfig {
	if sc == nil {
		return nil
	}

	out := &genai.SpeechConfig{LanguageCode: sc.LanguageCode}
	if sc.VoiceConfig != nil && sc.VoiceConfig.PrebuiltVoiceConfig != nil {
		out.VoiceConfig = &genai.VoiceConfig{
			PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
				VoiceName: sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName,
			},
		}
	}

	return out
}

// LiveConnectConfig renders the config for genai's Live.Connect.
func (c SessionConfig) LiveConnectConfig() *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities: c.ResponseModalities,
		Temperature:        c.Temperature,
		TopP:               c.TopP,
		TopK:               c.TopK,
		MaxOutputTokens:    c.MaxOutputTokens,
		SpeechConfig:       c.SpeechConfig,
	}

	if c.SystemInstruction != "" {
		lc.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.SystemInstruction}},
		}
	}

	if len(c.Tools) > 0 {
		lc.Tools = []*genai.Tool{
			{
				FunctionDeclarations: c.Tools,
			},
		}
	}

	return lc
}

// sendToSession forwards one turn. System turns must be filtered out by the caller.
func sendToSession(s Session, turn model.Turn) error {
	if turn.Role == model.RoleTool {
		var responses []*genai.FunctionResponse
		for _, p := range turn.Content {
			if tr, ok := p.(model.ToolResponsePart); ok {
				responses = append(responses, &genai.FunctionResponse{
					ID:       tr.Ref,
					Name:     tr.Name,
					Response: map[string]any{"result": tr.Output},
				})
			}
		}

		if len(responses) == 0 {
			return nil
		}

		if err := s.SendToolResponse(genai.LiveToolResponseInput{FunctionResponses: responses}); err != nil {
			return protocolError("send tool response", err)
		}
		metrics.TurnsForwarded.WithLabelValues(metrics.RouteToolResponse).Inc()
		return nil
	}

	if isRealtimeInput(turn) {
		return sendRealtime(s, turn)
	}

	parts := make([]*genai.Part, 0, len(turn.Content))
	for _, p := range turn.Content {
		gp, err := toProtocolPart(p)
		if err != nil {
			return protocolError("convert part", err)
		}
		parts = append(parts, gp)
	}

	role := genai.RoleModel
	if turn.Role == model.RoleUser {
		role = genai.RoleUser
	}

	err := s.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{
			{
				Role:  role,
				Parts: parts,
			},
		},
		TurnComplete: genai.Ptr(true),
	})
	if err != nil {
		return protocolError("send client content", err)
	}
	metrics.TurnsForwarded.WithLabelValues(metrics.RouteClientContent).Inc()
	return nil
}

// isRealtimeInput reports whether the turn is a user turn made only of media.
func isRealtimeInput(turn model.Turn) bool {
	if turn.Role != model.RoleUser || len(turn.Content) == 0 {
		return false
	}
	for _, p := range turn.Content {
		if _, ok := p.(model.MediaPart); !ok {
			return false
		}
	}
	return true
}

func sendRealtime(s Session, turn model.Turn) error {
	for _, p := range turn.Content {
		m := p.(model.MediaPart)

		blob, ok, err := decodeMedia(m)
		if err != nil {
			return protocolError("convert realtime media", err)
		}
		if !ok {
			return protocolError("convert realtime media", errors.Errorf("realtime input requires a data URI, got %q", m.URL))
		}

		input := genai.LiveRealtimeInput{Media: blob}
		route := metrics.RouteRealtimeMedia
		if strings.HasPrefix(blob.MIMEType, "audio/") {
			input = genai.LiveRealtimeInput{Audio: blob}
			route = metrics.RouteRealtimeAudio
		}

		if err := s.SendRealtimeInput(input); err != nil {
			return protocolError("send realtime input", err)
		}
		metrics.TurnsForwarded.WithLabelValues(route).Inc()
	}
	return nil
}

func toProtocolPart(p model.Part) (*genai.Part, error) {
	switch v := p.(type) {
	case model.TextPart:
		return &genai.Part{Text: v.Text}, nil
	case model.MediaPart:
		blob, ok, err := decodeMedia(v)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &genai.Part{FileData: &genai.FileData{FileURI: v.URL, MIMEType: mimeType(v)}}, nil
		}
		return &genai.Part{InlineData: blob}, nil
	case model.ToolRequestPart:
		return &genai.Part{FunctionCall: &genai.FunctionCall{ID: v.Ref, Name: v.Name, Args: v.Input}}, nil
	case model.ToolResponsePart:
		return &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       v.Ref,
			Name:     v.Name,
			Response: map[string]any{"result": v.Output},
		}}, nil
	default:
		return nil, errors.Errorf("unsupported part type %T", p)
	}
}

func mimeType(m model.MediaPart) string {
	if m.ContentType != "" {
		return m.ContentType
	}
	return defaultMIMEType
}

// decodeMedia extracts the payload of a data URI. ok is false when the URL is
// not a data URI.
func decodeMedia(m model.MediaPart) (blob *genai.Blob, ok bool, err error) {
	rest, found := strings.CutPrefix(m.URL, "data:")
	if !found {
		return nil, false, nil
	}

	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, true, errors.New("malformed data URI: missing ','")
	}

	var data []byte
	if strings.HasSuffix(header, ";base64") {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, true, errors.Wrap(err, "decode base64 payload")
		}
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, true, errors.Wrap(err, "decode data URI payload")
		}
		data = []byte(s)
	}

	return &genai.Blob{MIMEType: mimeType(m), Data: data}, true, nil
}

// chunksFromMessage converts a server message into response chunks: one for
// model output and one for tool calls, when present.
func chunksFromMessage(msg *genai.LiveServerMessage) []*model.ResponseChunk {
	var chunks []*model.ResponseChunk

	if msg.ServerContent != nil && msg.ServerContent.ModelTurn != nil {
		var parts []model.Part
		for _, p := range msg.ServerContent.ModelTurn.Parts {
			if p == nil {
				continue
			}
			if p.Text != "" {
				parts = append(parts, model.TextPart{Text: p.Text})
			}
			if p.InlineData != nil {
				parts = append(parts, model.MediaPart{
					URL:         "data:" + p.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data),
					ContentType: p.InlineData.MIMEType,
				})
			}
		}

		if len(parts) > 0 {
			chunks = append(chunks, &model.ResponseChunk{Role: model.RoleModel, Content: parts})
			metrics.ChunksEmitted.WithLabelValues("content").Inc()
		}
	}

	if msg.ToolCall != nil {
		var parts []model.Part
		for _, fc := range msg.ToolCall.FunctionCalls {
			if fc == nil {
				continue
			}
			parts = append(parts, model.ToolRequestPart{Name: fc.Name, Ref: fc.ID, Input: fc.Args})
		}

		if len(parts) > 0 {
			chunks = append(chunks, &model.ResponseChunk{Role: model.RoleModel, Content: parts})
			metrics.ChunksEmitted.WithLabelValues("tool_request").Inc()
		}
	}

	return chunks
}
