package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/m2tx/live_bridge/internal/asyncchan"
	"github.com/m2tx/live_bridge/internal/credentials"
	"github.com/m2tx/live_bridge/internal/live"
	"github.com/m2tx/live_bridge/internal/model"
	"github.com/m2tx/live_bridge/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// scriptedSession answers every client turn with a call to toolName and every
// tool response with a text turn echoing the result.
type scriptedSession struct {
	mu        sync.Mutex
	callbacks live.Callbacks
	toolName  string
	responses []*genai.FunctionResponse
}

func (s *scriptedSession) SendClientContent(genai.LiveClientContentInput) error {
	s.callbacks.OnMessage(&genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{
			FunctionCalls: []*genai.FunctionCall{
				{ID: "call-1", Name: s.toolName, Args: map[string]any{"location": "Lisbon"}},
			},
		},
	})
	return nil
}

func (s *scriptedSession) SendToolResponse(input genai.LiveToolResponseInput) error {
	s.mu.Lock()
	s.responses = append(s.responses, input.FunctionResponses...)
	s.mu.Unlock()

	text := fmt.Sprint(input.FunctionResponses[0].Response["result"])
	s.callbacks.OnMessage(&genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		},
	})
	return nil
}

func (s *scriptedSession) SendRealtimeInput(genai.LiveRealtimeInput) error { return nil }

func (s *scriptedSession) Close() error { return nil }

type scriptedConnector struct {
	session *scriptedSession
	params  live.ConnectParams
}

func (c *scriptedConnector) Connect(_ context.Context, params live.ConnectParams, callbacks live.Callbacks) (live.Session, error) {
	c.params = params
	c.session.callbacks = callbacks
	return c.session, nil
}

func newTestAgent(t *testing.T, toolName string, repo repository.TranscriptRepository) (*Agent, *scriptedConnector) {
	t.Helper()

	conn := &scriptedConnector{session: &scriptedSession{toolName: toolName}}
	bridge := live.New(conn,
		live.WithResolver(func(credentials.PluginKey, string) (string, error) { return "k", nil }),
		live.WithLogger(zerolog.Nop()),
	)

	a := New(bridge, WithTranscripts(repo), WithLogger(zerolog.Nop()))
	require.NoError(t, a.AddFunctionCall(&FunctionDeclaration{
		Name:        "get_weather",
		Description: "current weather",
		ParametersSchema: map[string]any{
			"type": "object",
		},
		FunctionCall: func(_ context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"condition": "sunny in " + args["location"].(string)}, nil
		},
	}))

	return a, conn
}

func userRequest(text string) *model.Request {
	return &model.Request{Messages: []model.Turn{
		{Role: model.RoleUser, Content: []model.Part{model.TextPart{Text: text}}},
	}}
}

func TestAgent_HandlesRegisteredFunction(t *testing.T) {
	repo := repository.NewMemoryTranscriptRepository()
	a, conn := newTestAgent(t, "get_weather", repo)

	client := asyncchan.New[*model.Request]()
	client.Enqueue(userRequest("weather in Lisbon?"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := a.Start(ctx, "s1", client)

	chunk, err := conv.Next(ctx)
	require.NoError(t, err)
	require.Len(t, chunk.Content, 1)
	text, ok := chunk.Content[0].(model.TextPart)
	require.True(t, ok, "the tool call must not reach the client")
	assert.Contains(t, text.Text, "sunny in Lisbon")

	client.Close()
	_, err = conv.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	<-conv.Done()

	require.NotNil(t, conn.params.Config)
	require.Len(t, conn.params.Config.Tools, 1)
	assert.Equal(t, "get_weather", conn.params.Config.Tools[0].FunctionDeclarations[0].Name)

	require.Len(t, conn.session.responses, 1)
	assert.Equal(t, "call-1", conn.session.responses[0].ID)

	transcript, err := a.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, transcript, 4)
	assert.Equal(t, model.RoleUser, transcript[0].Role)
	assert.Equal(t, model.RoleModel, transcript[1].Role)
	assert.NotNil(t, transcript[1].Parts[0].ToolRequest)
	assert.Equal(t, model.RoleTool, transcript[2].Role)
	assert.NotNil(t, transcript[2].Parts[0].ToolResponse)
	assert.Equal(t, model.RoleModel, transcript[3].Role)

	require.NoError(t, a.ClearSession(ctx, "s1"))
	transcript, err = a.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestAgent_UnknownToolReachesClient(t *testing.T) {
	a, conn := newTestAgent(t, "client_side_tool", nil)

	client := asyncchan.New[*model.Request]()
	req := userRequest("do it")
	req.Tools = []model.ToolDescriptor{{Name: "client_side_tool"}, {Name: "get_weather"}}
	client.Enqueue(req)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := a.Start(ctx, "s2", client)

	chunk, err := conv.Next(ctx)
	require.NoError(t, err)
	require.Len(t, chunk.Content, 1)
	call, ok := chunk.Content[0].(model.ToolRequestPart)
	require.True(t, ok)
	assert.Equal(t, "client_side_tool", call.Name)

	decls := conn.params.Config.Tools[0].FunctionDeclarations
	require.Len(t, decls, 2, "the client's get_weather is replaced by the server function")
	assert.Equal(t, "client_side_tool", decls[0].Name)
	assert.Equal(t, "get_weather", decls[1].Name)
	assert.Equal(t, "current weather", decls[1].Description)

	conv.Close()
	<-conv.Done()

	history, err := a.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAgent_FunctionErrorIsReturnedToModel(t *testing.T) {
	a, conn := newTestAgent(t, "broken", nil)
	require.NoError(t, a.AddFunctionCall(&FunctionDeclaration{
		Name: "broken",
		FunctionCall: func(context.Context, map[string]any) (map[string]any, error) {
			return nil, errors.New("backend down")
		},
	}))

	client := asyncchan.New[*model.Request]()
	client.Enqueue(userRequest("go"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conv := a.Start(ctx, "s3", client)
	chunk, err := conv.Next(ctx)
	require.NoError(t, err)
	assert.Contains(t, chunk.Content[0].(model.TextPart).Text, "backend down")

	client.Close()
	for _, err := range conv.All(ctx) {
		require.NoError(t, err)
	}
	<-conv.Done()

	require.Len(t, conn.session.responses, 1)
	assert.Equal(t, map[string]any{"result": map[string]any{"error": "backend down"}}, conn.session.responses[0].Response)
}

func TestAgent_AddFunctionCall(t *testing.T) {
	fn := func(context.Context, map[string]any) (map[string]any, error) { return nil, nil }

	tests := []struct {
		name    string
		fd      *FunctionDeclaration
		wantErr bool
	}{
		{name: "nil", fd: nil, wantErr: true},
		{name: "no name", fd: &FunctionDeclaration{FunctionCall: fn}, wantErr: true},
		{name: "no implementation", fd: &FunctionDeclaration{Name: "x"}, wantErr: true},
		{name: "valid", fd: &FunctionDeclaration{Name: "x", FunctionCall: fn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(nil, WithLogger(zerolog.Nop()))
			err := a.AddFunctionCall(tt.fd)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, a.Tools())
				return
			}
			require.NoError(t, err)
			assert.Len(t, a.Tools(), 1)
		})
	}
}
