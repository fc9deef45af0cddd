package agent

import (
	"context"
	"io"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/m2tx/live_bridge/internal/asyncchan"
	"github.com/m2tx/live_bridge/internal/live"
	"github.com/m2tx/live_bridge/internal/metrics"
	"github.com/m2tx/live_bridge/internal/model"
	"github.com/m2tx/live_bridge/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Agent runs live conversations through a bridge and answers the model's
// calls to server-side functions without involving the client.
type Agent struct {
	bridge      *live.Bridge
	transcripts repository.TranscriptRepository
	logger      zerolog.Logger

	mu           sync.RWMutex
	functionsMap map[string]*FunctionDeclaration
}

type FunctionDeclaration struct {
	Name             string
	Description      string
	ParametersSchema map[string]any
	ResponseSchema   map[string]any
	FunctionCall     FunctionCallFn
}

type FunctionCallFn func(ctx context.Context, args map[string]any) (map[string]any, error)

type Option func(*Agent)

// WithTranscripts records every conversation in repo.
func WithTranscripts(repo repository.TranscriptRepository) Option {
	return func(a *Agent) { a.transcripts = repo }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func New(bridge *live.Bridge, opts ...Option) *Agent {
	a := &Agent{
		bridge:       bridge,
		logger:       log.Logger,
		functionsMap: make(map[string]*FunctionDeclaration),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) AddFunctionCall(functionDeclaration *FunctionDeclaration) error {
	if functionDeclaration == nil {
		return errors.New("function declaration cannot be nil")
	}

	if functionDeclaration.Name == "" {
		return errors.New("function name cannot be empty")
	}

	if functionDeclaration.FunctionCall == nil {
		return errors.Errorf("function %s: implementation cannot be nil", functionDeclaration.Name)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.functionsMap[functionDeclaration.Name] = functionDeclaration

	return nil
}

// Tools describes the registered functions, sorted by name.
func (a *Agent) Tools() []model.ToolDescriptor {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tools := make([]model.ToolDescriptor, 0, len(a.functionsMap))
	for _, fd := range a.functionsMap {
		tools = append(tools, model.ToolDescriptor{
			Name:         fd.Name,
			Description:  fd.Description,
			InputSchema:  fd.ParametersSchema,
			OutputSchema: fd.ResponseSchema,
		})
	}
	slices.SortFunc(tools, func(x, y model.ToolDescriptor) int { return strings.Compare(x.Name, y.Name) })

	return tools
}

func (a *Agent) lookup(name string) (*FunctionDeclaration, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fd, ok := a.functionsMap[name]
	return fd, ok
}

// Conversation is one running live conversation.
type Conversation struct {
	SessionID string

	out    *asyncchan.Channel[*model.ResponseChunk]
	cancel context.CancelFunc
	done   chan struct{}
}

// Next returns the next chunk for the client, io.EOF at the end.
func (c *Conversation) Next(ctx context.Context) (*model.ResponseChunk, error) {
	return c.out.Next(ctx)
}

func (c *Conversation) All(ctx context.Context) iter.Seq2[*model.ResponseChunk, error] {
	return c.out.All(ctx)
}

// Close abandons the conversation and releases its session.
func (c *Conversation) Close() {
	c.cancel()
}

func (c *Conversation) Done() <-chan struct{} {
	return c.done
}

// Start opens a conversation fed by client. Registered functions are added to
// the tools of the first request. Tool requests naming a registered function
// are executed here and answered on the session; everything else reaches the
// returned conversation.
func (a *Agent) Start(ctx context.Context, sessionID string, client live.Inbound) *Conversation {
	ctx, cancel := context.WithCancel(ctx)

	c := &Conversation{
		SessionID: sessionID,
		out:       asyncchan.New[*model.ResponseChunk](),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	logger := a.logger.With().Str("session_id", sessionID).Logger()
	inbound := asyncchan.New[*model.Request]()
	stream := a.bridge.Start(ctx, inbound)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.pump(ctx, sessionID, client, inbound, logger)
	}()

	go func() {
		defer close(c.done)

		a.relay(ctx, sessionID, stream, inbound, c.out, logger)

		cancel()
		wg.Wait()
		<-stream.Done()
	}()

	return c
}

// pump copies client requests onto the bridge inbound.
func (a *Agent) pump(ctx context.Context, sessionID string, client live.Inbound, inbound *asyncchan.Channel[*model.Request], logger zerolog.Logger) {
	first := true
	for {
		req, err := client.Next(ctx)
		if errors.Is(err, io.EOF) {
			inbound.Close()
			return
		}
		if err != nil {
			inbound.Fail(err)
			return
		}

		if first {
			req = a.withTools(req, logger)
			first = false
		}

		for _, t := range req.Messages {
			if t.Role != model.RoleSystem {
				a.record(ctx, sessionID, t.Role, t.Content, logger)
			}
		}

		inbound.Enqueue(req)
	}
}

// withTools returns a copy of req declaring the registered functions. A
// client tool with the same name as a registered function is dropped.
func (a *Agent) withTools(req *model.Request, logger zerolog.Logger) *model.Request {
	registered := a.Tools()
	if len(registered) == 0 {
		return req
	}

	out := *req
	out.Tools = make([]model.ToolDescriptor, 0, len(req.Tools)+len(registered))
	for _, t := range req.Tools {
		if _, ok := a.lookup(t.Name); ok {
			logger.Warn().Str("tool", t.Name).Msg("client tool shadowed by server function")
			continue
		}
		out.Tools = append(out.Tools, t)
	}
	out.Tools = append(out.Tools, registered...)

	return &out
}

// relay moves bridge output to the client, handling server-side tool calls on
// the way. It returns once the bridge stream has ended.
func (a *Agent) relay(ctx context.Context, sessionID string, stream *live.Stream, inbound *asyncchan.Channel[*model.Request], out *asyncchan.Channel[*model.ResponseChunk], logger zerolog.Logger) {
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			out.Close()
			return
		}
		if err != nil {
			out.Fail(err)
			return
		}

		a.record(ctx, sessionID, chunk.Role, chunk.Content, logger)

		rest, responses := a.processResponse(ctx, chunk.Content, logger)
		if len(responses) > 0 {
			a.record(ctx, sessionID, model.RoleTool, responses, logger)
			inbound.Enqueue(&model.Request{
				Messages: []model.Turn{{Role: model.RoleTool, Content: responses}},
			})
		}

		if len(rest) > 0 {
			out.Enqueue(&model.ResponseChunk{Role: chunk.Role, Content: rest})
		}
	}
}

// processResponse executes the tool requests addressed to registered
// functions and returns the remaining parts along with the tool responses.
func (a *Agent) processResponse(ctx context.Context, parts []model.Part, logger zerolog.Logger) (rest, responses []model.Part) {
	for _, p := range parts {
		req, ok := p.(model.ToolRequestPart)
		if !ok {
			rest = append(rest, p)
			continue
		}

		fd, ok := a.lookup(req.Name)
		if !ok {
			rest = append(rest, p)
			continue
		}

		result, err := fd.FunctionCall(ctx, req.Input)
		if err != nil {
			logger.Warn().Err(err).Str("tool", req.Name).Str("ref", req.Ref).Msg("function call failed")
			metrics.ToolCalls.WithLabelValues(req.Name, "error").Inc()
			result = map[string]any{"error": err.Error()}
		} else {
			logger.Debug().Str("tool", req.Name).Str("ref", req.Ref).Msg("function call")
			metrics.ToolCalls.WithLabelValues(req.Name, "ok").Inc()
		}

		responses = append(responses, model.ToolResponsePart{Name: req.Name, Ref: req.Ref, Output: result})
	}
	return rest, responses
}

// record appends a turn to the transcript. Inline media is left out.
func (a *Agent) record(ctx context.Context, sessionID string, role model.Role, parts []model.Part, logger zerolog.Logger) {
	if a.transcripts == nil {
		return
	}

	var kept []model.Part
	for _, p := range parts {
		if m, ok := p.(model.MediaPart); ok && strings.HasPrefix(m.URL, "data:") {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		return
	}

	entry := model.Content{Role: role, Parts: model.Records(kept)}
	if err := a.transcripts.Append(ctx, sessionID, entry); err != nil {
		logger.Warn().Err(err).Msg("failed to record transcript")
	}
}

// GetSession returns the transcript of a session, empty if there is none.
func (a *Agent) GetSession(ctx context.Context, sessionID string) ([]model.Content, error) {
	if a.transcripts == nil {
		return []model.Content{}, nil
	}

	stored, err := a.transcripts.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load session %s", sessionID)
	}

	if stored == nil {
		return []model.Content{}, nil
	}

	return stored, nil
}

func (a *Agent) ClearSession(ctx context.Context, sessionID string) error {
	if a.transcripts == nil {
		return nil
	}

	if err := a.transcripts.Delete(ctx, sessionID); err != nil {
		return errors.Wrapf(err, "delete session %s", sessionID)
	}
	return nil
}
