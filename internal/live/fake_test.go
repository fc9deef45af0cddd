package live

import (
	"context"
	"sync"

	"github.com/m2tx/live_bridge/internal/credentials"
	"google.golang.org/genai"
)

// fakeSession records every send. Hooks run synchronously inside the send and
// may fire callbacks, which is how tests script the remote side.
type fakeSession struct {
	mu            sync.Mutex
	clientContent []genai.LiveClientContentInput
	toolResponses []genai.LiveToolResponseInput
	realtime      []genai.LiveRealtimeInput
	closes        int
	sendErr       error
	closeErr      error

	callbacks Callbacks

	afterClientContent func(cb Callbacks)
	afterToolResponse  func(cb Callbacks)
}

func (s *fakeSession) SendClientContent(input genai.LiveClientContentInput) error {
	s.mu.Lock()
	if s.sendErr != nil {
		s.mu.Unlock()
		return s.sendErr
	}
	s.clientContent = append(s.clientContent, input)
	hook, cb := s.afterClientContent, s.callbacks
	s.mu.Unlock()

	if hook != nil {
		hook(cb)
	}
	return nil
}

func (s *fakeSession) SendToolResponse(input genai.LiveToolResponseInput) error {
	s.mu.Lock()
	if s.sendErr != nil {
		s.mu.Unlock()
		return s.sendErr
	}
	s.toolResponses = append(s.toolResponses, input)
	hook, cb := s.afterToolResponse, s.callbacks
	s.mu.Unlock()

	if hook != nil {
		hook(cb)
	}
	return nil
}

func (s *fakeSession) SendRealtimeInput(input genai.LiveRealtimeInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.realtime = append(s.realtime, input)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *fakeSession) snapshot() (cc []genai.LiveClientContentInput, tr []genai.LiveToolResponseInput, rt []genai.LiveRealtimeInput, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(cc, s.clientContent...), append(tr, s.toolResponses...), append(rt, s.realtime...), s.closes
}

type fakeConnector struct {
	mu         sync.Mutex
	session    *fakeSession
	connectErr error
	calls      int
	params     ConnectParams
}

func (c *fakeConnector) Connect(_ context.Context, params ConnectParams, callbacks Callbacks) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	c.params = params
	if c.connectErr != nil {
		return nil, c.connectErr
	}

	c.session.mu.Lock()
	c.session.callbacks = callbacks
	c.session.mu.Unlock()

	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	return c.session, nil
}

func (c *fakeConnector) snapshot() (int, ConnectParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.params
}

func textMessage(text string) *genai.LiveServerMessage {
	return &genai.LiveServerMessage{
		ServerContent: &genai.LiveServerContent{
			ModelTurn: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: text}},
			},
		},
	}
}

func staticKey(key string) credentials.Resolver {
	return func(credentials.PluginKey, string) (string, error) { return key, nil }
}
