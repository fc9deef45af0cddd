package live

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const DefaultAPIVersion = "v1beta"

// GenAIConnector opens sessions with the Gemini Live API.
type GenAIConnector struct {
	apiVersion string
	baseURL    string
	logger     zerolog.Logger
}

type GenAIOption func(*GenAIConnector)

// WithAPIVersion sets the API version used for the websocket endpoint.
func WithAPIVersion(v string) GenAIOption {
	return func(c *GenAIConnector) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

// WithBaseURL overrides the API endpoint, e.g. "ws://127.0.0.1:8081/".
func WithBaseURL(u string) GenAIOption {
	return func(c *GenAIConnector) { c.baseURL = u }
}

func NewGenAIConnector(logger zerolog.Logger, opts ...GenAIOption) *GenAIConnector {
	c := &GenAIConnector{
		apiVersion: DefaultAPIVersion,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GenAIConnector) Connect(ctx context.Context, params ConnectParams, callbacks Callbacks) (Session, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: c.apiVersion,
			BaseURL:    c.baseURL,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	session, err := client.Live.Connect(ctx, params.Model, params.Config)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", params.Model)
	}

	s := &genaiSession{session: session}

	if callbacks.OnOpen != nil {
		callbacks.OnOpen()
	}
	go s.receive(callbacks)

	return s, nil
}

// genaiSession turns the blocking Receive loop of a genai.Session into callbacks.
type genaiSession struct {
	session *genai.Session
	closing atomic.Bool
}

func (s *genaiSession) SendClientContent(input genai.LiveClientContentInput) error {
	return s.session.SendClientContent(input)
}

func (s *genaiSession) SendToolResponse(input genai.LiveToolResponseInput) error {
	return s.session.SendToolResponse(input)
}

func (s *genaiSession) SendRealtimeInput(input genai.LiveRealtimeInput) error {
	return s.session.SendRealtimeInput(input)
}

func (s *genaiSession) Close() error {
	s.closing.Store(true)
	return s.session.Close()
}

func (s *genaiSession) receive(callbacks Callbacks) {
	for {
		msg, err := s.session.Receive()
		if err != nil {
			if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if callbacks.OnClose != nil {
					callbacks.OnClose(closeReason(err, s.closing.Load()))
				}
			} else if callbacks.OnError != nil {
				callbacks.OnError(err)
			}
			return
		}

		if callbacks.OnMessage != nil {
			callbacks.OnMessage(msg)
		}
	}
}

func closeReason(err error, local bool) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Text != "" {
			return ce.Text
		}
		return fmt.Sprintf("close code %d", ce.Code)
	}
	if local {
		return "closed by client"
	}
	return err.Error()
}
