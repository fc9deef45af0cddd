package live

import (
	"context"

	"google.golang.org/genai"
)

// Session is the send side of a live connection.
type Session interface {
	SendClientContent(input genai.LiveClientContentInput) error
	SendToolResponse(input genai.LiveToolResponseInput) error
	SendRealtimeInput(input genai.LiveRealtimeInput) error
	Close() error
}

// Callbacks receive the events of a live connection. They may be invoked from
// a goroutine owned by the connector.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(msg *genai.LiveServerMessage)
	OnClose   func(reason string)
	OnError   func(err error)
}

// ConnectParams describe the session to open.
type ConnectParams struct {
	Model  string
	APIKey string
	Config *genai.LiveConnectConfig
}

// Connector opens live sessions.
type Connector interface {
	Connect(ctx context.Context, params ConnectParams, callbacks Callbacks) (Session, error)
}
