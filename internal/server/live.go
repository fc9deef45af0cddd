package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/m2tx/live_bridge/internal/agent"
	"github.com/m2tx/live_bridge/internal/asyncchan"
	"github.com/m2tx/live_bridge/internal/live"
	"github.com/m2tx/live_bridge/internal/metrics"
	"github.com/m2tx/live_bridge/internal/model"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const writeWait = 10 * time.Second

// ClientFrame is a message from the client: a request, or done to signal that
// no more requests follow.
type ClientFrame struct {
	model.Request
	Done bool `json:"done,omitempty"`
}

// ServerFrame is a message to the client. The first frame carries the
// session id; then come chunks, and finally either done or an error.
type ServerFrame struct {
	SessionID string               `json:"sessionId,omitempty"`
	Chunk     *model.ResponseChunk `json:"chunk,omitempty"`
	Error     *ErrorFrame          `json:"error,omitempty"`
	Done      bool                 `json:"done,omitempty"`
}

type ErrorFrame struct {
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func errorFrame(err error) *ErrorFrame {
	f := &ErrorFrame{Status: "UNKNOWN", Message: err.Error()}

	var le *live.Error
	switch {
	case errors.As(err, &le):
		f.Kind = le.Kind.String()
		f.Status = le.Status
	case errors.Is(err, context.Canceled):
		f.Status = "CANCELLED"
	}
	return f
}

// handleLive runs one conversation per websocket connection.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	metrics.WebsocketConnections.Inc()
	defer metrics.WebsocketConnections.Dec()

	logger := s.logger.With().Str("session_id", sessionID).Logger()
	logger.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := asyncchan.New[*model.Request]()
	conv := s.agent.Start(ctx, sessionID, requests)
	defer func() {
		conv.Close()
		<-conv.Done()
	}()

	var finished atomic.Bool

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return readRequests(conn, requests, &finished)
	})
	eg.Go(func() error {
		defer finished.Store(true)
		return writeFrames(ctx, conn, sessionID, conv, logger)
	})

	if err := eg.Wait(); err != nil {
		logger.Debug().Err(err).Msg("client connection ended")
	}
	logger.Debug().Msg("client disconnected")
}

// readRequests feeds client frames into requests until the client sends done
// or goes away.
func readRequests(conn *websocket.Conn, requests *asyncchan.Channel[*model.Request], finished *atomic.Bool) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if finished.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				requests.Close()
				return nil
			}
			requests.Fail(errors.Wrap(err, "read client frame"))
			return err
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			requests.Fail(errors.Wrap(err, "decode client frame"))
			return nil
		}

		if len(frame.Messages) > 0 || frame.Config != nil || len(frame.Tools) > 0 {
			req := frame.Request
			requests.Enqueue(&req)
		}
		if frame.Done {
			requests.Close()
			return nil
		}
	}
}

// writeFrames is the only writer on conn.
func writeFrames(ctx context.Context, conn *websocket.Conn, sessionID string, conv *agent.Conversation, logger zerolog.Logger) error {
	if err := writeFrame(conn, ServerFrame{SessionID: sessionID}); err != nil {
		return err
	}

	var last ServerFrame
	for {
		chunk, err := conv.Next(ctx)
		if errors.Is(err, io.EOF) {
			last = ServerFrame{Done: true}
			break
		}
		if err != nil {
			logger.Debug().Err(err).Msg("conversation failed")
			last = ServerFrame{Error: errorFrame(err)}
			break
		}

		if err := writeFrame(conn, ServerFrame{Chunk: chunk}); err != nil {
			return err
		}
	}

	if err := writeFrame(conn, last); err != nil {
		return err
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	// unblock the reader if the client never answers the close
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	return nil
}

func writeFrame(conn *websocket.Conn, f ServerFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return errors.Wrap(conn.WriteJSON(f), "write frame")
}
