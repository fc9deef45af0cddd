package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// liveServer plays the remote side of one Live session: it acknowledges the
// setup, answers the first client content with a text turn and then closes.
func liveServer(t *testing.T, received chan<- map[string]any) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, "BidiGenerateContent"), r.URL.Path)

		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		for i := 0; i < 2; i++ {
			_, raw, err := conn.ReadMessage()
			if !assert.NoError(t, err) {
				return
			}
			msg := map[string]any{}
			assert.NoError(t, json.Unmarshal(raw, &msg))
			received <- msg

			if i == 0 {
				assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"setupComplete":{}}`)))
			}
		}

		reply := `{"serverContent":{"modelTurn":{"role":"model","parts":[{"text":"hi"}]},"turnComplete":true}}`
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(reply)))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
}

func TestGenAIConnector(t *testing.T) {
	received := make(chan map[string]any, 2)
	srv := liveServer(t, received)
	defer srv.Close()

	var (
		mu       sync.Mutex
		messages []*genai.LiveServerMessage
		reason   string
	)
	closed := make(chan struct{})
	opened := false

	c := NewGenAIConnector(zerolog.Nop(), WithBaseURL("ws://"+strings.TrimPrefix(srv.URL, "http://")+"/"))
	sess, err := c.Connect(context.Background(), ConnectParams{
		Model:  "test-model",
		APIKey: "test-key",
		Config: &genai.LiveConnectConfig{ResponseModalities: []genai.Modality{genai.ModalityText}},
	}, Callbacks{
		OnOpen: func() { opened = true },
		OnMessage: func(msg *genai.LiveServerMessage) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, msg)
		},
		OnClose: func(r string) {
			mu.Lock()
			reason = r
			mu.Unlock()
			close(closed)
		},
		OnError: func(err error) { t.Errorf("unexpected error: %v", err) },
	})
	require.NoError(t, err)
	assert.True(t, opened)

	setup := <-received
	assert.Contains(t, setup, "setup")

	require.NoError(t, sess.SendClientContent(genai.LiveClientContentInput{
		Turns:        []*genai.Content{genai.NewContentFromText("hello", genai.RoleUser)},
		TurnComplete: genai.Ptr(true),
	}))
	content := <-received
	assert.Contains(t, content, "clientContent")

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not close")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "bye", reason)
	require.Len(t, messages, 2)
	assert.NotNil(t, messages[0].SetupComplete)
	require.NotNil(t, messages[1].ServerContent)
	assert.Equal(t, "hi", messages[1].ServerContent.ModelTurn.Parts[0].Text)

	assert.NoError(t, sess.Close())
}

func TestGenAIConnector_DialFailure(t *testing.T) {
	c := NewGenAIConnector(zerolog.Nop(), WithBaseURL("ws://127.0.0.1:1/"))
	_, err := c.Connect(context.Background(), ConnectParams{Model: "m", APIKey: "k"}, Callbacks{})
	assert.Error(t, err)
}
