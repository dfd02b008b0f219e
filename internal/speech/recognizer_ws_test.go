package speech

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{}

// newWSServer runs handler for each websocket connection and returns
// the ws:// URL.
func newWSServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestNewWSRecognizer_NoURL(t *testing.T) {
	_, err := NewWSRecognizer(&WSRecognizerConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrEngineUnavailable)
}

func TestWSRecognizer_FinalTranscript(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		var start map[string]string
		if err := conn.ReadJSON(&start); err != nil {
			return
		}
		if start["type"] != "start" || start["language"] != "en-US" {
			return
		}
		conn.WriteJSON(map[string]any{"type": "transcript", "text": "run a", "final": false})
		conn.WriteJSON(map[string]any{"type": "transcript", "text": "run a diagnostic", "final": true})
	})

	rec, err := NewWSRecognizer(&WSRecognizerConfig{URL: url, Locale: "en-US"}, zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	started := make(chan struct{})
	results := make(chan string, 1)
	ended := make(chan struct{})

	err = rec.Start(RecognizerEvents{
		OnStart:  func() { close(started) },
		OnResult: func(text string) { results <- text },
		OnEnd:    func() { close(ended) },
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("OnStart not fired")
	}

	select {
	case text := <-results:
		assert.Equal(t, "run a diagnostic", text)
	case <-time.After(time.Second):
		t.Fatal("no transcript received")
	}

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnd not fired")
	}
}

func TestWSRecognizer_AlreadyListening(t *testing.T) {
	block := make(chan struct{})
	url := newWSServer(t, func(conn *websocket.Conn) {
		var start map[string]string
		conn.ReadJSON(&start)
		<-block
	})
	defer close(block)

	rec, err := NewWSRecognizer(&WSRecognizerConfig{URL: url}, zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Start(RecognizerEvents{}))
	assert.ErrorIs(t, rec.Start(RecognizerEvents{}), ErrAlreadyListening)
}

func TestWSRecognizer_StopEndsSession(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		var start map[string]string
		conn.ReadJSON(&start)
		// Hold the session open until the client drops it.
		conn.ReadMessage()
	})

	rec, err := NewWSRecognizer(&WSRecognizerConfig{URL: url}, zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	ended := make(chan struct{})
	require.NoError(t, rec.Start(RecognizerEvents{
		OnEnd: func() { close(ended) },
	}))

	rec.Stop()
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("OnEnd not fired after Stop")
	}
}

func TestWSRecognizer_DialFailure(t *testing.T) {
	rec, err := NewWSRecognizer(&WSRecognizerConfig{
		URL:              "ws://127.0.0.1:1",
		HandshakeTimeout: 200 * time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	err = rec.Start(RecognizerEvents{})
	require.Error(t, err)

	// A failed dial leaves the recognizer available for the next try.
	err = rec.Start(RecognizerEvents{})
	assert.NotErrorIs(t, err, ErrAlreadyListening)
}
