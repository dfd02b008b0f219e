package speech

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSRecognizerConfig configures the websocket speech recognizer.
type WSRecognizerConfig struct {
	// URL of the recognizer service, e.g. ws://localhost:5679.
	URL string
	// Locale requested for recognition, e.g. en-US.
	Locale string
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
}

// DefaultWSRecognizerConfig returns sensible defaults.
func DefaultWSRecognizerConfig() *WSRecognizerConfig {
	return &WSRecognizerConfig{
		Locale:           "en-US",
		HandshakeTimeout: 5 * time.Second,
	}
}

// recognizerEvent is one message from the recognizer service.
type recognizerEvent struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
}

// WSRecognizer captures one utterance per session over a websocket
// transcription service. Each Start opens a fresh connection that is
// torn down once a final transcript (or an error) arrives.
type WSRecognizer struct {
	logger zerolog.Logger
	config *WSRecognizerConfig
	dialer *websocket.Dialer

	mu     sync.Mutex
	conn   *websocket.Conn
	active bool
	closed bool
}

// NewWSRecognizer wraps a websocket transcription service.
// Returns ErrEngineUnavailable when no service URL is configured.
func NewWSRecognizer(cfg *WSRecognizerConfig, logger zerolog.Logger) (*WSRecognizer, error) {
	if cfg == nil {
		cfg = DefaultWSRecognizerConfig()
	}
	if cfg.URL == "" {
		return nil, ErrEngineUnavailable
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}

	r := &WSRecognizer{
		logger: logger.With().Str("component", "ws-recognizer").Logger(),
		config: cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}

	r.logger.Info().Str("url", cfg.URL).Msg("Speech recognition available")
	return r, nil
}

// Start opens a session and blocks the read loop in a goroutine until a
// final transcript arrives or the session ends.
func (r *WSRecognizer) Start(events RecognizerEvents) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrEngineUnavailable
	}
	if r.active {
		r.mu.Unlock()
		return ErrAlreadyListening
	}
	r.active = true
	r.mu.Unlock()

	conn, _, err := r.dialer.Dial(r.config.URL, nil)
	if err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return fmt.Errorf("failed to connect to recognizer: %w", err)
	}

	start := map[string]string{"type": "start", "language": r.config.Locale}
	if err := conn.WriteJSON(start); err != nil {
		conn.Close()
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return fmt.Errorf("failed to start recognition session: %w", err)
	}

	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}

	go r.readLoop(conn, events)
	return nil
}

func (r *WSRecognizer) readLoop(conn *websocket.Conn, events RecognizerEvents) {
	defer func() {
		conn.Close()
		r.mu.Lock()
		if r.conn == conn {
			r.conn = nil
		}
		r.active = false
		r.mu.Unlock()
		if events.OnEnd != nil {
			events.OnEnd()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			r.logger.Debug().Err(err).Msg("Recognition session ended")
			return
		}

		var ev recognizerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			r.logger.Warn().Err(err).Msg("Malformed recognizer event")
			continue
		}

		switch ev.Type {
		case "transcript", "result":
			if ev.Final && ev.Text != "" {
				r.logger.Debug().Str("text", ev.Text).Msg("Final transcript")
				if events.OnResult != nil {
					events.OnResult(ev.Text)
				}
				return
			}
		case "error":
			r.logger.Warn().Str("text", ev.Text).Msg("Recognizer error")
			return
		case "end":
			return
		}
	}
}

// Stop tears down the current session, if any.
func (r *WSRecognizer) Stop() {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Close stops any session and prevents new ones.
func (r *WSRecognizer) Close() error {
	r.mu.Lock()
	r.closed = true
	conn := r.conn
	r.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	return nil
}
