// Package conversation orchestrates the chat loop: user input in,
// webhook round-trip, history persistence, and spoken replies out.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvis/internal/bus"
	"github.com/normanking/jarvis/internal/chat"
)

// Canned assistant lines.
const (
	greetingText = "System online. How may I assist you today, sir?"
	purgedText   = "Memory purged. System reset."
	errorText    = "JARVIS is temporarily unavailable. Attempting to reconnect..."
)

// voiceModeCommand toggles voice mode when typed as a message.
const voiceModeCommand = "voice mode"

// controlWords interrupt the assistant when spoken.
var controlWords = map[string]bool{
	"stop":   true,
	"cancel": true,
	"wait":   true,
	"sleep":  true,
}

// Store persists conversation state.
type Store interface {
	LoadHistory() []chat.Message
	SaveHistory(messages []chat.Message)
	ClearHistory()
}

// Sender delivers one message to the assistant backend.
type Sender interface {
	Send(ctx context.Context, message, userID string) (string, error)
}

// Speech is the voice surface the controller drives.
type Speech interface {
	Speak(text string)
	CancelSpeech()
	SetPaused(paused bool)
	SetVoiceMode(on bool)
}

// ConfirmFunc asks the user to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// Config tunes controller behavior.
type Config struct {
	// StatusRevertDelay is how long the Offline status is shown after a
	// failed request before flipping back to Online.
	StatusRevertDelay time.Duration
	// Confirm gates history purges. Nil means purges are refused.
	Confirm ConfirmFunc
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		StatusRevertDelay: 5 * time.Second,
	}
}

// Controller owns the conversation state machine. All mutating methods
// are safe for concurrent use; SendText blocks for the round-trip and
// is expected to run off the UI goroutine.
type Controller struct {
	logger zerolog.Logger
	config *Config
	store  Store
	sender Sender
	speech Speech
	bus    *bus.EventBus
	userID string

	mu          sync.Mutex
	messages    []chat.Message
	status      chat.Status
	inFlight    bool
	revertTimer *time.Timer
}

// NewController loads persisted history and seeds the greeting when the
// conversation is empty.
func NewController(store Store, sender Sender, speech Speech, userID string, cfg *Config, eventBus *bus.EventBus, logger zerolog.Logger) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.StatusRevertDelay == 0 {
		cfg.StatusRevertDelay = 5 * time.Second
	}

	c := &Controller{
		logger: logger.With().Str("component", "conversation").Logger(),
		config: cfg,
		store:  store,
		sender: sender,
		speech: speech,
		bus:    eventBus,
		userID: userID,
		status: chat.StatusOnline,
	}

	c.messages = store.LoadHistory()
	if len(c.messages) == 0 {
		c.mu.Lock()
		c.appendLocked(chat.NewMessage(chat.RoleAssistant, greetingText))
		c.mu.Unlock()
	}

	c.logger.Info().Int("history", len(c.messages)).Str("user_id", userID).Msg("Conversation ready")
	return c
}

// SendText handles one outbound message end to end. It returns false
// when the message was rejected (empty text or a request in flight).
func (c *Controller) SendText(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if strings.EqualFold(text, voiceModeCommand) {
		c.speech.SetVoiceMode(true)
		c.logger.Info().Msg("Voice mode enabled by text command")
		return true
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		c.logger.Debug().Msg("Message rejected, request in flight")
		return false
	}
	c.inFlight = true
	c.appendLocked(chat.NewMessage(chat.RoleUser, text))
	c.mu.Unlock()

	c.publish(bus.EventTypeBusyChanged, map[string]any{"busy": true})

	// Half-duplex: never listen or speak while a request is pending.
	c.speech.CancelSpeech()
	c.speech.SetPaused(true)

	reply, err := c.sender.Send(context.Background(), text, c.userID)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Webhook request failed")
		c.appendLocked(chat.NewErrorMessage(errorText))
		c.setStatusLocked(chat.StatusOffline)
		c.armStatusRevertLocked()
	} else {
		c.appendLocked(chat.NewMessage(chat.RoleAssistant, reply))
		c.cancelStatusRevertLocked()
		c.setStatusLocked(chat.StatusOnline)
	}
	c.inFlight = false
	c.mu.Unlock()

	c.publish(bus.EventTypeBusyChanged, map[string]any{"busy": false})

	c.speech.SetPaused(false)
	if err == nil {
		c.speech.Speak(reply)
	}
	return true
}

// HandleVoiceCommand processes one final transcript. Control words
// interrupt the assistant and leave voice mode; anything else is sent
// as a regular message.
func (c *Controller) HandleVoiceCommand(text string) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if controlWords[normalized] {
		c.logger.Info().Str("word", normalized).Msg("Control word received")
		c.speech.CancelSpeech()
		c.speech.SetVoiceMode(false)
		return
	}
	c.SendText(text)
}

// ClearHistory purges the conversation after user confirmation and
// resets it to a single purge notice.
func (c *Controller) ClearHistory() bool {
	if c.config.Confirm == nil || !c.config.Confirm("Purge all conversation memory?") {
		return false
	}

	c.speech.CancelSpeech()
	c.store.ClearHistory()

	c.mu.Lock()
	c.messages = []chat.Message{chat.NewMessage(chat.RoleAssistant, purgedText)}
	c.mu.Unlock()

	c.logger.Info().Msg("Conversation history purged")
	c.publish(bus.EventTypeHistoryReset, nil)
	return true
}

// Messages returns a copy of the current transcript.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Status returns the current connection status.
func (c *Controller) Status() chat.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// InFlight reports whether a request is pending.
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// UserID returns the persistent user identity.
func (c *Controller) UserID() string {
	return c.userID
}

// Close cancels pending timers.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelStatusRevertLocked()
	c.mu.Unlock()
}

// appendLocked adds a message, persists the transcript, and notifies
// subscribers. Caller must hold c.mu.
func (c *Controller) appendLocked(msg chat.Message) {
	c.messages = append(c.messages, msg)
	c.store.SaveHistory(c.messages)
	c.publish(bus.EventTypeMessageAppended, map[string]any{"message": msg})
}

// setStatusLocked updates the status and notifies on change.
// Caller must hold c.mu.
func (c *Controller) setStatusLocked(status chat.Status) {
	if c.status == status {
		return
	}
	c.status = status
	c.publish(bus.EventTypeStatusChanged, map[string]any{"status": status})
}

// armStatusRevertLocked schedules the flip back to Online after a
// failure. Rearming replaces any pending timer. Caller must hold c.mu.
func (c *Controller) armStatusRevertLocked() {
	c.cancelStatusRevertLocked()
	c.revertTimer = time.AfterFunc(c.config.StatusRevertDelay, func() {
		c.mu.Lock()
		c.revertTimer = nil
		c.setStatusLocked(chat.StatusOnline)
		c.mu.Unlock()
	})
}

func (c *Controller) cancelStatusRevertLocked() {
	if c.revertTimer != nil {
		c.revertTimer.Stop()
		c.revertTimer = nil
	}
}

func (c *Controller) publish(eventType bus.EventType, data map[string]any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.Event{Type: eventType, Data: data})
}
