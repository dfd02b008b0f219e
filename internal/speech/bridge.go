package speech

import (
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State names the bridge's exclusive activity.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateSpeaking  State = "speaking"
)

// VoiceState is the externally visible snapshot of the bridge.
type VoiceState struct {
	VoiceMode bool
	Listening bool
	Speaking  bool
}

// Config configures the Bridge behavior.
type Config struct {
	// AutoListenDelay is the idle time before re-opening the microphone
	// while voice mode is on (default: 1500ms).
	AutoListenDelay time.Duration
	// OnCommand receives final transcripts.
	OnCommand func(text string)
	// OnStateChange is notified after every state transition.
	OnStateChange func(VoiceState)
}

// DefaultConfig returns sensible defaults for the bridge.
func DefaultConfig() *Config {
	return &Config{
		AutoListenDelay: 1500 * time.Millisecond,
	}
}

// markdown emphasis markers are stripped before synthesis
var markdownMarkers = regexp.MustCompile(`[*#]`)

// Bridge coordinates the recognizer and synthesizer so the two are
// never producing at the same time, and runs the auto-listen loop.
// Either engine may be nil; the corresponding capability is a no-op.
type Bridge struct {
	mu          sync.Mutex
	recognizer  Recognizer
	synthesizer Synthesizer
	config      *Config
	logger      zerolog.Logger

	voiceMode bool
	listening bool
	speaking  bool
	paused    bool
	closed    bool

	// autoListen is a singleton: re-arming always cancels the prior timer.
	autoListen *time.Timer
}

// NewBridge creates a bridge over the given engines. Nil engines are
// allowed and degrade that capability to a no-op.
func NewBridge(recognizer Recognizer, synthesizer Synthesizer, cfg *Config, logger zerolog.Logger) *Bridge {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AutoListenDelay <= 0 {
		cfg.AutoListenDelay = 1500 * time.Millisecond
	}

	return &Bridge{
		recognizer:  recognizer,
		synthesizer: synthesizer,
		config:      cfg,
		logger:      logger.With().Str("component", "speech-bridge").Logger(),
	}
}

// SetCommandHandler routes final transcripts to fn. The conversation
// controller is constructed after the bridge, so this is wired late;
// transcripts arriving before then are dropped.
func (b *Bridge) SetCommandHandler(fn func(text string)) {
	b.mu.Lock()
	b.config.OnCommand = fn
	b.mu.Unlock()
}

// VoiceState returns the current snapshot.
func (b *Bridge) VoiceState() VoiceState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return VoiceState{VoiceMode: b.voiceMode, Listening: b.listening, Speaking: b.speaking}
}

// State returns the bridge's current activity.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.speaking:
		return StateSpeaking
	case b.listening:
		return StateListening
	default:
		return StateIdle
	}
}

// VoiceMode reports whether the auto-listen/speak loop is engaged.
func (b *Bridge) VoiceMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voiceMode
}

// SetVoiceMode engages or disengages the voice loop. Disengaging
// cancels active speech and any pending auto-listen.
func (b *Bridge) SetVoiceMode(on bool) {
	b.mu.Lock()
	if b.closed || b.voiceMode == on {
		b.mu.Unlock()
		return
	}
	b.voiceMode = on
	if !on {
		b.cancelAutoListenLocked()
	}
	b.mu.Unlock()

	if on {
		b.logger.Info().Msg("Voice mode enabled")
		b.notify()
		b.StartListening()
		return
	}

	b.logger.Info().Msg("Voice mode disabled")
	b.CancelSpeech()
	b.notify()
}

// ToggleVoice flips voice mode and returns the new value.
func (b *Bridge) ToggleVoice() bool {
	on := !b.VoiceMode()
	b.SetVoiceMode(on)
	return on
}

// SetPaused suspends the auto-listen loop, e.g. while a webhook call is
// in flight. Unpausing re-arms the loop.
func (b *Bridge) SetPaused(paused bool) {
	b.mu.Lock()
	b.paused = paused
	b.rearmLocked()
	b.mu.Unlock()
}

// StartListening begins one recognition attempt if the bridge is idle.
// Engine start errors (e.g. "already started") are swallowed.
func (b *Bridge) StartListening() {
	b.mu.Lock()
	if b.closed || b.recognizer == nil || b.listening || b.speaking {
		b.mu.Unlock()
		return
	}
	rec := b.recognizer
	b.mu.Unlock()

	err := rec.Start(RecognizerEvents{
		OnStart:  b.handleListenStart,
		OnResult: b.handleTranscript,
		OnEnd:    b.handleListenEnd,
	})
	if err != nil {
		b.logger.Debug().Err(err).Msg("Recognition start failed")
		// Re-arm so a transient engine failure (e.g. the transcription
		// daemon restarting) does not stall the voice loop.
		b.mu.Lock()
		b.rearmLocked()
		b.mu.Unlock()
	}
}

// StopListening aborts the in-progress recognition attempt, if any.
func (b *Bridge) StopListening() {
	if b.recognizer != nil {
		b.recognizer.Stop()
	}
}

// Speak plays text aloud while voice mode is on. Any in-progress
// utterance is canceled first; markdown emphasis markers are stripped.
func (b *Bridge) Speak(text string) {
	b.mu.Lock()
	if b.closed || !b.voiceMode {
		b.mu.Unlock()
		return
	}
	synth := b.synthesizer
	b.mu.Unlock()

	if synth == nil {
		return // text-only host
	}

	b.CancelSpeech()

	spoken := markdownMarkers.ReplaceAllString(text, "")
	err := synth.Speak(spoken, SynthesizerEvents{
		OnStart: b.handleSpeechStart,
		OnEnd:   b.handleSpeechEnd,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("Synthesis failed to start")
	}
}

// CancelSpeech stops the active utterance, if any.
func (b *Bridge) CancelSpeech() {
	b.mu.Lock()
	wasSpeaking := b.speaking
	b.speaking = false
	b.rearmLocked()
	b.mu.Unlock()

	if b.synthesizer != nil {
		b.synthesizer.Cancel()
	}
	if wasSpeaking {
		b.notify()
	}
}

// RefreshVoices re-resolves the preferred synthesis voice.
func (b *Bridge) RefreshVoices() {
	if b.synthesizer != nil {
		b.synthesizer.RefreshVoices()
	}
}

// Close tears the bridge down: no further listens are scheduled and
// active engine work is aborted.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.voiceMode = false
	b.cancelAutoListenLocked()
	b.mu.Unlock()

	if b.recognizer != nil {
		b.recognizer.Stop()
		b.recognizer.Close()
	}
	if b.synthesizer != nil {
		b.synthesizer.Cancel()
		b.synthesizer.Close()
	}
	return nil
}

func (b *Bridge) handleListenStart() {
	b.mu.Lock()
	b.listening = true
	b.cancelAutoListenLocked()
	b.mu.Unlock()
	b.notify()
}

func (b *Bridge) handleListenEnd() {
	b.mu.Lock()
	b.listening = false
	b.rearmLocked()
	b.mu.Unlock()
	b.notify()
}

func (b *Bridge) handleTranscript(text string) {
	b.logger.Debug().Str("text", text).Msg("Transcript received")
	b.mu.Lock()
	handler := b.config.OnCommand
	b.mu.Unlock()
	if handler != nil {
		handler(text)
	}
}

func (b *Bridge) handleSpeechStart() {
	b.mu.Lock()
	b.speaking = true
	b.cancelAutoListenLocked()
	b.mu.Unlock()
	b.notify()
}

func (b *Bridge) handleSpeechEnd(err error) {
	b.mu.Lock()
	if !b.speaking {
		// Already cleared by an explicit cancel.
		b.mu.Unlock()
		return
	}
	b.speaking = false
	b.rearmLocked()
	b.mu.Unlock()

	if err != nil {
		b.logger.Warn().Err(err).Msg("Synthesis ended with error")
	}
	b.notify()
}

// rearmLocked cancels any pending auto-listen timer and schedules a new
// one when every guard holds. Caller must hold b.mu.
func (b *Bridge) rearmLocked() {
	b.cancelAutoListenLocked()
	if !b.voiceMode || b.listening || b.speaking || b.paused || b.closed || b.recognizer == nil {
		return
	}
	b.autoListen = time.AfterFunc(b.config.AutoListenDelay, b.autoListenFire)
}

func (b *Bridge) autoListenFire() {
	b.mu.Lock()
	b.autoListen = nil
	// Guards are re-checked at fire time; any change since scheduling
	// cancels the action.
	if !b.voiceMode || b.listening || b.speaking || b.paused || b.closed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.StartListening()
}

func (b *Bridge) cancelAutoListenLocked() {
	if b.autoListen != nil {
		b.autoListen.Stop()
		b.autoListen = nil
	}
}

func (b *Bridge) notify() {
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(b.VoiceState())
	}
}
