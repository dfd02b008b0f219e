// Package speech bridges the conversation to host speech engines.
// Both engines are optional capabilities: a missing recognizer or
// synthesizer degrades the bridge to text-only operation, it never
// fails the application.
package speech

import "errors"

// Common errors
var (
	// ErrEngineUnavailable means no usable engine exists on this host.
	ErrEngineUnavailable = errors.New("speech engine unavailable")
	// ErrAlreadyListening is returned when recognition is started twice;
	// the bridge swallows it.
	ErrAlreadyListening = errors.New("recognition already started")
)

// RecognizerEvents receives callbacks for one recognition attempt.
// Callbacks fire on background goroutines.
type RecognizerEvents struct {
	OnStart  func()            // recognition engine began capturing
	OnResult func(text string) // final transcript for the utterance
	OnEnd    func()            // capture ended, with or without a transcript
}

// Recognizer captures a single utterance per Start call.
type Recognizer interface {
	// Start begins one recognition attempt. Returns ErrAlreadyListening
	// if an attempt is already in progress.
	Start(events RecognizerEvents) error
	// Stop aborts the in-progress attempt, if any. OnEnd still fires.
	Stop()
	Close() error
}

// SynthesizerEvents receives callbacks for one utterance.
type SynthesizerEvents struct {
	OnStart func()          // playback began
	OnEnd   func(err error) // playback finished, failed or was canceled
}

// Voice describes an available synthesis voice.
type Voice struct {
	Name     string
	Language string
}

// Synthesizer plays at most one utterance at a time.
type Synthesizer interface {
	// Speak starts one utterance, canceling any active one first.
	Speak(text string, events SynthesizerEvents) error
	// Cancel stops the active utterance, if any.
	Cancel()
	// RefreshVoices invalidates the cached voice list so the preferred
	// voice is re-resolved on next use.
	RefreshVoices()
	Close() error
}
