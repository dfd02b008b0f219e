package speech

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	mu     sync.Mutex
	starts int
	active bool
	events RecognizerEvents
}

func (f *fakeRecognizer) Start(events RecognizerEvents) error {
	f.mu.Lock()
	if f.active {
		f.mu.Unlock()
		return ErrAlreadyListening
	}
	f.starts++
	f.active = true
	f.events = events
	f.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.end()
}

func (f *fakeRecognizer) Close() error {
	f.end()
	return nil
}

// finish delivers a final transcript and ends the session.
func (f *fakeRecognizer) finish(text string) {
	f.mu.Lock()
	events := f.events
	f.mu.Unlock()

	if events.OnResult != nil {
		events.OnResult(text)
	}
	f.end()
}

func (f *fakeRecognizer) end() {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return
	}
	f.active = false
	events := f.events
	f.mu.Unlock()

	if events.OnEnd != nil {
		events.OnEnd()
	}
}

func (f *fakeRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeSynthesizer struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
	active  bool
	events  SynthesizerEvents
}

func (f *fakeSynthesizer) Speak(text string, events SynthesizerEvents) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.active = true
	f.events = events
	f.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}
	return nil
}

func (f *fakeSynthesizer) Cancel() {
	f.mu.Lock()
	active := f.active
	f.active = false
	f.cancels++
	events := f.events
	f.mu.Unlock()

	if active && events.OnEnd != nil {
		events.OnEnd(nil)
	}
}

// finish ends the active utterance normally.
func (f *fakeSynthesizer) finish() {
	f.mu.Lock()
	active := f.active
	f.active = false
	events := f.events
	f.mu.Unlock()

	if active && events.OnEnd != nil {
		events.OnEnd(nil)
	}
}

func (f *fakeSynthesizer) RefreshVoices() {}

func (f *fakeSynthesizer) Close() error { return nil }

func (f *fakeSynthesizer) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func newTestBridge(rec Recognizer, synth Synthesizer, cfg *Config) *Bridge {
	if cfg == nil {
		cfg = &Config{AutoListenDelay: 10 * time.Millisecond}
	}
	return NewBridge(rec, synth, cfg, zerolog.Nop())
}

func TestSetVoiceMode_StartsListening(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)

	assert.Equal(t, 1, rec.startCount())
	assert.Equal(t, StateListening, b.State())
	assert.True(t, b.VoiceMode())
}

func TestSetVoiceMode_Idempotent(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	b.SetVoiceMode(true)

	assert.Equal(t, 1, rec.startCount())
}

func TestToggleVoice(t *testing.T) {
	b := newTestBridge(&fakeRecognizer{}, &fakeSynthesizer{}, nil)
	defer b.Close()

	assert.True(t, b.ToggleVoice())
	assert.False(t, b.ToggleVoice())
	assert.False(t, b.VoiceMode())
}

func TestTranscript_RoutedToCommand(t *testing.T) {
	rec := &fakeRecognizer{}
	var got string
	var mu sync.Mutex
	cfg := &Config{
		AutoListenDelay: time.Hour, // keep the loop out of this test
		OnCommand: func(text string) {
			mu.Lock()
			got = text
			mu.Unlock()
		},
	}
	b := newTestBridge(rec, &fakeSynthesizer{}, cfg)
	defer b.Close()

	b.SetVoiceMode(true)
	rec.finish("status report")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "status report", got)
}

func TestAutoListen_RearmsAfterSessionEnds(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	require.Equal(t, 1, rec.startCount())

	rec.end()
	assert.Eventually(t, func() bool {
		return rec.startCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestAutoListen_StopsWhenVoiceModeOff(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	rec.end()
	b.SetVoiceMode(false)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.startCount())
}

func TestAutoListen_SuppressedWhilePaused(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	b.SetPaused(true)
	rec.end()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.startCount())

	b.SetPaused(false)
	assert.Eventually(t, func() bool {
		return rec.startCount() == 2
	}, time.Second, 5*time.Millisecond)
}

// failingRecognizer rejects every start attempt, like a websocket
// recognizer whose daemon is down.
type failingRecognizer struct {
	mu     sync.Mutex
	starts int
}

func (f *failingRecognizer) Start(RecognizerEvents) error {
	f.mu.Lock()
	f.starts++
	f.mu.Unlock()
	return errors.New("dial tcp: connection refused")
}

func (f *failingRecognizer) Stop() {}

func (f *failingRecognizer) Close() error { return nil }

func (f *failingRecognizer) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func TestAutoListen_RetriesAfterStartFailure(t *testing.T) {
	rec := &failingRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)
	defer b.Close()

	b.SetVoiceMode(true)

	// The loop keeps retrying instead of stalling on the first failure.
	assert.Eventually(t, func() bool {
		return rec.startCount() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSetCommandHandler_RoutesTranscripts(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, &Config{AutoListenDelay: time.Hour})
	defer b.Close()

	var mu sync.Mutex
	var got string
	b.SetCommandHandler(func(text string) {
		mu.Lock()
		got = text
		mu.Unlock()
	})

	b.SetVoiceMode(true)
	rec.finish("engage")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "engage", got)
}

func TestSpeak_RequiresVoiceMode(t *testing.T) {
	synth := &fakeSynthesizer{}
	b := newTestBridge(&fakeRecognizer{}, synth, nil)
	defer b.Close()

	b.Speak("hello")

	assert.Empty(t, synth.spokenTexts())
}

func TestSpeak_StripsMarkdownMarkers(t *testing.T) {
	synth := &fakeSynthesizer{}
	b := newTestBridge(&fakeRecognizer{}, synth, &Config{AutoListenDelay: time.Hour})
	defer b.Close()

	b.SetVoiceMode(true)
	b.Speak("**Systems** nominal # all green")

	spoken := synth.spokenTexts()
	require.Len(t, spoken, 1)
	assert.Equal(t, "Systems nominal  all green", spoken[0])
	assert.Equal(t, StateSpeaking, b.State())
}

func TestSpeak_CancelsPreviousUtterance(t *testing.T) {
	synth := &fakeSynthesizer{}
	b := newTestBridge(&fakeRecognizer{}, synth, &Config{AutoListenDelay: time.Hour})
	defer b.Close()

	b.SetVoiceMode(true)
	b.Speak("first")
	b.Speak("second")

	assert.Len(t, synth.spokenTexts(), 2)
	assert.Equal(t, StateSpeaking, b.State())
}

func TestCancelSpeech_ClearsSpeakingState(t *testing.T) {
	synth := &fakeSynthesizer{}
	b := newTestBridge(&fakeRecognizer{}, synth, &Config{AutoListenDelay: time.Hour})
	defer b.Close()

	b.SetVoiceMode(true)
	b.Speak("a long soliloquy")
	require.Equal(t, StateSpeaking, b.State())

	b.CancelSpeech()
	assert.Equal(t, StateIdle, b.State())
}

func TestSpeechEnd_RearmsAutoListen(t *testing.T) {
	rec := &fakeRecognizer{}
	synth := &fakeSynthesizer{}
	b := newTestBridge(rec, synth, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	rec.end() // close the initial session so speech can start cleanly
	b.Speak("done speaking soon")
	synth.finish()

	assert.Eventually(t, func() bool {
		return rec.startCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestNilEngines_Degrades(t *testing.T) {
	b := newTestBridge(nil, nil, nil)
	defer b.Close()

	b.SetVoiceMode(true)
	b.StartListening()
	b.Speak("hello")
	b.CancelSpeech()
	b.RefreshVoices()

	state := b.VoiceState()
	assert.True(t, state.VoiceMode)
	assert.False(t, state.Listening)
	assert.False(t, state.Speaking)
}

func TestClose_StopsEverything(t *testing.T) {
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, nil)

	b.SetVoiceMode(true)
	require.NoError(t, b.Close())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.startCount())
	assert.False(t, b.VoiceMode())
}

func TestStateChange_Notifications(t *testing.T) {
	var mu sync.Mutex
	var states []VoiceState
	cfg := &Config{
		AutoListenDelay: time.Hour,
		OnStateChange: func(s VoiceState) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	}
	rec := &fakeRecognizer{}
	b := newTestBridge(rec, &fakeSynthesizer{}, cfg)
	defer b.Close()

	b.SetVoiceMode(true)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	last := states[len(states)-1]
	assert.True(t, last.VoiceMode)
	assert.True(t, last.Listening)
}
