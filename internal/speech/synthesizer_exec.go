package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ExecSynthesizerConfig configures the native TTS command.
type ExecSynthesizerConfig struct {
	// PreferredVoice is matched (case-insensitive substring) against the
	// engine's voice names; no match falls back to the engine default.
	PreferredVoice string
	// Binary overrides auto-detection (say, espeak-ng, espeak).
	Binary string
}

// DefaultExecSynthesizerConfig returns sensible defaults.
func DefaultExecSynthesizerConfig() *ExecSynthesizerConfig {
	return &ExecSynthesizerConfig{
		PreferredVoice: "David",
	}
}

type utterance struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// ExecSynthesizer drives the host's native text-to-speech command.
// At most one utterance plays at a time.
type ExecSynthesizer struct {
	logger zerolog.Logger
	config *ExecSynthesizerConfig
	binary string

	mu           sync.Mutex
	active       *utterance
	voices       []Voice
	voicesLoaded bool
	voice        string // resolved voice name, "" = engine default
}

// NewExecSynthesizer detects a native TTS binary and wraps it.
// Returns ErrEngineUnavailable when the host has none.
func NewExecSynthesizer(cfg *ExecSynthesizerConfig, logger zerolog.Logger) (*ExecSynthesizer, error) {
	if cfg == nil {
		cfg = DefaultExecSynthesizerConfig()
	}

	binary := cfg.Binary
	if binary == "" {
		binary = detectSynthBinary()
	}
	if binary == "" {
		return nil, ErrEngineUnavailable
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, ErrEngineUnavailable
	}

	s := &ExecSynthesizer{
		logger: logger.With().Str("component", "exec-synthesizer").Logger(),
		config: cfg,
		binary: binary,
	}

	s.logger.Info().Str("binary", binary).Msg("Speech synthesis available")
	return s, nil
}

func detectSynthBinary() string {
	var candidates []string
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	} else {
		candidates = []string{"espeak-ng", "espeak"}
	}

	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}
	return ""
}

// Speak starts one utterance, canceling any active one first.
func (s *ExecSynthesizer) Speak(text string, events SynthesizerEvents) error {
	s.Cancel()

	s.mu.Lock()
	voice := s.resolveVoiceLocked()

	ctx, cancel := context.WithCancel(context.Background())
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to start %s: %w", s.binary, err)
	}

	u := &utterance{cmd: cmd, cancel: cancel}
	s.active = u
	s.mu.Unlock()

	if events.OnStart != nil {
		events.OnStart()
	}

	go func() {
		err := cmd.Wait()
		if ctx.Err() != nil {
			err = nil // canceled utterances end silently
		}

		s.mu.Lock()
		if s.active == u {
			s.active = nil
		}
		s.mu.Unlock()
		cancel()

		if events.OnEnd != nil {
			events.OnEnd(err)
		}
	}()

	return nil
}

// Cancel stops the active utterance, if any.
func (s *ExecSynthesizer) Cancel() {
	s.mu.Lock()
	u := s.active
	s.active = nil
	s.mu.Unlock()

	if u != nil {
		u.cancel()
	}
}

// RefreshVoices drops the cached voice list; the preferred voice is
// re-resolved lazily on the next utterance.
func (s *ExecSynthesizer) RefreshVoices() {
	s.mu.Lock()
	s.voicesLoaded = false
	s.voices = nil
	s.voice = ""
	s.mu.Unlock()
}

// Voices returns the engine's voice list, loading it on first use.
func (s *ExecSynthesizer) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.voicesLoaded {
		s.loadVoicesLocked()
	}
	out := make([]Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// Close cancels any active utterance.
func (s *ExecSynthesizer) Close() error {
	s.Cancel()
	return nil
}

// resolveVoiceLocked picks the preferred voice from the engine's list,
// loading the list lazily. Caller must hold s.mu.
func (s *ExecSynthesizer) resolveVoiceLocked() string {
	if s.voice != "" {
		return s.voice
	}
	if s.config.PreferredVoice == "" {
		return ""
	}
	if !s.voicesLoaded {
		s.loadVoicesLocked()
	}

	want := strings.ToLower(s.config.PreferredVoice)
	for _, v := range s.voices {
		if strings.Contains(strings.ToLower(v.Name), want) {
			s.voice = v.Name
			s.logger.Debug().Str("voice", v.Name).Msg("Preferred voice resolved")
			break
		}
	}
	return s.voice
}

func (s *ExecSynthesizer) loadVoicesLocked() {
	s.voicesLoaded = true

	var out []byte
	var err error
	switch s.binary {
	case "say":
		out, err = exec.Command(s.binary, "-v", "?").Output()
	default:
		out, err = exec.Command(s.binary, "--voices").Output()
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list voices")
		return
	}

	if s.binary == "say" {
		s.voices = parseSayVoices(string(out))
	} else {
		s.voices = parseESpeakVoices(string(out))
	}
	s.logger.Debug().Int("count", len(s.voices)).Msg("Voice list loaded")
}

// parseSayVoices parses `say -v ?` output, e.g.
//
//	Alex                en_US    # Most people recognize me by my voice.
func parseSayVoices(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, " \r")
		if line == "" {
			continue
		}
		// Name may contain single spaces; columns are separated by runs
		// of two or more.
		idx := strings.Index(line, "  ")
		if idx <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		rest := strings.Fields(line[idx:])
		lang := ""
		if len(rest) > 0 {
			lang = rest[0]
		}
		voices = append(voices, Voice{Name: name, Language: lang})
	}
	return voices
}

// parseESpeakVoices parses `espeak-ng --voices` output, e.g.
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-US           M  american-english     gmw/en-US
func parseESpeakVoices(out string) []Voice {
	var voices []Voice
	for i, line := range strings.Split(out, "\n") {
		if i == 0 { // header
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Language: fields[1]})
	}
	return voices
}
