// JARVIS is a terminal chat client for a webhook-backed assistant with
// optional voice interaction.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/normanking/jarvis/internal/bus"
	"github.com/normanking/jarvis/internal/chat"
	"github.com/normanking/jarvis/internal/config"
	"github.com/normanking/jarvis/internal/conversation"
	"github.com/normanking/jarvis/internal/logging"
	"github.com/normanking/jarvis/internal/speech"
	"github.com/normanking/jarvis/internal/store"
	"github.com/normanking/jarvis/internal/ui"
	"github.com/normanking/jarvis/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "jarvis: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if cfg.Data.Dir != "" {
		logCfg.LogDir = filepath.Join(cfg.Data.Dir, "logs")
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	log := logger.Component("main")
	log.Info().Str("webhook", cfg.Webhook.URL).Msg("Starting up")

	st, err := store.Open(cfg.Data.Dir, logger.Zerolog())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	userID := cfg.User.ID
	if userID == "" {
		userID, err = st.UserID()
		if err != nil {
			return fmt.Errorf("failed to resolve user identity: %w", err)
		}
	}

	client := webhook.NewClient(&webhook.ClientConfig{
		URL:     cfg.Webhook.URL,
		Timeout: cfg.Webhook.Timeout,
	}, logger.Zerolog())

	// Speech engines are optional capabilities. Missing engines degrade
	// to a text-only client.
	var recognizer speech.Recognizer
	if r, err := speech.NewWSRecognizer(&speech.WSRecognizerConfig{
		URL:    cfg.Speech.RecognizerURL,
		Locale: cfg.Speech.Locale,
	}, logger.Zerolog()); err == nil {
		recognizer = r
	} else if !errors.Is(err, speech.ErrEngineUnavailable) {
		return fmt.Errorf("failed to initialize recognizer: %w", err)
	} else {
		log.Info().Msg("Speech recognition unavailable, voice input disabled")
	}

	var synthesizer speech.Synthesizer
	if s, err := speech.NewExecSynthesizer(&speech.ExecSynthesizerConfig{
		PreferredVoice: cfg.Speech.Voice,
	}, logger.Zerolog()); err == nil {
		synthesizer = s
	} else if !errors.Is(err, speech.ErrEngineUnavailable) {
		return fmt.Errorf("failed to initialize synthesizer: %w", err)
	} else {
		log.Info().Msg("Speech synthesis unavailable, spoken replies disabled")
	}

	eventBus := bus.NewEventBus()

	bridgeCfg := speech.DefaultConfig()
	bridgeCfg.AutoListenDelay = cfg.Speech.AutoListenDelay
	bridgeCfg.OnStateChange = func(state speech.VoiceState) {
		eventBus.Publish(bus.Event{
			Type: bus.EventTypeVoiceState,
			Data: map[string]any{"state": state},
		})
	}

	bridge := speech.NewBridge(recognizer, synthesizer, bridgeCfg, logger.Zerolog())
	defer bridge.Close()

	controller := conversation.NewController(st, client, bridge, userID, &conversation.Config{
		StatusRevertDelay: cfg.Webhook.RetryDelay,
		// The terminal view gates purges behind its own modal before
		// calling ClearHistory.
		Confirm: func(string) bool { return true },
	}, eventBus, logger.Zerolog())
	defer controller.Close()

	bridge.SetCommandHandler(controller.HandleVoiceCommand)

	app := ui.NewApp(controller, bridge)
	program := tea.NewProgram(app, tea.WithAltScreen())

	forwardEvents(eventBus, program)

	config.Watch(func(updated *config.Config) {
		log.Info().Msg("Configuration reloaded")
		bridge.RefreshVoices()
	})

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}

	log.Info().Msg("Shutting down")
	return nil
}

// forwardEvents translates bus events into program messages.
func forwardEvents(eventBus *bus.EventBus, program *tea.Program) {
	eventBus.Subscribe(bus.EventTypeMessageAppended, func(e bus.Event) {
		msg, _ := e.Data["message"].(chat.Message)
		program.Send(ui.MessageAppendedMsg{Message: msg})
	})
	eventBus.Subscribe(bus.EventTypeHistoryReset, func(e bus.Event) {
		program.Send(ui.HistoryResetMsg{})
	})
	eventBus.Subscribe(bus.EventTypeStatusChanged, func(e bus.Event) {
		status, _ := e.Data["status"].(chat.Status)
		program.Send(ui.StatusChangedMsg{Status: status})
	})
	eventBus.Subscribe(bus.EventTypeBusyChanged, func(e bus.Event) {
		busy, _ := e.Data["busy"].(bool)
		program.Send(ui.BusyChangedMsg{Busy: busy})
	})
	eventBus.Subscribe(bus.EventTypeVoiceState, func(e bus.Event) {
		state, _ := e.Data["state"].(speech.VoiceState)
		program.Send(ui.VoiceStateMsg{State: state})
	})
}
