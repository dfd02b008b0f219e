package ui

import (
	"github.com/normanking/jarvis/internal/chat"
	"github.com/normanking/jarvis/internal/speech"
)

// Bus-driven messages. main forwards bus events into the program with
// Program.Send so all state changes flow through Update.

// MessageAppendedMsg signals that the transcript grew.
type MessageAppendedMsg struct {
	Message chat.Message
}

// HistoryResetMsg signals that the transcript was purged.
type HistoryResetMsg struct{}

// StatusChangedMsg carries a connection status change.
type StatusChangedMsg struct {
	Status chat.Status
}

// BusyChangedMsg signals a request starting or finishing.
type BusyChangedMsg struct {
	Busy bool
}

// VoiceStateMsg carries a speech bridge state change.
type VoiceStateMsg struct {
	State speech.VoiceState
}

// sendDoneMsg marks the end of a SendText round-trip; the transcript
// updates arrive separately via the bus.
type sendDoneMsg struct{}
