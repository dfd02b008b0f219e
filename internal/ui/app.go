// Package ui renders the chat client as a terminal application.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/jarvis/internal/chat"
	"github.com/normanking/jarvis/internal/conversation"
	"github.com/normanking/jarvis/internal/speech"
)

// App is the bubbletea model for the chat client.
type App struct {
	controller *conversation.Controller
	bridge     *speech.Bridge

	viewport viewport.Model
	input    textinput.Model

	width  int
	height int
	ready  bool

	messages []chat.Message
	status   chat.Status
	busy     bool
	voice    speech.VoiceState

	confirmActive bool
}

// NewApp builds the application view over the conversation controller
// and speech bridge.
func NewApp(controller *conversation.Controller, bridge *speech.Bridge) *App {
	input := textinput.New()
	input.Placeholder = "Message JARVIS..."
	input.Prompt = "> "
	input.Focus()

	return &App{
		controller: controller,
		bridge:     bridge,
		input:      input,
		messages:   controller.Messages(),
		status:     controller.Status(),
		voice:      bridge.VoiceState(),
	}
}

func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		headerHeight := 2
		footerHeight := 3
		if !a.ready {
			a.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		a.input.Width = msg.Width - 4
		a.refreshViewport()
		return a, nil

	case tea.KeyMsg:
		if a.confirmActive {
			return a.updateConfirm(msg)
		}
		return a.updateKeys(msg)

	case MessageAppendedMsg, HistoryResetMsg:
		a.messages = a.controller.Messages()
		a.refreshViewport()
		a.viewport.GotoBottom()
		return a, nil

	case StatusChangedMsg:
		a.status = msg.Status
		return a, nil

	case BusyChangedMsg:
		a.busy = msg.Busy
		return a, nil

	case VoiceStateMsg:
		a.voice = msg.State
		return a, nil

	case sendDoneMsg:
		return a, nil
	}

	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "ctrl+v":
		a.bridge.ToggleVoice()
		return a, nil

	case "ctrl+l":
		a.confirmActive = true
		return a, nil

	case "enter":
		text := strings.TrimSpace(a.input.Value())
		if text == "" || a.busy {
			return a, nil
		}
		a.input.Reset()
		return a, a.sendCmd(text)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a *App) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		a.confirmActive = false
		return a, func() tea.Msg {
			a.controller.ClearHistory()
			return sendDoneMsg{}
		}
	case "n", "N", "esc":
		a.confirmActive = false
	}
	return a, nil
}

// sendCmd runs the blocking webhook round-trip off the UI goroutine.
// Transcript and status updates arrive via the bus.
func (a *App) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		a.controller.SendText(text)
		return sendDoneMsg{}
	}
}

func (a *App) View() string {
	if !a.ready {
		return "Initializing..."
	}

	if a.confirmActive {
		return a.renderConfirm()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		a.renderHeader(),
		"",
		a.viewport.View(),
		"",
		a.input.View(),
		a.renderStatusBar(),
	)
}

func (a *App) renderHeader() string {
	title := titleStyle.Render("J.A.R.V.I.S")
	user := dimStyle.Render("  " + a.controller.UserID())

	var status string
	if a.status == chat.StatusOnline {
		status = onlineStyle.Render("  ● " + string(a.status))
	} else {
		status = offlineStyle.Render("  ● " + string(a.status))
	}

	var voice string
	switch {
	case a.voice.Listening:
		voice = listeningStyle.Render("  ◉ Listening")
	case a.voice.Speaking:
		voice = speakingStyle.Render("  ♪ Speaking")
	case a.voice.VoiceMode:
		voice = voiceOnStyle.Render("  ○ Voice Active")
	}

	var busy string
	if a.busy {
		busy = dimStyle.Render("  …")
	}

	return title + user + status + voice + busy
}

func (a *App) renderStatusBar() string {
	desc := lipgloss.NewStyle().Foreground(successColor).Bold(true)
	bar := fmt.Sprintf("Enter %s  Ctrl+V %s  Ctrl+L %s  Ctrl+C %s",
		desc.Render("Send"),
		desc.Render("Voice"),
		desc.Render("Purge"),
		desc.Render("Quit"),
	)
	return statusBarStyle.Render(bar)
}

func (a *App) refreshViewport() {
	a.viewport.SetContent(a.renderMessages())
}

func (a *App) renderMessages() string {
	if len(a.messages) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	width := a.viewport.Width
	if width <= 0 {
		width = 80
	}
	textStyle := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for i, msg := range a.messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		var label string
		if msg.Role == chat.RoleUser {
			label = userLabelStyle.Render("YOU")
		} else {
			label = assistantLabelStyle.Render("JARVIS")
		}
		b.WriteString(label + dimStyle.Render("  "+msg.Timestamp) + "\n")

		if msg.IsError {
			b.WriteString(textStyle.Inherit(errorTextStyle).Render(msg.Text))
		} else {
			b.WriteString(textStyle.Render(msg.Text))
		}
	}
	return b.String()
}

func (a *App) renderConfirm() string {
	modalWidth := 50
	if a.width < modalWidth+10 {
		modalWidth = a.width - 10
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(warningColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Purge Memory")

	message := lipgloss.NewStyle().
		Width(modalWidth).
		Align(lipgloss.Center).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render("\nErase all conversation history?\n")

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render("y Yes  •  n No")

	content := strings.Join([]string{title, message, footer}, "\n")
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, content)
}
