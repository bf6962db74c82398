package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/germanamz/chatbox/pkg/chatbox"
	"github.com/germanamz/chatbox/pkg/registry"
)

// appModel hosts a mounted widget full screen and logs what it reports.
type appModel struct {
	widget registry.Component
	log    zerolog.Logger
	sent   int
	recv   int
	failed int
}

func newAppModel(widget registry.Component, log zerolog.Logger) appModel {
	return appModel{widget: widget, log: log}
}

func (m appModel) Init() tea.Cmd {
	return m.widget.Init()
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.log.Info().Int("sent", m.sent).Int("received", m.recv).Msg("quit")
			return m, tea.Quit
		}

	case chatbox.MessageSentMsg:
		m.sent++
		m.log.Info().
			Str("request_id", msg.RequestID).
			Str("message_id", msg.Message.ID).
			Int("len", len(msg.Message.Content)).
			Msg("message sent")
		return m, nil

	case chatbox.MessageReceivedMsg:
		m.recv++
		m.log.Info().
			Str("request_id", msg.RequestID).
			Str("message_id", msg.Message.ID).
			Str("role", msg.Message.Role.String()).
			Dur("elapsed", msg.Elapsed).
			Msg("message received")
		return m, nil

	case chatbox.SendFailedMsg:
		m.failed++
		m.log.Error().Err(msg.Err).Str("request_id", msg.RequestID).Msg("send failed")
		return m, nil

	case chatbox.StoppedMsg:
		m.log.Info().Str("request_id", msg.RequestID).Msg("request stopped")
		return m, nil
	}

	var cmd tea.Cmd
	m.widget, cmd = updateWidget(m.widget, msg)
	return m, cmd
}

func updateWidget(w registry.Component, msg tea.Msg) (registry.Component, tea.Cmd) {
	next, cmd := w.Update(msg)
	if c, ok := next.(registry.Component); ok {
		return c, cmd
	}
	return w, cmd
}

func (m appModel) View() string {
	return m.widget.View()
}
