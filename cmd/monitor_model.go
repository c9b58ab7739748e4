// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 mtmn

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mtmn/plants-go/pkg/status"
)

// Messages
type monitorStatusMsg status.Status
type monitorVanishedMsg struct{}
type monitorDoneMsg struct{}

// monitorModel renders the snapshot stream.
type monitorModel struct {
	status    status.Status
	reachable bool
	updatedAt time.Time
	updates   int
	spinner   spinner.Model
	width     int
	height    int
	quitting  bool
}

func initialMonitorModel(initial status.Status, reachable bool) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	return monitorModel{
		status:    initial,
		reachable: reachable,
		updatedAt: time.Now(),
		spinner:   sp,
		width:     80,
		height:    24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.EnterAltScreen)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorStatusMsg:
		m.status = status.Status(msg)
		m.reachable = true
		m.updatedAt = time.Now()
		m.updates++

	case monitorVanishedMsg:
		m.status = status.New()
		m.reachable = false
		m.updatedAt = time.Now()

	case monitorDoneMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	lowStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	chargingStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("PLANTS - BATTERY MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Updates: %d | Last: %s | Press 'q' to quit",
		m.updates, m.updatedAt.Format("15:04:05"))))
	s.WriteString("\n\n")

	if !m.reachable && !m.status.Valid() {
		s.WriteString(m.spinner.View())
		s.WriteString(headerStyle.Render(" Waiting for daemon..."))
		s.WriteString("\n")
		return s.String()
	}

	// Earbud section
	if m.status.Metadata != nil || m.status.Components != (status.Components{}) {
		content := strings.Builder{}
		name := "Earbuds"
		if m.status.Metadata != nil {
			name = fmt.Sprintf("%s (%s)", m.status.Metadata.Name, m.status.Metadata.Model)
		}
		content.WriteString(labelStyle.Render(name))
		content.WriteString("\n")

		parts := []struct {
			name string
			comp *status.Component
			ear  status.EarState
		}{
			{"Left", m.status.Components.Left, m.status.Ear.Left},
			{"Right", m.status.Components.Right, m.status.Ear.Right},
			{"Case", m.status.Components.Case, ""},
		}
		for _, p := range parts {
			if p.comp == nil {
				continue
			}
			level := renderLevel(p.comp.Level, p.comp.Status, valueStyle, lowStyle, chargingStyle)
			line := fmt.Sprintf("%s %s  %s", labelStyle.Render(p.name+":"), level,
				headerStyle.Render(string(p.comp.Status)))
			if p.ear != "" && p.ear != status.EarDisconnected {
				line += headerStyle.Render(fmt.Sprintf("  [%s]", earLabel(p.ear)))
			}
			content.WriteString(line)
			content.WriteString("\n")
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(content.String(), "\n")))
		s.WriteString("\n\n")
	}

	// Generic devices
	if len(m.status.Devices) > 0 {
		content := strings.Builder{}
		content.WriteString(labelStyle.Render("Devices"))
		content.WriteString("\n")
		for _, d := range m.status.Devices {
			level := renderLevel(d.Battery, d.Status, valueStyle, lowStyle, chargingStyle)
			content.WriteString(fmt.Sprintf("%s %s  %s\n",
				labelStyle.Render(d.Name+":"), level, headerStyle.Render(string(d.Status))))
		}
		s.WriteString(boxStyle.Render(strings.TrimSuffix(content.String(), "\n")))
		s.WriteString("\n\n")
	}

	if !m.status.Valid() {
		s.WriteString(headerStyle.Render("Nothing connected"))
		s.WriteString("\n")
	}

	return s.String()
}

// renderLevel colors a battery level: red when low, yellow while
// charging, green otherwise.
func renderLevel(level uint8, st status.BatteryState, value, low, charging lipgloss.Style) string {
	text := fmt.Sprintf("%3d%%", level)
	switch {
	case st == status.Charging:
		return charging.Render(text)
	case level <= 15:
		return low.Render(text)
	default:
		return value.Render(text)
	}
}

func earLabel(e status.EarState) string {
	switch e {
	case status.InEar:
		return "in ear"
	case status.NotInEar:
		return "out"
	case status.InCase:
		return "in case"
	default:
		return string(e)
	}
}
