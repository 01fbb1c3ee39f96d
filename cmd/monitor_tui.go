// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/velarium/internal/poller"
	"github.com/Thermoquad/velarium/pkg/dooya"
	"github.com/Thermoquad/velarium/pkg/engine"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Styles
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries = 100
	logHeight     = 8
	listWidth     = 30
)

// Focus states
const (
	focusDeviceList = iota
	focusPositionInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitoredDevice is a device and the last poll result for it
type monitoredDevice struct {
	device    *engine.Device
	state     dooya.DeviceState
	hasState  bool
	available bool
	failures  int
	lastErr   error
	updated   time.Time
	next      time.Duration
}

// Implement list.Item interface
func (d monitoredDevice) Title() string { return d.device.Name() }
func (d monitoredDevice) Description() string {
	switch {
	case !d.available:
		return "unavailable"
	case !d.hasState:
		return d.device.Address().String()
	default:
		return fmt.Sprintf("%s  %s", d.state.Position, d.state.Motor)
	}
}
func (d monitoredDevice) FilterValue() string { return d.device.Name() }

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	ctx      context.Context
	conn     *Connection
	connInfo string

	devices    []monitoredDevice
	deviceList list.Model

	positionBar   progress.Model
	positionInput textinput.Model
	focusedField  int

	stats    *dooya.Statistics
	eventLog []eventLogEntry

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

// pollMsg carries one poller result
type pollMsg poller.Update

// commandResultMsg reports the outcome of a command sent from the TUI
type commandResultMsg struct {
	device string
	what   string
	err    error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(ctx context.Context, conn *Connection, devices []*engine.Device) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "50"
	ti.CharLimit = 3
	ti.Width = 5
	ti.Validate = func(s string) error {
		if _, err := strconv.Atoi(s); s != "" && err != nil {
			return err
		}
		return nil
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	monitored := make([]monitoredDevice, len(devices))
	for i, d := range devices {
		monitored[i] = monitoredDevice{device: d, available: true}
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	deviceList := list.New([]list.Item{}, delegate, listWidth-2, 10)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(false)

	m := monitorModel{
		ctx:           ctx,
		conn:          conn,
		connInfo:      conn.Name,
		devices:       monitored,
		deviceList:    deviceList,
		positionBar:   bar,
		positionInput: ti,
		focusedField:  focusDeviceList,
		stats:         conn.Engine.Statistics(),
		eventLog:      make([]eventLogEntry, 0),
		width:         80,
		height:        24,
	}
	m.updateDeviceList()
	m.addLogEntry(fmt.Sprintf("Monitoring %d device(s)", len(devices)), false)
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case monitorTickMsg:
		return m, monitorTickCmd()

	case pollMsg:
		m.processPoll(poller.Update(msg))

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %s failed: %v", msg.device, msg.what, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s: %s acknowledged", msg.device, msg.what), false)
		}
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focusedField == focusPositionInput {
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab", "esc":
			m.focusedField = focusDeviceList
			m.positionInput.Blur()
			return m, nil
		case "enter":
			return m.sendPosition()
		}
		var cmd tea.Cmd
		m.positionInput, cmd = m.positionInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.focusedField = focusPositionInput
		return m, m.positionInput.Focus()

	case "o":
		return m, m.sendControl(engine.CommandOpen)

	case "c":
		return m, m.sendControl(engine.CommandClose)

	case "s":
		return m, m.sendControl(engine.CommandStop)

	case "r":
		return m, m.refresh()

	case "enter":
		return m.sendPosition()
	}

	var cmd tea.Cmd
	m.deviceList, cmd = m.deviceList.Update(msg)
	return m, cmd
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("VELARIUM MONITOR"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | o=open c=close s=stop Tab=position r=refresh q=quit", m.connInfo)))
	s.WriteString("\n\n")

	// Layout: left panel (devices) | right panel (state)
	rightWidth := m.width - listWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	devicePanel := focusedBoxStyle.Width(listWidth).Render(m.deviceList.View())
	if m.focusedField != focusDeviceList {
		devicePanel = boxStyle.Width(listWidth).Render(m.deviceList.View())
	}
	statePanel := boxStyle.Width(rightWidth).Render(m.renderStatePanel())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, devicePanel, " ", statePanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")

	s.WriteString(m.renderEventLog())

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderStatePanel() string {
	var s strings.Builder

	selected := m.selectedDevice()
	if selected == nil {
		s.WriteString(headerStyle.Render("No device selected"))
		return s.String()
	}

	fmt.Fprintf(&s, "%s %s (%s)\n", statsLabelStyle.Render("Device:"), selected.device.Name(), selected.device.Address())

	if !selected.available {
		fmt.Fprintf(&s, "%s\n", errorStyle.Render(fmt.Sprintf("UNAVAILABLE after %d failures, retry in %s", selected.failures, selected.next)))
	} else if selected.failures > 0 {
		fmt.Fprintf(&s, "%s\n", warningStyle.Render(fmt.Sprintf("%d failed poll(s), retry in %s", selected.failures, selected.next)))
	}

	if !selected.hasState {
		s.WriteString(headerStyle.Render("Waiting for first status..."))
		return s.String()
	}

	state := selected.state
	s.WriteString("\n")
	if percent, ok := state.Position.Percent(); ok {
		fmt.Fprintf(&s, "%s %s %s\n", statsLabelStyle.Render("Position:"),
			m.positionBar.ViewAs(float64(percent)/100.0), statsValueStyle.Render(state.Position.String()))
	} else {
		fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Position:"), warningStyle.Render(state.Position.String()))
	}
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Motor:   "), statsValueStyle.Render(state.Motor.String()))
	fmt.Fprintf(&s, "%s active %s, passive %s\n", statsLabelStyle.Render("Switches:"),
		statsValueStyle.Render(state.ActiveSwitch.String()), statsValueStyle.Render(state.PassiveSwitch.String()))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Handle:  "), statsValueStyle.Render(state.Handle.String()))
	fmt.Fprintf(&s, "%s 0x%02X\n", statsLabelStyle.Render("Firmware:"), state.Firmware)
	fmt.Fprintf(&s, "%s %s\n\n", statsLabelStyle.Render("Updated: "), headerStyle.Render(selected.updated.Format("15:04:05")))

	s.WriteString(statsLabelStyle.Render("Target %: "))
	if m.focusedField == focusPositionInput {
		s.WriteString(m.positionInput.View())
	} else {
		val := m.positionInput.Value()
		if val == "" {
			val = m.positionInput.Placeholder
		}
		fmt.Fprintf(&s, "[%s]", val)
	}

	return s.String()
}

func (m monitorModel) renderStatisticsBar() string {
	snap := m.stats.Snapshot()
	var okPercent float64
	if snap.Transactions > 0 {
		okPercent = float64(snap.Succeeded) * 100.0 / float64(snap.Transactions)
	}

	errors := snap.Timeouts + snap.CRCErrors + snap.MalformedFrame + snap.Mismatches + snap.ConnectionLost
	errorText := statsValueStyle.Render("0")
	if errors > 0 {
		errorText = errorStyle.Render(fmt.Sprintf("%d", errors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Transactions:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Transactions)),
		statsLabelStyle.Render("OK:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", okPercent)),
		statsLabelStyle.Render("Attempts:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Attempts)),
		statsLabelStyle.Render("Errors:"), errorText,
		statsLabelStyle.Render("Reconnects:"), statsValueStyle.Render(fmt.Sprintf("%d", snap.Reconnects)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			fmt.Fprintf(&s, "%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message)
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processPoll(u poller.Update) {
	for i := range m.devices {
		d := &m.devices[i]
		if d.device.Name() != u.Device {
			continue
		}

		wasAvailable := d.available
		d.available = u.Available
		d.failures = u.Failures
		d.next = u.Next
		d.lastErr = u.Err

		if u.Err != nil {
			if wasAvailable && !u.Available {
				m.addLogEntry(fmt.Sprintf("%s: unavailable (%s)", u.Device, u.Kind), true)
			} else {
				m.addLogEntry(fmt.Sprintf("%s: poll failed (%s), retry in %s", u.Device, u.Kind, u.Next), true)
			}
			break
		}

		if !wasAvailable {
			m.addLogEntry(fmt.Sprintf("%s: available again", u.Device), false)
		}
		if d.hasState && d.state.Motor != u.State.Motor {
			m.addLogEntry(fmt.Sprintf("%s: %s -> %s", u.Device, d.state.Motor, u.State.Motor), false)
		}
		if !d.hasState || d.state != u.State {
			for _, v := range dooya.ValidateState(u.State) {
				m.addLogEntry(fmt.Sprintf("%s: %s", u.Device, v.Message), false)
			}
		}
		d.state = u.State
		d.hasState = true
		d.updated = u.At
		break
	}
	m.updateDeviceList()
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// sendControl runs a motion command off the UI goroutine
func (m *monitorModel) sendControl(c engine.Command) tea.Cmd {
	selected := m.selectedDevice()
	if selected == nil {
		return nil
	}
	d := selected.device
	ctx := m.ctx
	return func() tea.Msg {
		err := d.Engine().WriteControl(ctx, d.Address(), c)
		return commandResultMsg{device: d.Name(), what: c.String(), err: err}
	}
}

func (m monitorModel) sendPosition() (tea.Model, tea.Cmd) {
	selected := m.selectedDevice()
	if selected == nil {
		return m, nil
	}

	val := m.positionInput.Value()
	if val == "" {
		val = m.positionInput.Placeholder
	}
	percent, err := strconv.Atoi(val)
	if err != nil || percent < 0 || percent > 100 {
		m.addLogEntry(fmt.Sprintf("Position must be between 0 and 100, got %q", val), true)
		return m, nil
	}

	d := selected.device
	ctx := m.ctx
	what := fmt.Sprintf("position %d%%", percent)
	return m, func() tea.Msg {
		return commandResultMsg{device: d.Name(), what: what, err: d.SetPosition(ctx, percent)}
	}
}

// refresh reads the selected device once outside the poll schedule
func (m *monitorModel) refresh() tea.Cmd {
	selected := m.selectedDevice()
	if selected == nil {
		return nil
	}
	d := selected.device
	available, failures, next := selected.available, selected.failures, selected.next
	ctx := m.ctx
	return func() tea.Msg {
		state, err := d.Status(ctx)
		if err == nil {
			available, failures = true, 0
		}
		return pollMsg(poller.Update{
			Device:    d.Name(),
			At:        time.Now(),
			State:     state,
			Err:       err,
			Kind:      engine.Classify(err),
			Available: available,
			Failures:  failures,
			Next:      next,
		})
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *monitorModel) selectedDevice() *monitoredDevice {
	if len(m.devices) == 0 {
		return nil
	}

	idx := m.deviceList.Index()
	if idx < 0 || idx >= len(m.devices) {
		return nil
	}

	return &m.devices[idx]
}

func (m *monitorModel) updateDeviceList() {
	items := make([]list.Item, len(m.devices))
	for i, d := range m.devices {
		items[i] = d
	}
	m.deviceList.SetItems(items)
}

func (m *monitorModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.deviceList.SetSize(listWidth-2, listHeight)
}
