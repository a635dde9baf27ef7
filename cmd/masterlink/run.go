package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/smartteach/masterlink/pkg/arm"
	"github.com/smartteach/masterlink/pkg/config"
	"github.com/smartteach/masterlink/pkg/device"
	"github.com/smartteach/masterlink/pkg/export"
	"github.com/smartteach/masterlink/pkg/frame"
	"github.com/smartteach/masterlink/pkg/record"
	"github.com/smartteach/masterlink/pkg/stream"
	"github.com/smartteach/masterlink/pkg/transport"
)

type RunCommand struct {
	Config string `long:"config" description:"Config file path" default:"masterlink.yaml"`
	Target string `long:"target" description:"Slave endpoint override (host:port)"`
	Local  bool   `long:"local" description:"Serve the session from the local servo bus (USB) instead of a slave"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 9 // status + log box
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	torqueStep = 0.05
)

// Joint colors - distinct colors for each joint
var jointColors = map[device.JointName]string{
	device.BaseYaw:       "196", // red
	device.ShoulderPitch: "208", // orange
	device.ElbowPitch:    "226", // yellow
	device.ForearmRoll:   "46",  // green
	device.WristPitch:    "51",  // cyan
	device.WristRoll:     "201", // magenta
	device.Gripper:       "141", // purple
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	recStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type panelModel struct {
	ctrl     *stream.Controller
	left     *arm.StateMachine
	right    *arm.StateMachine
	recorder *record.Buffer
	exporter *export.Service
	cfg      config.Config
	target   string

	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	selected frame.ArmID
	quitting bool
}

func (m *panelModel) addLog(msg string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type frameMsg frame.TelemetryFrame
type eventMsg stream.Event

func waitForFrame(ctrl *stream.Controller) tea.Cmd {
	return func() tea.Msg {
		return frameMsg(<-ctrl.Frames())
	}
}

func waitForEvent(ctrl *stream.Controller) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ctrl.Events())
	}
}

func (m *panelModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *panelModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newPanelModel(ctrl *stream.Controller, left, right *arm.StateMachine,
	recorder *record.Buffer, exporter *export.Service, cfg config.Config, target string) panelModel {

	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-180, 180),
	)

	for _, name := range device.ArmJoints() {
		color := jointColors[name]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}

	return panelModel{
		ctrl:     ctrl,
		left:     left,
		right:    right,
		recorder: recorder,
		exporter: exporter,
		cfg:      cfg,
		target:   target,
		chart:    &chart,
		selected: frame.Left,
	}
}

func (m panelModel) Init() tea.Cmd {
	return tea.Batch(
		waitForFrame(m.ctrl),
		waitForEvent(m.ctrl),
	)
}

func (m panelModel) machine(id frame.ArmID) *arm.StateMachine {
	if id == frame.Right {
		return m.right
	}
	return m.left
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		tf := frame.TelemetryFrame(msg)
		if tf.Arm == m.selected {
			for i, name := range device.ArmJoints() {
				if i < len(tf.Joints) {
					m.chart.PushDataSet(string(name), tf.Joints[i])
				}
			}
			m.chart.DrawAll()
		}
		return m, waitForFrame(m.ctrl)

	case eventMsg:
		e := stream.Event(msg)
		switch e.Type {
		case stream.Disconnected:
			m.addLog("streaming stopped unexpectedly: " + e.Message)
		case stream.Warning:
			m.addLog("warning: " + e.Message)
		case stream.Started:
			m.addLog("streaming to " + e.Target)
		case stream.Stopped:
			m.addLog("streaming stopped")
		}
		return m, waitForEvent(m.ctrl)
	}

	return m, nil
}

func (m panelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.ctrl.Stop()
		return m, tea.Quit

	case "tab":
		if m.selected == frame.Left {
			m.selected = frame.Right
		} else {
			m.selected = frame.Left
		}

	case "s":
		if m.ctrl.Status() == stream.Active {
			m.ctrl.Stop()
		} else if err := m.ctrl.Start(m.target); err != nil {
			m.addLog("connection failed: " + err.Error())
		}

	case "r":
		if m.recorder.Status() == record.Recording {
			m.recorder.StopRecording()
			m.addLog(fmt.Sprintf("recording stopped (%d samples)", m.recorder.Len()))
		} else {
			m.recorder.StartRecording()
			m.addLog("recording started")
		}

	case "c":
		m.recorder.Clear()
		m.addLog("recording buffer cleared")

	case "e":
		path := export.DefaultPath(m.cfg.LogDir, time.Now())
		rec, err := m.exporter.ExportTo(path)
		if err != nil {
			m.addLog("export failed: " + err.Error())
		} else {
			m.addLog(fmt.Sprintf("exported %d samples to %s", rec.Samples, rec.Path))
		}

	case "g":
		sm := m.machine(m.selected)
		if err := sm.EnterGravityCompensation(sm.Snapshot().TorqueScale); err != nil {
			m.addLog("gravity compensation rejected: " + err.Error())
		} else {
			m.addLog(string(m.selected) + " arm: gravity compensation")
		}

	case "p":
		m.machine(m.selected).ReturnToPositionControl()
		m.addLog(string(m.selected) + " arm: position control")

	case "+", "=":
		m.nudgeTorque(torqueStep)

	case "-":
		m.nudgeTorque(-torqueStep)

	case "h":
		if err := m.ctrl.GoHome(m.selected); err != nil {
			m.addLog("go home rejected: " + err.Error())
		} else {
			m.addLog(string(m.selected) + " arm: go home sent")
		}
	}
	return m, nil
}

func (m *panelModel) nudgeTorque(delta float64) {
	sm := m.machine(m.selected)
	next := sm.Snapshot().TorqueScale + delta
	// Keys step in fixed increments; stop at the bounds instead of
	// surfacing a parameter error for every extra keypress.
	if next < 0 {
		next = 0
	}
	if next > 1 {
		next = 1
	}
	if err := sm.SetTorqueScale(next); err != nil {
		m.addLog("torque scale rejected: " + err.Error())
	}
}

func (m panelModel) View() string {
	if m.quitting {
		return "Control panel closed.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Masterlink Control Panel"))
	sb.WriteString(statusStyle.Render("  " + m.target))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("s stream  r record  c clear  e save  g/p mode  +/- torque  h home  tab arm  q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m panelModel) renderStatus() string {
	var parts []string

	if m.ctrl.Status() == stream.Active {
		parts = append(parts, activeStyle.Render("STREAMING"))
	} else {
		parts = append(parts, statusStyle.Render("idle"))
	}

	if m.recorder.Status() == record.Recording {
		parts = append(parts, recStyle.Render(fmt.Sprintf("REC %d", m.recorder.Len())))
	} else {
		parts = append(parts, statusStyle.Render(fmt.Sprintf("rec off (%d buffered)", m.recorder.Len())))
	}

	for _, id := range []frame.ArmID{frame.Left, frame.Right} {
		s := m.machine(id).Snapshot()
		label := fmt.Sprintf("%s: %s", id, s.Mode)
		if s.Mode == frame.GravityCompensation {
			label += fmt.Sprintf(" (%.2f)", s.TorqueScale)
		}
		if id == m.selected {
			label = "[" + label + "]"
		}
		parts = append(parts, label)
	}

	return strings.Join(parts, "   ")
}

func renderLegend() string {
	var items []string
	for _, name := range device.ArmJoints() {
		color := jointColors[name]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(name))
	}
	return strings.Join(items, "  ")
}

func (c *RunCommand) Execute(args []string) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	target := cfg.SlaveEndpoint
	if c.Target != "" {
		target = c.Target
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create log dir %s: %v\n", cfg.LogDir, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	left := arm.New(frame.Left, cfg.HomePolicy)
	right := arm.New(frame.Right, cfg.HomePolicy)
	recorder := record.New()
	exporter := export.NewService(recorder, logger)

	dial := func(target string) (stream.Conn, error) {
		return transport.Dial(target, time.Duration(cfg.ConnectTimeout), logger)
	}
	if c.Local {
		dev, err := device.NewDevice(
			device.ArmConfig{Port: cfg.LeftArm.Port, CalibrationPath: cfg.LeftArm.Calibration},
			device.ArmConfig{Port: cfg.RightArm.Port, CalibrationPath: cfg.RightArm.Calibration},
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open servo bus: %v\n", err)
			os.Exit(1)
		}
		defer dev.Close()

		target = "local bus"
		dial = func(string) (stream.Conn, error) {
			return device.NewLoop(dev, time.Duration(cfg.TickInterval), logger)
		}
	}

	ctrl, err := stream.New(stream.Config{
		Dial:     dial,
		Left:     left,
		Right:    right,
		Recorder: recorder,
		Tick:     time.Duration(cfg.TickInterval),
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}
	defer ctrl.Stop()

	model := newPanelModel(ctrl, left, right, recorder, exporter, cfg, target)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
