package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lisuiheng/fastplayer/pkg/interfaces"
)

const maxLogLines = 6

type model struct {
	sender sender
	url    string

	connected bool
	retryIn   time.Duration
	state     string
	current   *interfaces.Media
	recording bool
	lastFile  string

	input   string
	logs    []string
	lastErr string
	width   int
	height  int
}

func newModel(s sender, url string) model {
	return model{
		sender: s,
		url:    url,
		state:  "idle",
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.connected = true
		m.retryIn = 0
		m.lastErr = ""
		m.addLog("connected")

	case disconnectedMsg:
		m.connected = false
		m.retryIn = msg.retry
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}

	case eventMsg:
		m.applyEvent(interfaces.Event(msg))
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEnter:
		source := strings.TrimSpace(m.input)
		if source == "" {
			return m, nil
		}
		m.input = ""
		m.send(interfaces.Command{Type: interfaces.CmdPlay, Source: source})
	case tea.KeyCtrlS:
		m.send(interfaces.Command{Type: interfaces.CmdStop})
	case tea.KeyCtrlR:
		if m.recording {
			m.send(interfaces.Command{Type: interfaces.CmdRecordStop})
		} else {
			m.send(interfaces.Command{Type: interfaces.CmdRecordStart})
		}
		// 录音开始没有事件，主动刷新状态
		m.send(interfaces.Command{Type: interfaces.CmdStatus})
	case tea.KeyCtrlP:
		m.send(interfaces.Command{Type: interfaces.CmdPlayRecord})
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *model) send(cmd interfaces.Command) {
	if err := m.sender.send(cmd); err != nil {
		m.lastErr = fmt.Sprintf("%s: %v", cmd.Type, err)
	}
}

func (m *model) applyEvent(ev interfaces.Event) {
	switch ev.Type {
	case interfaces.EventLoading:
		m.state = "loading"
		m.current = ev.Media
		m.addLog("loading " + mediaLabel(ev.Media))
	case interfaces.EventStart:
		m.state = "playing"
		m.current = ev.Media
		m.addLog("start " + mediaLabel(ev.Media))
	case interfaces.EventStop:
		if ev.Media != nil && m.current != nil && ev.Media.ID == m.current.ID {
			m.state = "idle"
			m.current = nil
		}
		line := "stop " + mediaLabel(ev.Media)
		if ev.IsError {
			line += " (error)"
		}
		m.addLog(line)
	case interfaces.EventStatus:
		if ev.Status == nil {
			return
		}
		m.state = ev.Status.State
		m.current = ev.Status.Current
		m.recording = ev.Status.Recording
		m.lastFile = ev.Status.LastFile
	case interfaces.EventRecorded:
		m.recording = false
		m.lastFile = ev.Path
		m.addLog("recorded " + ev.Path)
	case interfaces.EventError:
		m.lastErr = ev.Message
		m.addLog("error: " + ev.Message)
	}
}

func (m *model) addLog(line string) {
	m.logs = append(m.logs, time.Now().Format("15:04:05")+" "+line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

func mediaLabel(media *interfaces.Media) string {
	if media == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", media.ID, media.Source)
}
