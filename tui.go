package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"whispr/model"
	"whispr/pipeline"
)

// TUI message types
type PipelineMsg struct{ Event pipeline.Event }
type AudioLevelMsg struct{ Level float64 }
type InfoLineMsg struct{ Model, Device, Hotkey string }
type NoticeMsg struct {
	Text   string
	Failed bool
}
type tickMsg time.Time

// tuiActions are the app operations bound to keys.
type tuiActions struct {
	toggle func() error
	evict  func() error
	models func() []model.EntryInfo
	state  func() pipeline.State
}

type tuiModel struct {
	actions tuiActions

	state      pipeline.State
	recStart   time.Time
	recSeconds float64
	level      float64
	peak       float64
	width      int

	info     InfoLineMsg
	count    int
	lastText string
	blank    bool
	metrics  []string
	notice   string
	failed   bool
	cache    []model.EntryInfo
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleBlank   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	meterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterHot     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

const meterWidth = 30

func NewTUIProgram(actions tuiActions) *tea.Program {
	return tea.NewProgram(tuiModel{actions: actions}, tea.WithAltScreen())
}

// tuiSend delivers msg to the running TUI, if any.
func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// tuiSink forwards pipeline events to the TUI.
func tuiSink() pipeline.Sink {
	return pipeline.SinkFunc(func(ev pipeline.Event) { tuiSend(PipelineMsg{Event: ev}) })
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", " ":
			return m, runAction(m.actions.toggle, "")
		case "u":
			return m, runAction(m.actions.evict, "model unloaded")
		}

	case tickMsg:
		if m.state == pipeline.Recording {
			m.recSeconds = time.Since(m.recStart).Seconds()
		}
		if m.actions.models != nil {
			m.cache = m.actions.models()
		}
		// the return from Done to Idle is silent
		if m.state == pipeline.Done && m.actions.state != nil {
			m.state = m.actions.state()
		}
		return m, tuiTick()

	case AudioLevelMsg:
		if m.state == pipeline.Recording {
			m.level = m.level*0.6 + msg.Level*0.4
			m.peak = max(m.peak, msg.Level)
		}

	case InfoLineMsg:
		m.info = msg

	case NoticeMsg:
		m.notice, m.failed = msg.Text, msg.Failed

	case PipelineMsg:
		m = m.apply(msg.Event)
	}
	return m, nil
}

// runAction calls fn off the UI goroutine; the coordinator emits events
// back into the TUI before replying.
func runAction(fn func() error, ok string) tea.Cmd {
	if fn == nil {
		return nil
	}
	return func() tea.Msg {
		if err := fn(); err != nil {
			return NoticeMsg{Text: err.Error(), Failed: true}
		}
		if ok == "" {
			return nil
		}
		return NoticeMsg{Text: ok}
	}
}

func (m tuiModel) apply(ev pipeline.Event) tuiModel {
	switch p := ev.Payload.(type) {
	case pipeline.RecordingStatus:
		if p.IsRecording {
			m.state = pipeline.Recording
			m.recStart = ev.Time
			m.recSeconds, m.level, m.peak = 0, 0, 0
			m.notice = ""
		} else {
			m.level = 0
		}
	case pipeline.ProcessingStatus:
		if p.IsProcessing {
			m.state = pipeline.Processing
		}
	case pipeline.TranscriptionComplete:
		m.state = pipeline.Done
		m.count++
		m.lastText, m.blank = p.Text, p.Blank
		r := p.Result
		name := r.ModelID
		if r.Accel {
			name += " (accel)"
		}
		m.metrics = []string{
			"model   " + name,
			fmt.Sprintf("audio   %.1fs", r.Audio.Seconds()),
			fmt.Sprintf("wait    %dms", r.Wait.Milliseconds()),
			fmt.Sprintf("infer   %dms", r.Infer.Milliseconds()),
		}
	case pipeline.PipelineFailure:
		m.state = pipeline.Idle
		m.notice, m.failed = p.Stage+": "+p.Error, true
	}
	return m
}

func (m tuiModel) View() string {
	var b strings.Builder

	switch m.state {
	case pipeline.Recording:
		b.WriteString(styleRec.Render(fmt.Sprintf("● REC %.1fs", m.recSeconds)))
		if m.recSeconds > 1.0 && m.peak < 0.02 {
			b.WriteString(styleBlank.Render("  ⚠ no voice detected"))
		}
	case pipeline.Processing:
		b.WriteString(styleBusy.Render("◌ TRANSCRIBING"))
	case pipeline.Done:
		b.WriteString(styleDone.Render("✓ DONE"))
	default:
		b.WriteString(styleIdle.Render("○ STANDBY"))
	}
	b.WriteString("\n")
	b.WriteString(renderMeter(m.level, m.state == pipeline.Recording))
	b.WriteString("\n\n")

	if m.info.Model != "" {
		b.WriteString(styleInfo.Render("model: "+m.info.Model) + "\n")
	}
	if m.info.Device != "" {
		b.WriteString(styleInfo.Render("mic:   "+m.info.Device) + "\n")
	}
	if line := cacheLine(m.cache); line != "" {
		b.WriteString(styleIdle.Render("loaded: "+line) + "\n")
	}
	b.WriteString("\n")

	width := m.width - 2
	if width < 20 {
		width = 60
	}
	if m.count > 0 {
		b.WriteString(styleInfo.Render(fmt.Sprintf("Last transcription (#%d)", m.count)) + "\n")
		if m.blank {
			b.WriteString(styleBlank.Render("(no speech)") + "\n")
		} else {
			for _, line := range wrapText(m.lastText, width) {
				b.WriteString(styleText.Render(line) + "\n")
			}
		}
		for _, line := range m.metrics {
			b.WriteString(styleIdle.Render(line) + "\n")
		}
	} else {
		b.WriteString(styleIdle.Render("No transcriptions yet") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n")
		if m.failed {
			b.WriteString(styleErr.Render(m.notice))
		} else {
			b.WriteString(styleInfo.Render(m.notice))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	hk := m.info.Hotkey
	if hk == "" {
		hk = "hotkey"
	}
	b.WriteString(styleHelpKey.Render(hk) + styleHelp.Render(" or ") +
		styleHelpKey.Render("r") + styleHelp.Render(" to record, ") +
		styleHelpKey.Render("u") + styleHelp.Render(" unload model, ") +
		styleHelpKey.Render("q") + styleHelp.Render(" quit") + "\n")
	b.WriteString(styleHelp.Render("whispr " + version))
	return b.String()
}

// renderMeter draws the smoothed RMS level. Normal speech sits around a
// quarter of full scale, so the level is amplified 4x.
func renderMeter(level float64, active bool) string {
	if !active {
		return meterOff.Render(strings.Repeat("▁", meterWidth))
	}
	n := int(min(level*4, 1) * meterWidth)
	hot := meterWidth * 9 / 10
	var b strings.Builder
	for i := range meterWidth {
		switch {
		case i >= n:
			b.WriteString(meterOff.Render("▁"))
		case i >= hot:
			b.WriteString(meterHot.Render("█"))
		default:
			b.WriteString(meterOn.Render("█"))
		}
	}
	return b.String()
}

func cacheLine(entries []model.EntryInfo) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		s := e.Key.String()
		if !e.Loaded {
			s += " (loading)"
		} else if e.Borrows > 0 {
			s += " (busy)"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) > width:
				lines = append(lines, line)
				line = word
			default:
				line += " " + word
			}
		}
		lines = append(lines, line)
	}
	return lines
}
