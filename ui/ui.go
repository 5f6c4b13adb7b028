package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	statusMessageTimeout = time.Second * 3
	speedStep            = 0.1
	volumeStep           = 0.1
)

// Player is the playback controller driven by the reader.
type Player interface {
	LoadSync(ctx context.Context, path string, durationMS uint64) error
	Play() error
	Pause() error
	Stop() error
	SetSpeed(speed float64)
	SetVolume(volume float64)
	State() playback.AudioState
	IsFinished() bool
	Close() error
}

// Synthesizer renders a paragraph to an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) (tts.Result, error)
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, player Player, synth Synthesizer) *tea.Program {
	log.Debug(
		"Starting readaloud",
		"path", cfg.Path,
		"speed", cfg.Speed,
		"volume", cfg.Volume,
		"auto_advance", cfg.AutoAdvance,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	// Text piped on stdin leaves the keyboard on the terminal.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		opts = append(opts, tea.WithInputTTY())
	}
	m := newModel(cfg, player, synth)
	return tea.NewProgram(m, opts...)
}

// state is the top-level application state.
type state int

const (
	stateLoading state = iota
	stateReady
	stateError
)

type model struct {
	cfg    Config
	player Player
	synth  Synthesizer
	state  state
	err    error

	ctx    context.Context
	cancel context.CancelFunc

	// cancelSynth aborts the synthesis in flight, if any.
	cancelSynth context.CancelFunc

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	width    int
	height   int

	doc     document.Content
	current int

	// loaded is the paragraph whose audio is in the player, or -1.
	loaded int
	result tts.Result
	audio  playback.AudioState

	// gen invalidates replies from work started before the last
	// paragraph change.
	gen          int
	synthesizing bool
	active       bool
	paused       bool
	autoAdvance  bool
	speed        float64
	volume       float64

	statusMessage      string
	statusIsError      bool
	statusMessageTimer *time.Timer

	watcher *fsnotify.Watcher
}

func newModel(cfg Config, player Player, synth Synthesizer) *model {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = statusMessageTimeout
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sp.Style.Foreground(fuchsia)

	pr := progress.New(
		progress.WithSolidFill(string(green)),
		progress.WithoutPercentage(),
	)

	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown", "f")),
		PageUp:   key.NewBinding(key.WithKeys("pgup", "b")),
	}

	m := &model{
		cfg:         cfg,
		player:      player,
		synth:       synth,
		state:       stateLoading,
		ctx:         ctx,
		cancel:      cancel,
		keys:        newKeyMap(),
		help:        help.New(),
		spinner:     sp,
		progress:    pr,
		viewport:    vp,
		loaded:      -1,
		autoAdvance: cfg.AutoAdvance,
		speed:       clamp(cfg.Speed, playback.MinSpeed, playback.MaxSpeed),
		volume:      clamp(cfg.Volume, playback.MinVolume, playback.MaxVolume),
	}

	player.SetSpeed(m.speed)
	player.SetVolume(m.volume)
	return m
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadDocument(m.cfg),
		m.spinner.Tick,
		pollPlayer(m.player, m.cfg.PollInterval, m.gen),
	}

	if m.cfg.Path != "" && m.cfg.Text == "" && !m.cfg.DisableWatch {
		m.initWatcher()
		cmds = append(cmds, m.watchFile)
	}

	return tea.Batch(cmds...)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)

	case documentLoadedMsg:
		m.setDocument(msg.doc)

	case errMsg:
		if m.state == stateLoading {
			m.state = stateError
			m.err = msg.err
			return m, nil
		}
		cmds = append(cmds, m.showErrorMessage(msg.err.Error()))

	case reloadMsg:
		cmds = append(cmds, loadDocument(m.cfg), m.watchFile)

	case editorFinishedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showErrorMessage(msg.err.Error()))
		}
		cmds = append(cmds, loadDocument(m.cfg))

	case synthesizedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.synthesizing = false
		m.abortSynthesis()
		if msg.err != nil {
			m.active = false
			return m, m.showErrorMessage(synthesisErrorMessage(msg.err))
		}
		m.result = msg.res
		return m, startPlayback(m.ctx, m.player, m.gen, msg.index, msg.res)

	case playStartedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.err != nil {
			m.active = false
			return m, m.showErrorMessage("Unable to play audio: " + msg.err.Error())
		}
		// Polls scheduled before the load may report the old, finished
		// stream.
		m.gen++
		m.loaded = msg.index
		m.paused = false
		m.updateContent()

	case playbackMsg:
		cmds = append(cmds, pollPlayer(m.player, m.cfg.PollInterval, m.gen))
		if msg.gen != m.gen {
			break
		}
		m.audio = msg.state
		if msg.finished && m.active && !m.synthesizing && m.loaded >= 0 {
			cmds = append(cmds, m.finishParagraph())
		}
		m.updateContent()

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusIsError = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}
	if m.state != stateReady {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Play):
		return m.togglePlay()

	case key.Matches(msg, m.keys.Stop):
		m.stop()
		return m.showStatusMessage("Stopped")

	case key.Matches(msg, m.keys.Next):
		return m.jump(m.current + 1)

	case key.Matches(msg, m.keys.Prev):
		return m.jump(m.current - 1)

	case key.Matches(msg, m.keys.Faster):
		return m.changeSpeed(speedStep)

	case key.Matches(msg, m.keys.Slower):
		return m.changeSpeed(-speedStep)

	case key.Matches(msg, m.keys.Louder):
		return m.changeVolume(volumeStep)

	case key.Matches(msg, m.keys.Quieter):
		return m.changeVolume(-volumeStep)

	case key.Matches(msg, m.keys.AutoAdvance):
		m.autoAdvance = !m.autoAdvance
		if m.autoAdvance {
			return m.showStatusMessage("Auto-advance on")
		}
		return m.showStatusMessage("Auto-advance off")

	case key.Matches(msg, m.keys.Copy):
		text := m.paragraph(m.current)
		// Copy using OSC 52
		termenv.Copy(text)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(text)
		return m.showStatusMessage("Copied paragraph")

	case key.Matches(msg, m.keys.Edit):
		if m.cfg.Path == "" || m.cfg.Text != "" {
			return m.showErrorMessage("Nothing to edit")
		}
		m.stop()
		log.Info("opening editor", "file", m.cfg.Path)
		return openEditor(m.cfg.Path, 0)

	case key.Matches(msg, m.keys.Reload):
		return loadDocument(m.cfg)

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize(m.width, m.height)
		return nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return cmd
}

func (m *model) quit() tea.Cmd {
	m.cancel()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	_ = m.player.Stop()
	if err := m.player.Close(); err != nil {
		log.Error("error closing player", "error", err)
	}
	return tea.Quit
}

func (m *model) togglePlay() tea.Cmd {
	switch {
	case m.synthesizing:
		return nil
	case m.loaded == m.current && m.active:
		if err := m.player.Pause(); err != nil {
			return m.showErrorMessage(err.Error())
		}
		m.active = false
		m.paused = true
		return nil
	case m.loaded == m.current && m.paused:
		if err := m.player.Play(); err != nil {
			return m.showErrorMessage(err.Error())
		}
		m.active = true
		m.paused = false
		return nil
	default:
		return m.speak(m.current)
	}
}

// speak synthesizes paragraph index and plays it when ready.
func (m *model) speak(index int) tea.Cmd {
	text := m.paragraph(index)
	if text == "" {
		return nil
	}

	m.abortSynthesis()
	_ = m.player.Stop()
	m.gen++
	m.current = index
	m.loaded = -1
	m.result = tts.Result{}
	m.audio = playback.AudioState{Speed: m.speed, Volume: m.volume}
	m.synthesizing = true
	m.active = true
	m.paused = false
	m.updateContent()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelSynth = cancel

	log.Debug("Speaking paragraph", "index", index, "chars", len(text))
	return synthesize(ctx, m.synth, m.cfg.AudioDir, m.gen, index, text)
}

func (m *model) abortSynthesis() {
	if m.cancelSynth != nil {
		m.cancelSynth()
		m.cancelSynth = nil
	}
}

func (m *model) stop() {
	m.abortSynthesis()
	_ = m.player.Stop()
	m.gen++
	m.loaded = -1
	m.result = tts.Result{}
	m.audio = playback.AudioState{Speed: m.speed, Volume: m.volume}
	m.synthesizing = false
	m.active = false
	m.paused = false
	m.updateContent()
}

func (m *model) jump(index int) tea.Cmd {
	if index < 0 || index >= len(m.doc.Paragraphs) || index == m.current {
		return nil
	}
	if m.active || m.synthesizing {
		return m.speak(index)
	}
	m.stop()
	m.current = index
	m.updateContent()
	return nil
}

// finishParagraph handles the end of the loaded audio.
func (m *model) finishParagraph() tea.Cmd {
	m.active = false
	m.paused = false
	if m.autoAdvance && m.current+1 < len(m.doc.Paragraphs) {
		return m.speak(m.current + 1)
	}
	return m.showStatusMessage("Finished")
}

func (m *model) changeSpeed(delta float64) tea.Cmd {
	m.speed = clamp(roundTenth(m.speed+delta), playback.MinSpeed, playback.MaxSpeed)
	m.player.SetSpeed(m.speed)
	m.audio.Speed = m.speed
	return m.showStatusMessage(fmt.Sprintf("Speed %.1fx", m.speed))
}

func (m *model) changeVolume(delta float64) tea.Cmd {
	m.volume = clamp(roundTenth(m.volume+delta), playback.MinVolume, playback.MaxVolume)
	m.player.SetVolume(m.volume)
	m.audio.Volume = m.volume
	return m.showStatusMessage(fmt.Sprintf("Volume %d%%", int(math.Round(m.volume*100))))
}

func (m *model) setDocument(doc document.Content) {
	reloaded := m.state == stateReady
	m.doc = doc
	m.state = stateReady
	if m.current >= len(doc.Paragraphs) {
		m.current = max(0, len(doc.Paragraphs)-1)
	}
	if reloaded {
		log.Debug("Document reloaded", "paragraphs", len(doc.Paragraphs))
	}
	m.updateContent()
}

func (m *model) paragraph(index int) string {
	if index < 0 || index >= len(m.doc.Paragraphs) {
		return ""
	}
	return m.doc.Paragraphs[index]
}

// spokenWord is the index of the word being spoken in the current
// paragraph, or -1.
func (m *model) spokenWord() int {
	if !m.cfg.HighlightWords || m.loaded != m.current || m.loaded < 0 {
		return -1
	}
	return tts.WordAt(m.result.WordTimings, m.audio.PositionMS)
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	m.statusIsError = false
	return m.resetStatusTimer()
}

func (m *model) showErrorMessage(msg string) tea.Cmd {
	log.Error("reader error", "error", msg)
	m.statusMessage = msg
	m.statusIsError = true
	return m.resetStatusTimer()
}

func (m *model) resetStatusTimer() tea.Cmd {
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(m.cfg.StatusTimeout)
	return waitForStatusMessageTimeout(m.ctx, m.statusMessageTimer)
}

func synthesisErrorMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Synthesis canceled"
	}
	if g := tts.Guidance(err); g != "" {
		log.Warn("synthesis unavailable", "error", err, "help", g)
	}
	return err.Error()
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
