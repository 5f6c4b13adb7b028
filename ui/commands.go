package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/fsnotify/fsnotify"

	"github.com/dgnsrekt/readaloud/internal/document"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

type (
	documentLoadedMsg struct{ doc document.Content }
	errMsg            struct{ err error }
	reloadMsg         struct{}
	editorFinishedMsg struct{ err error }

	statusMessageTimeoutMsg struct{}
)

// synthesizedMsg carries the audio for paragraph index.
type synthesizedMsg struct {
	gen   int
	index int
	res   tts.Result
	err   error
}

// playStartedMsg is sent once the audio is loaded and playing.
type playStartedMsg struct {
	gen   int
	index int
	err   error
}

// playbackMsg is one poll of the player.
type playbackMsg struct {
	gen      int
	state    playback.AudioState
	finished bool
}

func (e errMsg) Error() string { return e.err.Error() }

func loadDocument(cfg Config) tea.Cmd {
	return func() tea.Msg {
		if cfg.Text != "" {
			return documentLoadedMsg{document.ParseText([]byte(cfg.Text))}
		}
		doc, err := document.Extract(cfg.Path)
		if err != nil {
			return errMsg{err}
		}
		return documentLoadedMsg{doc}
	}
}

func audioPath(dir string, index, gen int) string {
	return filepath.Join(dir, fmt.Sprintf("paragraph-%04d-%d.wav", index, gen))
}

func synthesize(ctx context.Context, s Synthesizer, dir string, gen, index int, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := s.Synthesize(ctx, text, audioPath(dir, index, gen))
		return synthesizedMsg{gen: gen, index: index, res: res, err: err}
	}
}

func startPlayback(ctx context.Context, p Player, gen, index int, res tts.Result) tea.Cmd {
	return func() tea.Msg {
		if err := p.LoadSync(ctx, res.AudioPath, res.DurationMS); err != nil {
			return playStartedMsg{gen: gen, index: index, err: err}
		}
		return playStartedMsg{gen: gen, index: index, err: p.Play()}
	}
}

func pollPlayer(p Player, interval time.Duration, gen int) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return playbackMsg{
			gen:      gen,
			state:    p.State(),
			finished: p.IsFinished(),
		}
	})
}

func waitForStatusMessageTimeout(ctx context.Context, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-t.C:
			return statusMessageTimeoutMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

func openEditor(path string, lineno int) tea.Cmd {
	cb := func(err error) tea.Msg {
		return editorFinishedMsg{err}
	}
	cmd, err := editor.Cmd("Read Aloud", path, editor.LineNumber(uint(lineno)))
	if err != nil {
		return func() tea.Msg { return cb(err) }
	}
	return tea.ExecProcess(cmd, cb)
}

func (m *model) initWatcher() {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Error("error creating fsnotify watcher", "error", err)
	}
}

func (m *model) watchFile() tea.Msg {
	if m.watcher == nil {
		return nil
	}
	path, err := filepath.Abs(m.cfg.Path)
	if err != nil {
		return nil
	}
	dir := filepath.Dir(path)

	if err := m.watcher.Add(dir); err != nil {
		log.Error("error adding dir to fsnotify watcher", "error", err)
		return nil
	}

	log.Info("fsnotify watching dir", "dir", dir)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			return reloadMsg{}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		}
	}
}
