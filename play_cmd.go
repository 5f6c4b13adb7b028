package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

const reportInterval = 100 * time.Millisecond

var (
	playDurationMS uint64

	playCmd = &cobra.Command{
		Use:   "play AUDIO",
		Short: "Play an audio file without the reader",
		Long: paragraph(fmt.Sprintf("\n%s an audio file and report the playback state. "+
			"On a terminal a progress line is shown; otherwise one JSON state is printed per line.", keyword("Play"))),
		Example: paragraph("readaloud play speech.wav\nreadaloud play speech.wav --speed 1.5 | jq .position_ms"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			path := expandPath(args[0])
			durationMS := playDurationMS
			if !cmd.Flags().Changed("duration") {
				d, err := audio.ProbeDuration(path)
				if err != nil {
					return err
				}
				durationMS = uint64(d.Milliseconds())
			}

			return playHeadless(cmd.Context(), s, path, durationMS, os.Stdout)
		},
	}

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT...]",
		Short: "Speak text without the reader",
		Long: paragraph(fmt.Sprintf("\n%s the arguments, or stdin when there are none, with piper "+
			"and play the result.", keyword("Speak"))),
		Example: paragraph("readaloud speak hello there\necho hello | readaloud speak"),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("unable to read from stdin: %w", err)
				}
				text = string(b)
			}

			synth, store := newSynthesizer(s)
			if store != nil {
				defer store.Close() //nolint:errcheck
			}

			dir, err := os.MkdirTemp("", appName+"-")
			if err != nil {
				return fmt.Errorf("unable to create audio directory: %w", err)
			}
			defer os.RemoveAll(dir) //nolint:errcheck

			res, err := synth.Synthesize(cmd.Context(), text, filepath.Join(dir, "speech.wav"))
			if err != nil {
				if g := tts.Guidance(err); g != "" {
					fmt.Fprintln(os.Stderr, g)
				}
				return err
			}
			log.Debug("Speaking", "words", len(res.WordTimings), "duration_ms", res.DurationMS, "cached", res.Cached)

			return playHeadless(cmd.Context(), s, res.AudioPath, res.DurationMS, os.Stdout)
		},
	}
)

func init() {
	playCmd.Flags().Uint64Var(&playDurationMS, "duration", 0, "duration in milliseconds (probed from the file when unset)")
}

// playHeadless plays path to the end, or until interrupted, while
// reporting the state to w.
func playHeadless(ctx context.Context, s settings, path string, durationMS uint64, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	controller, err := newController(s)
	if err != nil {
		return err
	}
	defer controller.Close() //nolint:errcheck

	var report reporter = jsonReporter{json.NewEncoder(w)}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		report = newProgressReporter(w)
	}

	return runPlayback(ctx, controller, path, durationMS, report, reportInterval)
}

// runPlayback loads and plays path on p, reporting the published state every
// interval until the audio finishes or ctx is done.
func runPlayback(ctx context.Context, p *playback.Controller, path string, durationMS uint64, report reporter, interval time.Duration) error {
	if err := p.LoadSync(ctx, path, durationMS); err != nil {
		return err
	}
	if err := p.Play(); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			report.done(p.State())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if p.IsFinished() {
				st, err := p.QueryState(ctx)
				if err != nil {
					st = p.State()
				}
				report.done(st)
				return nil
			}
			report.state(p.State())
		}
	}
}

type reporter interface {
	state(playback.AudioState)
	done(playback.AudioState)
}

type jsonReporter struct {
	enc *json.Encoder
}

func (r jsonReporter) state(st playback.AudioState) {
	if err := r.enc.Encode(st); err != nil {
		log.Debug("Unable to write state", "err", err)
	}
}

func (r jsonReporter) done(st playback.AudioState) { r.state(st) }

type progressReporter struct {
	w   io.Writer
	bar progress.Model
}

func newProgressReporter(w io.Writer) *progressReporter {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return &progressReporter{w: w, bar: bar}
}

func (r *progressReporter) state(st playback.AudioState) {
	pct := 0.0
	if st.DurationMS > 0 {
		pct = min(1, float64(st.PositionMS)/float64(st.DurationMS))
	}
	icon := "‖"
	if st.IsPlaying {
		icon = "▶"
	}
	fmt.Fprintf(r.w, "\r%s %s %s/%s %s ",
		icon,
		r.bar.ViewAs(pct),
		formatDuration(st.PositionMS),
		formatDuration(st.DurationMS),
		faint(fmt.Sprintf("%.1fx vol %d%%", st.Speed, int(st.Volume*100+0.5))),
	)
}

func (r *progressReporter) done(st playback.AudioState) {
	r.state(st)
	fmt.Fprintln(r.w)
}

func formatDuration(ms uint64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
