// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	fromClipboard bool

	rootCmd = &cobra.Command{
		Use:   "readaloud [FILE]",
		Short: "Read documents aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead markdown and text documents %s, following along word by word.", keyword("aloud")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadExplicitConfig(cmd)
		},
		RunE: execute,
	}

	readCmd = &cobra.Command{
		Use:     "read FILE",
		Short:   "Open a document in the reader",
		Example: paragraph("readaloud read notes.md\nreadaloud read --clipboard"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    execute,
	}
)

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(_ *cobra.Command, args []string) error {
	var path, text string

	switch {
	case fromClipboard:
		s, err := clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("unable to read clipboard: %w", err)
		}
		text = s

	case len(args) == 1 && args[0] != "-":
		p, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("unable to open file: %w", err)
		}
		path = p

	default:
		// if stdin is a pipe then use stdin for input. note that you can
		// also explicitly use a - to read from stdin.
		pipe, err := stdinIsPipe()
		if err != nil {
			return err
		}
		if !pipe {
			return errors.New("missing document: pass a FILE, pipe text on stdin, or use --clipboard")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("unable to read from stdin: %w", err)
		}
		text = string(b)
	}

	if text == "" && path == "" {
		return errors.New("nothing to read")
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the reader needs a terminal; use speak or play for headless output")
	}

	return runTUI(path, text)
}

func runTUI(path, text string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}

	cfg.Path = path
	cfg.Text = text
	cfg.Speed = s.Speed
	cfg.Volume = s.Volume
	cfg.AutoAdvance = s.AutoAdvance
	cfg.EnableMouse = s.Mouse

	audioDir, err := os.MkdirTemp("", appName+"-")
	if err != nil {
		return fmt.Errorf("unable to create audio directory: %w", err)
	}
	defer os.RemoveAll(audioDir) //nolint:errcheck
	cfg.AudioDir = audioDir

	synth, store := newSynthesizer(s)
	if store != nil {
		defer store.Close() //nolint:errcheck
	}
	if !synth.Available() {
		fmt.Fprintln(os.Stderr, tts.Guidance(tts.ErrPiperNotFound))
		return tts.ErrPiperNotFound
	}

	controller, err := newController(s)
	if err != nil {
		return err
	}
	defer controller.Close() //nolint:errcheck

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, controller, synth).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().Float64("speed", 1.0, "playback speed (0.5-2.0)")
	rootCmd.PersistentFlags().Float64("volume", 1.0, "playback volume (0.0-1.0)")
	rootCmd.PersistentFlags().String("model", "", "piper voice model, a path or a name in the voices directory")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the clipboard instead of a file")
	rootCmd.Flags().BoolP("auto-advance", "a", true, "move to the next paragraph when one finishes")
	rootCmd.Flags().BoolP("mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")
	readCmd.Flags().AddFlagSet(rootCmd.Flags())

	// Config bindings
	_ = viper.BindPFlag("speed", rootCmd.PersistentFlags().Lookup("speed"))
	_ = viper.BindPFlag("volume", rootCmd.PersistentFlags().Lookup("volume"))
	_ = viper.BindPFlag("piper.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("auto_advance", rootCmd.Flags().Lookup("auto-advance"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	setDefaults()

	rootCmd.AddCommand(readCmd, playCmd, speakCmd, voicesCmd, cacheCmd, configCmd, manCmd)
}

// loadExplicitConfig reads the file named by --config over the defaults.
func loadExplicitConfig(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("config") {
		return nil
	}
	configFile = expandPath(configFile)
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}
	log.Debug("Using configuration file", "path", configFile)
	return nil
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], appName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
