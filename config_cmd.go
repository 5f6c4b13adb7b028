package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# playback speed, 0.5 to 2.0
speed: 1.0
# playback volume, 0.0 to 1.0
volume: 1.0
# move to the next paragraph when one finishes
auto_advance: true
# mouse wheel scrolling in the reader
mouse: false

piper:
  # piper executable, a path or a name on PATH
  binary: "piper"
  # voice model, a path to an .onnx file or a name in voices_dir
  model: ""
  # where "readaloud voices" looks for models (default: user data dir)
  voices_dir: ""
  # limit for one synthesis run
  timeout: "30s"
  # phoneme length multiplier, 0 keeps the voice default
  length_scale: 0

cache:
  # synthesized audio cache (default: user cache dir)
  dir: ""
  # disk cache size in MB
  max_size: 100
  # in-memory cache size in MB
  memory_size: 32
  # zstd level, 1 (fastest) to 22 (smallest)
  compression_level: 3

audio:
  # output sample rate, 44100 or 48000
  sample_rate: 44100
  # device buffer
  buffer: "50ms"

playback:
  # how often the playback state is republished
  tick: "50ms"
  # how long to wait when asking whether audio has finished
  finish_timeout: "100ms"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/config.yml\nreadaloud config show"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Read Aloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  paragraph(fmt.Sprintf("\n%s the settings after merging the config file, environment and flags.", keyword("Print"))),
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		return writeSettings(os.Stdout, s)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}

func writeSettings(w io.Writer, s settings) error {
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# %s\n", used)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("unable to encode settings: %w", err)
	}
	return enc.Close()
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
