package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

var voicesCmd = &cobra.Command{
	Use:     "voices [FILTER]",
	Short:   "List installed piper voices",
	Long:    paragraph(fmt.Sprintf("\n%s the piper voice models in the voices directory, optionally fuzzy filtered.", keyword("List"))),
	Example: paragraph("readaloud voices\nreadaloud voices german"),
	Args:    cobra.ArbitraryArgs,
	RunE: func(_ *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}

		voices, err := tts.Voices(s.Piper.VoicesDir)
		if err != nil {
			return err
		}
		voices = tts.FilterVoices(voices, strings.Join(args, " "))

		if len(voices) == 0 {
			fmt.Fprintln(os.Stderr, paragraph(fmt.Sprintf("No voices found in %s", s.Piper.VoicesDir)))
			return nil
		}

		for _, v := range voices {
			fmt.Println(formatVoice(v, s.Piper.Model))
		}
		return nil
	},
}

func formatVoice(v tts.VoiceInfo, selected string) string {
	marker := "  "
	if v.Path == selected {
		marker = keyword("• ")
	}
	line := marker + v.String()
	if !v.Available {
		line += faint(" (missing .onnx.json)")
	}
	return line
}
