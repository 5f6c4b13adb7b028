package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// decodeFile opens path and returns a streamer for its contents. Closing the
// streamer closes the file.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, newError(ErrorCodeFileOpen, path, err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		s, format, err = wav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".flac":
		s, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		s, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, newError(ErrorCodeDecode, path, err)
	}

	return &fileStreamer{StreamSeekCloser: s, file: f}, format, nil
}

// fileStreamer closes the backing file along with the decoder. Not every
// beep decoder closes its reader.
type fileStreamer struct {
	beep.StreamSeekCloser
	file *os.File
}

func (s *fileStreamer) Close() error {
	err := s.StreamSeekCloser.Close()
	_ = s.file.Close()
	return err
}

// ProbeDuration decodes the header of the audio file at path and returns its
// playing time at normal speed.
func ProbeDuration(path string) (time.Duration, error) {
	s, format, err := decodeFile(path)
	if err != nil {
		return 0, err
	}
	defer s.Close() //nolint:errcheck

	if format.SampleRate <= 0 {
		return 0, newError(ErrorCodeDecode, path, fmt.Errorf("invalid sample rate %d", format.SampleRate))
	}
	return format.SampleRate.D(s.Len()), nil
}
