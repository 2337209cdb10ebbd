package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
	"github.com/harunnryd/voskstream/pkg/errorsx"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// WAVSource streams the PCM payload of a WAV file without decoding it.
type WAVSource struct {
	path   string
	file   *os.File
	format Format
	frames int
	data   io.Reader
	done   bool
}

// OpenWAV opens path and positions the reader at the start of the data chunk.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("audio: open %s: %w", path, err), errorsx.ReasonAudioRead)
	}
	src, err := newWAVSource(path, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return src, nil
}

func newWAVSource(path string, f *os.File) (*WAVSource, error) {
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("audio: %s is not a valid WAV file: %w", path, err), errorsx.ReasonAudioRead)
	}
	if dec.NumChans < 1 || dec.BitDepth < 8 {
		return nil, errorsx.Newf(errorsx.ReasonAudioRead, "audio: %s is not a valid WAV file", path)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return nil, errorsx.Newf(errorsx.ReasonAudioRead, "audio: %s: unsupported WAV format %d", path, dec.WavAudioFormat)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("audio: %s: locate data chunk: %w", path, err), errorsx.ReasonAudioRead)
	}
	if dec.PCMChunk == nil {
		return nil, errorsx.Newf(errorsx.ReasonAudioRead, "audio: %s: missing data chunk", path)
	}
	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if format.SampleRate <= 0 || format.BitDepth <= 0 {
		return nil, errorsx.Newf(errorsx.ReasonAudioRead, "audio: %s: invalid header (rate %d, depth %d)", path, format.SampleRate, format.BitDepth)
	}
	size := dec.PCMChunk.Size
	return &WAVSource{
		path:   path,
		file:   f,
		format: format,
		frames: size / format.BlockAlign(),
		data:   io.LimitReader(dec.PCMChunk, int64(size)),
	}, nil
}

func (s *WAVSource) Path() string    { return s.path }
func (s *WAVSource) SampleRate() int { return s.format.SampleRate }
func (s *WAVSource) Format() Format  { return s.format }
func (s *WAVSource) Frames() int     { return s.frames }

func (s *WAVSource) ReadChunk(samples int) ([]byte, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("audio: invalid chunk size %d", samples)
	}
	if s.done {
		return nil, nil
	}
	buf := make([]byte, samples*s.format.BlockAlign())
	n, err := io.ReadFull(s.data, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		return buf[:n], nil
	default:
		return nil, errorsx.Wrap(fmt.Errorf("audio: read %s: %w", s.path, err), errorsx.ReasonAudioRead)
	}
}

func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
