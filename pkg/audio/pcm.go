package audio

import (
	"fmt"
	"sync"
)

// PCMSource serves frames from an in-memory buffer.
type PCMSource struct {
	format Format

	mu  sync.Mutex
	pos int
	buf []byte
}

func NewPCMSource(format Format, data []byte) (*PCMSource, error) {
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", format.SampleRate)
	}
	if format.BitDepth <= 0 {
		return nil, fmt.Errorf("audio: invalid bit depth %d", format.BitDepth)
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	return &PCMSource{format: format, buf: data}, nil
}

func (s *PCMSource) SampleRate() int { return s.format.SampleRate }
func (s *PCMSource) Format() Format  { return s.format }

func (s *PCMSource) ReadChunk(samples int) ([]byte, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("audio: invalid chunk size %d", samples)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := samples * s.format.BlockAlign()
	if rest := len(s.buf) - s.pos; n > rest {
		n = rest
	}
	out := append([]byte(nil), s.buf[s.pos:s.pos+n]...)
	s.pos += n
	return out, nil
}
