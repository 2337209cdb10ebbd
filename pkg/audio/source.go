package audio

import (
	"math"
	"time"
)

// ChunkDuration is the amount of audio carried by one outbound chunk.
const ChunkDuration = 200 * time.Millisecond

// Source yields raw PCM in fixed-size reads. ReadChunk returns fewer bytes near the end
// and an empty slice with a nil error once the stream is exhausted.
type Source interface {
	SampleRate() int
	ReadChunk(samples int) ([]byte, error)
}

// Format describes interleaved PCM frames.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// BlockAlign is the size in bytes of one frame (one sample per channel).
func (f Format) BlockAlign() int {
	ch := f.Channels
	if ch <= 0 {
		ch = 1
	}
	return ch * ((f.BitDepth + 7) / 8)
}

// ChunkSamples returns how many frames make up one chunk at the given rate.
func ChunkSamples(sampleRate int) int {
	n := int(math.Round(float64(sampleRate) * ChunkDuration.Seconds()))
	if n < 1 {
		return 1
	}
	return n
}
