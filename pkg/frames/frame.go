package frames

import (
	"encoding/json"
	"fmt"

	"github.com/harunnryd/voskstream/pkg/transports"
)

type Kind string

const (
	KindConfig  Kind = "config"
	KindAudio   Kind = "audio"
	KindEOF     Kind = "eof"
	KindPartial Kind = "partial"
	KindFinal   Kind = "final"
)

// Frame is one protocol message exchanged with the recognizer.
type Frame interface {
	Kind() Kind
}

// ConfigFrame announces the audio sample rate. It must be the first message of a session.
type ConfigFrame struct {
	SampleRate int
}

// AudioFrame carries one chunk of raw PCM bytes.
type AudioFrame struct {
	Data []byte
}

// EOFFrame marks the end of the audio stream.
type EOFFrame struct{}

// PartialFrame is an intermediate recognizer response, kept opaque.
type PartialFrame struct {
	Raw []byte
}

// FinalFrame is the recognizer's answer to EOF.
type FinalFrame struct {
	Raw []byte
}

func (ConfigFrame) Kind() Kind  { return KindConfig }
func (AudioFrame) Kind() Kind   { return KindAudio }
func (EOFFrame) Kind() Kind     { return KindEOF }
func (PartialFrame) Kind() Kind { return KindPartial }
func (FinalFrame) Kind() Kind   { return KindFinal }

type configPayload struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

type eofPayload struct {
	EOF int `json:"eof"`
}

// Encode renders an outbound frame as a transport message.
func Encode(f Frame) (transports.Message, error) {
	switch v := f.(type) {
	case ConfigFrame:
		if v.SampleRate <= 0 {
			return transports.Message{}, fmt.Errorf("frames: invalid sample rate %d", v.SampleRate)
		}
		var p configPayload
		p.Config.SampleRate = v.SampleRate
		data, err := json.Marshal(p)
		if err != nil {
			return transports.Message{}, err
		}
		return transports.Message{Type: transports.TextMessage, Data: data}, nil
	case AudioFrame:
		return transports.Message{Type: transports.BinaryMessage, Data: v.Data}, nil
	case EOFFrame:
		data, err := json.Marshal(eofPayload{EOF: 1})
		if err != nil {
			return transports.Message{}, err
		}
		return transports.Message{Type: transports.TextMessage, Data: data}, nil
	default:
		return transports.Message{}, fmt.Errorf("frames: cannot encode %T", f)
	}
}

// Decode wraps an inbound message. The payload is not inspected; final selects the
// frame kind expected at this point of the exchange.
func Decode(msg transports.Message, final bool) Frame {
	if final {
		return FinalFrame{Raw: msg.Data}
	}
	return PartialFrame{Raw: msg.Data}
}
