package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	// Transport failures. All three are fatal for a recognition run.
	ReasonConnect      ReasonCode = "vosk_connect"
	ReasonTransmission ReasonCode = "vosk_transmission"
	ReasonProtocol     ReasonCode = "vosk_protocol"

	// ReasonMalformedFinal is reported, not raised: the run emits an error payload instead.
	ReasonMalformedFinal ReasonCode = "vosk_malformed_final"

	// ReasonEmit means a sink rejected a partial or final message.
	ReasonEmit ReasonCode = "vosk_emit"

	ReasonAudioRead     ReasonCode = "audio_read"
	ReasonConfigInvalid ReasonCode = "config_invalid"
	ReasonPublish       ReasonCode = "publish"
	ReasonHistory       ReasonCode = "history"
)
