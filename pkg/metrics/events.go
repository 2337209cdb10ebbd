package metrics

// Event names emitted by the recognition client.
const (
	EventChunkSent      = "vosk.chunk_sent"
	EventReceiveLatency = "vosk.receive_latency_ms"
	EventFinalConf      = "vosk.final_conf"
	EventRunFailed      = "vosk.run_failed"
)

// HighVolumeEvents are emitted once per chunk and are the ones worth sampling.
var HighVolumeEvents = []string{EventChunkSent, EventReceiveLatency}
