package history

import (
	"github.com/harunnryd/voskstream/pkg/redact"
	"github.com/harunnryd/voskstream/pkg/vosk"
)

// FromOutcome converts a finished recognition into a history row. Transcript text
// passes through r before it is stored.
func FromOutcome(source string, out vosk.Outcome, runErr error, r *redact.Redactor) Run {
	run := Run{
		RunID:      out.RunID,
		Endpoint:   out.Endpoint,
		Source:     source,
		SampleRate: out.SampleRate,
		Chunks:     out.ChunksSent,
		Duration:   out.Duration,
	}
	switch {
	case runErr != nil:
		run.Status = StatusFailed
		run.Error = runErr.Error()
	case out.Malformed:
		run.Status = StatusMalformed
		run.Final = vosk.InvalidJSONPayload
	default:
		run.Status = StatusDone
	}
	if out.Result != nil {
		run.Conf = out.Result.Conf
		run.Text = r.Text(out.Result.Text())
		run.Final = r.Text(out.Result.String())
	}
	return run
}
