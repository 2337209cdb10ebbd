package observers

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/voskstream/pkg/metrics"
	"github.com/harunnryd/voskstream/pkg/redact"
	"github.com/harunnryd/voskstream/pkg/vosk"
)

// TimelineObserver writes one JSONL file per recognition run with its state changes
// and metric events. A run's file is closed once the run reaches a terminal state.
type TimelineObserver struct {
	dir      string
	redactor *redact.Redactor
	mu       sync.Mutex
	files    map[string]*os.File
}

func NewTimelineObserver(dir string, redactor *redact.Redactor) *TimelineObserver {
	return &TimelineObserver{dir: dir, redactor: redactor, files: make(map[string]*os.File)}
}

type timelineEvent struct {
	Time   time.Time         `json:"time"`
	Event  string            `json:"event"`
	RunID  string            `json:"run_id"`
	Value  *float64          `json:"value,omitempty"`
	From   string            `json:"from,omitempty"`
	To     string            `json:"to,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

// RecordEvent implements metrics.Observer. Events without a run_id tag are ignored.
func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	runID := ev.Tags["run_id"]
	if runID == "" {
		return
	}
	value := ev.Value
	o.write(runID, timelineEvent{
		Time:   ev.Time.UTC(),
		Event:  ev.Name,
		RunID:  runID,
		Value:  &value,
		Tags:   withoutRunID(ev.Tags),
		Fields: o.sanitizeFields(ev.Fields),
	})
}

// OnStateChange implements vosk.StateListener.
func (o *TimelineObserver) OnStateChange(change vosk.StateChange) {
	if change.RunID == "" {
		return
	}
	o.write(change.RunID, timelineEvent{
		Time:   change.Timestamp.UTC(),
		Event:  "state",
		RunID:  change.RunID,
		From:   change.From.String(),
		To:     change.To.String(),
		Reason: change.Reason,
	})
	if change.To.Terminal() {
		o.closeRun(change.RunID)
	}
}

// Close closes any open files.
func (o *TimelineObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	var err error
	for _, f := range o.files {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	o.files = make(map[string]*os.File)
	return err
}

// Path is the file a run's timeline is written to.
func (o *TimelineObserver) Path(runID string) string {
	return filepath.Join(o.dir, sanitizeID(runID)+".jsonl")
}

func (o *TimelineObserver) write(runID string, entry timelineEvent) {
	if strings.TrimSpace(o.dir) == "" {
		return
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	f := o.fileFor(runID)
	if f == nil {
		return
	}
	_, _ = f.Write(append(line, '\n'))
}

// fileFor must be called with o.mu held.
func (o *TimelineObserver) fileFor(runID string) *os.File {
	safe := sanitizeID(runID)
	if safe == "" {
		return nil
	}
	if f := o.files[safe]; f != nil {
		return f
	}
	if err := os.MkdirAll(o.dir, 0o755); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(o.dir, safe+".jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil
	}
	o.files[safe] = f
	return f
}

func (o *TimelineObserver) closeRun(runID string) {
	safe := sanitizeID(runID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if f := o.files[safe]; f != nil {
		_ = f.Close()
		delete(o.files, safe)
	}
}

func sanitizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

func withoutRunID(in map[string]string) map[string]string {
	if len(in) <= 1 {
		return nil
	}
	out := make(map[string]string, len(in)-1)
	for k, v := range in {
		if k != "run_id" {
			out[k] = v
		}
	}
	return out
}

func (o *TimelineObserver) sanitizeFields(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[k] = o.redactor.Text(s)
			continue
		}
		out[k] = v
	}
	return out
}

var (
	_ metrics.Observer   = (*TimelineObserver)(nil)
	_ vosk.StateListener = (*TimelineObserver)(nil)
)
