package metrics

import (
	"math"
	"sync/atomic"
)

// SamplingObserver forwards every n-th event of the listed names and all other events as-is.
// With no names given, every event is sampled.
type SamplingObserver struct {
	inner   Observer
	every   uint64
	names   map[string]struct{}
	counter atomic.Uint64
}

func NewSamplingObserver(inner Observer, rate float64, names ...string) *SamplingObserver {
	rate = math.Max(0, math.Min(1, rate))
	var every uint64
	if rate > 0 {
		every = uint64(math.Round(1.0 / rate))
		if every == 0 {
			every = 1
		}
	}
	var set map[string]struct{}
	if len(names) > 0 {
		set = make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
	}
	return &SamplingObserver{inner: inner, every: every, names: set}
}

func (s *SamplingObserver) RecordEvent(ev MetricsEvent) {
	if s.names != nil {
		if _, sampled := s.names[ev.Name]; !sampled {
			s.inner.RecordEvent(ev)
			return
		}
	}
	switch {
	case s.every == 0:
		return
	case s.every == 1:
		s.inner.RecordEvent(ev)
	default:
		if s.counter.Add(1)%s.every == 0 {
			s.inner.RecordEvent(ev)
		}
	}
}
