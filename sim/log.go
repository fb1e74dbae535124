package sim

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Log fields attached to every entity log line.
const (
	fieldTick      = "tick"
	fieldActorType = "actor_type"
	fieldActorName = "actor_name"
)

// Record is one structured log line produced during a simulation.
type Record struct {
	Time      int64
	Severity  logrus.Level
	ActorType string
	ActorName string
	Message   string
}

// Sink receives the log records of a World.
// Emit is called synchronously from the simulation goroutine.
type Sink interface {
	Emit(Record)
}

// ChanSink forwards records to a channel drained by the caller.
// The simulation blocks when the channel is full.
type ChanSink struct {
	ch   chan Record
	once sync.Once
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Record, buffer)}
}

func (s *ChanSink) Emit(r Record) {
	s.ch <- r
}

// Records returns the receive side of the sink.
func (s *ChanSink) Records() <-chan Record {
	return s.ch
}

// Close ends the record stream. Safe to call more than once.
func (s *ChanSink) Close() {
	s.once.Do(func() { close(s.ch) })
}

// MemorySink keeps every record in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (s *MemorySink) Emit(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of the collected records.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// sinkHook converts logrus entries into Records.
type sinkHook struct {
	sink Sink
}

func (h *sinkHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *sinkHook) Fire(entry *logrus.Entry) error {
	r := Record{Severity: entry.Level, Message: entry.Message}
	if ts, ok := entry.Data[fieldTick].(int64); ok {
		r.Time = ts
	}
	if v, ok := entry.Data[fieldActorType].(string); ok {
		r.ActorType = v
	}
	if v, ok := entry.Data[fieldActorName].(string); ok {
		r.ActorName = v
	}
	h.sink.Emit(r)
	return nil
}

// newLogger builds the per-world logger. Without an explicit output the
// text stream is discarded and the sink is the only consumer.
func newLogger(level logrus.Level, out io.Writer, sink Sink) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	if out == nil {
		out = io.Discard
	}
	logger.SetOutput(out)
	if sink != nil {
		logger.AddHook(&sinkHook{sink: sink})
	}
	return logger
}

func entityLog(logger *logrus.Logger, tick int64, kind ActorKind, name string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		fieldTick:      tick,
		fieldActorType: string(kind),
		fieldActorName: name,
	})
}
