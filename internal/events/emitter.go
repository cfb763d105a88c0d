package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Emitter assigns gap-free sequence numbers and fans events out to the
// configured recorders. The primary (file) recorder's errors are returned;
// mirror errors are logged and swallowed.
type Emitter struct {
	mu      sync.Mutex
	runID   string
	seq     int
	primary Recorder
	mirrors []Recorder
	log     zerolog.Logger
	clock   func() time.Time
}

// NewEmitter builds an emitter for runID. clock may be nil for time.Now.
func NewEmitter(runID string, primary Recorder, log zerolog.Logger, clock func() time.Time, mirrors ...Recorder) *Emitter {
	if clock == nil {
		clock = time.Now
	}
	return &Emitter{
		runID:   runID,
		primary: primary,
		mirrors: mirrors,
		log:     log,
		clock:   clock,
	}
}

// Emit records one event. Sequence numbers start at 1 and never skip; a
// failed primary write leaves the counter advanced, matching the journal's
// line count contract (the run aborts on that error anyway).
func (e *Emitter) Emit(eventType, contentType string, data any, metadata map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	ev := RunEvent{
		RunID:       e.runID,
		Seq:         e.seq,
		TS:          e.clock().UTC(),
		EventType:   eventType,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
	}
	if err := e.primary.Record(ev); err != nil {
		return err
	}
	for _, m := range e.mirrors {
		if err := m.Record(ev); err != nil {
			e.log.Warn().Err(err).Str("event_type", eventType).Msg("event mirror write failed")
		}
	}
	return nil
}

// Seq returns the last assigned sequence number.
func (e *Emitter) Seq() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq
}

// Close closes all recorders, primary last.
func (e *Emitter) Close() error {
	var first error
	for _, m := range e.mirrors {
		if err := m.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := e.primary.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
