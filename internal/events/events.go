// Package events records the full run timeline as an append-only stream.
// Every externally visible step of a run is a RunEvent with a gap-free
// sequence number; the file journal is authoritative and a Redis mirror may
// keep a short-lived copy for live consumers.
package events

import (
	"time"
)

// Event kinds. Every event is one of these four high-level categories.
const (
	KindSystem = "system"
	KindTool   = "tool"
	KindLLM    = "llm"
	KindError  = "error"
)

// Content types classify what an event is about. The set is closed;
// consumers switch on these values.
const (
	ContentMessage = "message"

	// Planning
	ContentPlannerStep      = "planner_step"
	ContentSearchQuery      = "search_query"
	ContentSearchResults    = "search_results"
	ContentURLSelected      = "url_selected"
	ContentEvidenceAdded    = "evidence_added"
	ContentOutlineUpdated   = "outline_updated"
	ContentPlannerTerminate = "planner_terminate"

	// Evaluation
	ContentOutlineJudgeResult = "outline_judge_result"

	// Writing
	ContentWriterSectionStart    = "writer_section_start"
	ContentWriterSectionDone     = "writer_section_done"
	ContentWriterStep            = "writer_step"
	ContentWriterRetrieveQuery   = "writer_retrieve_query"
	ContentWriterRetrieveResults = "writer_retrieve_results"
	ContentWriterWrite           = "writer_write"
	ContentWriterTerminate       = "writer_terminate"
	ContentReportDone            = "report_done"
)

// RunEvent is one entry in the run timeline. Data is polymorphic: a string,
// an object, a list, or nil depending on the content type.
type RunEvent struct {
	RunID       string            `json:"run_id"`
	Seq         int               `json:"seq"`
	TS          time.Time         `json:"ts"`
	EventType   string            `json:"event_type"`
	ContentType string            `json:"content_type"`
	Data        any               `json:"data"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Recorder persists events. Implementations must tolerate being called from
// a single goroutine only; the Emitter serializes access.
type Recorder interface {
	Record(ev RunEvent) error
	Close() error
}

// RecorderFunc adapts a plain function to the Recorder interface.
type RecorderFunc func(RunEvent) error

func (f RecorderFunc) Record(ev RunEvent) error { return f(ev) }

func (f RecorderFunc) Close() error { return nil }
