package engine

import (
	"encoding/json"
	"time"
)

// FSEventRecord is the payload of one fs_event log line: a single path the
// watcher observed being created or written to.
type FSEventRecord struct {
	Path string `json:"path"`
}

// QuarantineEntry is one (original, destination-or-null, status) triple in
// a DetectionReport's files_quarantined list, a QuarantineRecord's moved
// list, or a SafeguardRecord's copied list. It marshals as a 3-element JSON
// array rather than an object, matching the shape the external recovery
// CLI expects for recovery-log entries: it treats anything that isn't a
// list as unparseable and restores nothing for it.
type QuarantineEntry struct {
	Original    string
	Destination string
	Status      string
}

// MarshalJSON encodes e as [original, destination-or-null, status]. The
// destination is null when empty (e.g. in_progress or a failed move), since
// the recovery CLI checks the middle element's truthiness before using it.
func (e QuarantineEntry) MarshalJSON() ([]byte, error) {
	var dest any
	if e.Destination != "" {
		dest = e.Destination
	}
	return json.Marshal([3]any{e.Original, dest, e.Status})
}

// AttributionEntry maps one file to the process holding it open, if any.
type AttributionEntry struct {
	File string  `json:"file"`
	PID  *int    `json:"pid"`
	Name *string `json:"name"`
}

// KilledProcess names the principal process a detection terminated.
type KilledProcess struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

// ScoreDetail mirrors scorer.Detail for JSON emission.
type ScoreDetail struct {
	Entropy float64 `json:"entropy"`
	Reason  string  `json:"reason"`
}

// ScoreReport mirrors scorer.Report for JSON emission.
type ScoreReport struct {
	Score   float64       `json:"score"`
	Details []ScoreDetail `json:"details"`
}

// DetectionReport is the output of one positive verdict. It is emitted
// once, and never mutated afterward.
type DetectionReport struct {
	Timestamp         time.Time          `json:"timestamp"`
	SampleEntropies   []float64          `json:"sample_entropies"`
	ScoreReport       ScoreReport        `json:"score_report"`
	FilesQuarantined  []QuarantineEntry  `json:"files_quarantined"`
	Attributed        []AttributionEntry `json:"attributed"`
	ProcessKilled     *KilledProcess     `json:"process_killed"`
}

// QuarantineRecord is one line appended to the recovery log.
type QuarantineRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	Moved      []QuarantineEntry `json:"moved"`
	TotalFiles int               `json:"total_files"`
	Successful int               `json:"successful"`
}

// SafeguardRecord summarizes one safeguard run.
type SafeguardRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Dest      string            `json:"dest"`
	Copied    []QuarantineEntry `json:"copied"`
}

// ProcessTerminationRecord summarizes one termination cascade.
type ProcessTerminationRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Principal struct {
		PID    int    `json:"pid"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"principal"`
	Children []struct {
		PID    int    `json:"pid"`
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"children"`
}

// ScanSummaryRecord summarizes one evaluation pass that drained at least one
// event; it is emitted whether or not the pass goes on to detect.
type ScanSummaryRecord struct {
	Timestamp   time.Time   `json:"timestamp"`
	EventCount  int         `json:"event_count"`
	ScoreReport ScoreReport `json:"score_report"`
	IsWave      bool        `json:"is_wave"`
}
