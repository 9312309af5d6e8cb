// Package engine orchestrates the detection & response pipeline: it
// periodically polls the event aggregator, scores the result, and on a
// positive verdict fans out to quarantine, process termination, and
// safeguard snapshotting with strict failure isolation between them.
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"ransomwatch/internal/aggregator"
	"ransomwatch/internal/config"
	"ransomwatch/internal/entropy"
	"ransomwatch/internal/eventlog"
	"ransomwatch/internal/logging"
	"ransomwatch/internal/process"
	"ransomwatch/internal/quarantine"
	"ransomwatch/internal/safeguard"
	"ransomwatch/internal/scorer"
	"ransomwatch/internal/store"
	"ransomwatch/internal/watcher"
)

// Engine owns the orchestration state. It borrows snapshots from the
// Aggregator but never reaches into its internals directly.
type Engine struct {
	cfg       *config.Config
	logger    *logging.Logger
	uiSink    func(string)
	inspector process.Inspector

	agg *aggregator.Aggregator
	fsw *watcher.Watcher

	events   *eventlog.Writer
	recovery *eventlog.Writer
	mirror   *store.Store // nil when the mirror is disabled

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup // evaluator loop
	respWG  sync.WaitGroup // in-flight response tasks; Stop does not wait on it
}

// New wires up an Engine from cfg. uiSink receives human-readable strings
// and is called from engine goroutines; the caller's sink must marshal to
// its own thread if it needs to. New performs no I/O that can fail for
// reasons other than directory creation and the optional SQLite mirror;
// only startup errors propagate to the caller.
func New(cfg *config.Config, logger *logging.Logger, uiSink func(string)) (*Engine, error) {
	if uiSink == nil {
		uiSink = func(string) {}
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("engine: ensure directories: %w", err)
	}

	events, err := eventlog.NewWriter(cfg.EventLogPath())
	if err != nil {
		return nil, fmt.Errorf("engine: open event log: %w", err)
	}
	recovery, err := eventlog.NewWriter(cfg.RecoveryLogPath())
	if err != nil {
		return nil, fmt.Errorf("engine: open recovery log: %w", err)
	}

	var mirror *store.Store
	if cfg.EventStorePath != "" {
		mirror, err = store.Open(cfg.EventStorePath)
		if err != nil {
			// The mirror is an ambient convenience, not the durability
			// unit of record; its failure to open does not fail startup.
			logger.Warn("event store mirror unavailable", "error", err)
			mirror = nil
		}
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger,
		uiSink:    uiSink,
		inspector: process.New(),
		events:    events,
		recovery:  recovery,
		mirror:    mirror,
		stopCh:    make(chan struct{}),
	}

	e.agg = aggregator.New(cfg.WindowSeconds, e.onUIUpdate)

	return e, nil
}

// Start begins watching all configured paths and launches the periodic
// evaluator. Watcher start failures propagate to the caller and fail the
// run loudly.
func (e *Engine) Start() error {
	fsw, err := watcher.New(e.cfg.WatchPaths, e.onFSEvent)
	if err != nil {
		return fmt.Errorf("engine: create watcher: %w", err)
	}
	if err := fsw.Start(); err != nil {
		return fmt.Errorf("engine: start watcher: %w", err)
	}
	e.fsw = fsw
	e.running.Store(true)

	e.wg.Add(1)
	go e.evaluatorLoop()

	return nil
}

// Stop transitions the engine back to idle: the watcher is stopped with a
// bounded wait, and the evaluator loop is cancelled cooperatively. In-flight
// response tasks are daemonic and may still be running when Stop returns.
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopCh)

	if e.fsw != nil {
		if err := e.fsw.Stop(); err != nil {
			e.logger.Warn("watcher stop", "error", err)
		}
	}

	e.wg.Wait()

	if e.mirror != nil {
		_ = e.mirror.Close()
	}
}

// onUIUpdate forwards a fire-and-forget string to the configured sink.
func (e *Engine) onUIUpdate(msg string) {
	e.uiSink(msg)
}

// onFSEvent is the watcher's Recorder callback: it logs the raw observation
// before handing it to the aggregator, so events.jsonl carries one fs_event
// line per touched path regardless of how the aggregator later buckets it.
func (e *Engine) onFSEvent(path string) {
	e.appendEvent(eventlog.TypeFSEvent, FSEventRecord{Path: path})
	e.agg.Record(path)
}

func (e *Engine) evaluatorLoop() {
	defer e.wg.Done()

	interval := time.Duration(e.cfg.CheckInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick runs a single cooperative loop iteration. Any panic inside is
// recovered, logged, and surfaced to the UI, so a crashed evaluator never
// silently stops monitoring; the loop simply continues on the next tick.
func (e *Engine) tick() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluator loop panic", "recovered", r)
			e.uiSink(fmt.Sprintf("Evaluator error: %v", r))
		}
	}()

	e.CheckNow()
}

// CheckNow runs one evaluation pass immediately. It is exported so a test
// harness or a manual-scan command can trigger an evaluation without
// waiting for the next tick.
func (e *Engine) CheckNow() {
	recent := e.agg.DrainRecent()
	if len(recent) == 0 {
		e.maybeNotifySuspiciousProcess()
		return
	}

	sampleCount := e.cfg.SampleEntropyCount
	if sampleCount > len(recent) {
		sampleCount = len(recent)
	}
	entropies := make([]float64, 0, sampleCount)
	for _, path := range recent[:sampleCount] {
		entropies = append(entropies, entropy.Sample(path, e.cfg.SampleBytes))
	}

	thresholds := scorer.Thresholds{
		ModifiedThreshold: e.cfg.ModifiedThreshold,
		EntropyThreshold:  e.cfg.EntropyThreshold,
		HighEntropyCount:  e.cfg.HighEntropyCount,
	}
	report := scorer.Score(len(recent), entropies, thresholds)

	e.emitScanSummary(len(recent), report)

	if report.IsWave || report.Score >= e.cfg.DetectionScoreThreshold {
		e.respWG.Add(1)
		go func() {
			defer e.respWG.Done()
			e.onDetection(recent, entropies, report)
		}()
	}

	e.maybeNotifySuspiciousProcess()
}

// maybeNotifySuspiciousProcess surfaces a suspicious process as a UI
// notification, independently of detection. No termination happens outside
// of an actual detection.
func (e *Engine) maybeNotifySuspiciousProcess() {
	candidate := e.inspector.EnumerateSuspicious(process.Thresholds{SuspicionScore: e.cfg.ProcessSuspicionScore})
	if candidate == nil {
		return
	}
	e.uiSink(fmt.Sprintf("Suspicious process observed: %s (pid %d, score %d)", candidate.Name, candidate.PID, candidate.Score))
}

func (e *Engine) emitScanSummary(eventCount int, report scorer.Report) {
	record := ScanSummaryRecord{
		Timestamp:   time.Now(),
		EventCount:  eventCount,
		ScoreReport: toScoreReport(report),
		IsWave:      report.IsWave,
	}
	e.appendEvent(eventlog.TypeScanSummary, record)
}

// onDetection drives the response pipeline: quarantine, attribution,
// termination, and safeguard. Per the failure-isolation invariant, an
// exception in any one response task must never prevent the others, and
// the detection event must be emitted even if all three fail.
func (e *Engine) onDetection(recent []string, entropies []float64, report scorer.Report) {
	existing := existingRegularFiles(recent)
	if len(existing) == 0 {
		e.uiSink("Detection: No valid files found to quarantine")
		return
	}

	attributed := e.attribute(existing)

	var filesQuarantined []QuarantineEntry
	if e.cfg.AutoQuarantine {
		filesQuarantined = inProgressEntries(existing)
		e.respWG.Add(1)
		go func() {
			defer e.respWG.Done()
			e.runQuarantine(existing)
		}()
	} else {
		e.uiSink("Auto-quarantine is DISABLED; files left in place")
	}

	e.respWG.Add(1)
	go func() {
		defer e.respWG.Done()
		e.runSafeguard(existing)
	}()

	processKilled := e.runTermination()

	detection := DetectionReport{
		Timestamp:        time.Now(),
		SampleEntropies:  entropies,
		ScoreReport:      toScoreReport(report),
		FilesQuarantined: filesQuarantined,
		Attributed:       attributed,
		ProcessKilled:    processKilled,
	}
	e.appendEvent(eventlog.TypeDetection, detection)
}

func (e *Engine) attribute(files []string) []AttributionEntry {
	attributed := make([]AttributionEntry, 0, len(files))
	for _, f := range files {
		entry := AttributionEntry{File: f}
		if holder := safeAttribute(e.inspector, f); holder != nil {
			pid := holder.PID
			name := holder.Name
			entry.PID = &pid
			entry.Name = &name
		}
		attributed = append(attributed, entry)
	}
	return attributed
}

// safeAttribute isolates a panic in process inspection from the rest of
// the detection pipeline.
func safeAttribute(inspector process.Inspector, path string) (holder *process.Holder) {
	defer func() {
		if recover() != nil {
			holder = nil
		}
	}()
	return inspector.Attribute(path)
}

func (e *Engine) runQuarantine(files []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("quarantine task panic", "recovered", r)
		}
	}()

	results := quarantine.Move(files, e.cfg.QuarantineDir)

	entries := make([]QuarantineEntry, len(results))
	successful := 0
	failures := 0
	for i, r := range results {
		entries[i] = QuarantineEntry{Original: r.Original, Destination: r.Destination, Status: string(r.Status)}
		if r.Status.Successful() {
			successful++
		} else {
			failures++
			if failures <= 5 {
				e.uiSink(fmt.Sprintf("Quarantine failed for %s: %s", r.Original, r.Status))
			}
		}
	}

	record := QuarantineRecord{
		Timestamp:  time.Now(),
		Moved:      entries,
		TotalFiles: len(results),
		Successful: successful,
	}

	if err := e.recovery.Append(record); err != nil {
		// Best-effort: recovery log write failure never fails the batch.
		e.logger.Warn("recovery log append failed", "error", err)
	}
	e.mirrorAppend(eventlog.TypeQuarantine, record)

	e.uiSink(fmt.Sprintf("Quarantine complete: %d/%d files moved", successful, len(results)))
}

func (e *Engine) runTermination() *KilledProcess {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("termination task panic", "recovered", r)
		}
	}()

	candidate := e.inspector.EnumerateSuspicious(process.Thresholds{SuspicionScore: e.cfg.ProcessSuspicionScore})
	if candidate == nil {
		return nil
	}

	result := e.inspector.Terminate(*candidate)

	record := ProcessTerminationRecord{Timestamp: time.Now()}
	record.Principal.PID = result.Principal.PID
	record.Principal.Name = result.Principal.Name
	record.Principal.Status = result.Principal.Status
	for _, c := range result.Children {
		record.Children = append(record.Children, struct {
			PID    int    `json:"pid"`
			Name   string `json:"name"`
			Status string `json:"status"`
		}{PID: c.PID, Name: c.Name, Status: c.Status})
	}

	if result.Principal.Status == "skipped_critical" {
		e.uiSink(fmt.Sprintf("Skipped termination of critical process %s (pid %d)", candidate.Name, candidate.PID))
		return nil
	}

	e.appendEvent(eventlog.TypeProcessTermination, record)

	if result.Principal.Status == "terminated_gracefully" || result.Principal.Status == "killed_forcibly" {
		return &KilledProcess{PID: candidate.PID, Name: candidate.Name}
	}
	return nil
}

func (e *Engine) runSafeguard(files []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("safeguard task panic", "recovered", r)
		}
	}()

	dir, results := safeguard.Snapshot(files, e.cfg.LogsDir)

	entries := make([]QuarantineEntry, len(results))
	for i, r := range results {
		entries[i] = QuarantineEntry{Original: r.Original, Destination: r.Destination, Status: r.Status}
	}

	record := SafeguardRecord{Timestamp: time.Now(), Dest: dir, Copied: entries}
	e.appendEvent(eventlog.TypeSafeguard, record)
}

func (e *Engine) appendEvent(typ string, payload any) {
	env := eventlog.NewEnvelope(typ, payload)
	if err := e.events.Append(env); err != nil {
		e.logger.Warn("event log append failed", "type", typ, "error", err)
	}
	e.mirrorAppend(typ, payload)
}

func (e *Engine) mirrorAppend(typ string, payload any) {
	if e.mirror == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("event store mirror panic", "recovered", r)
		}
	}()
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.Warn("event store mirror marshal failed", "error", err)
		return
	}
	if err := e.mirror.InsertEvent(time.Now().Unix(), typ, raw); err != nil {
		// The mirror is never authoritative; log and move on.
		e.logger.Warn("event store mirror insert failed", "error", err)
	}
}

func existingRegularFiles(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		out = append(out, p)
	}
	return out
}

func inProgressEntries(files []string) []QuarantineEntry {
	entries := make([]QuarantineEntry, len(files))
	for i, f := range files {
		entries[i] = QuarantineEntry{Original: f, Status: "in_progress"}
	}
	return entries
}

func toScoreReport(r scorer.Report) ScoreReport {
	details := make([]ScoreDetail, len(r.Details))
	for i, d := range r.Details {
		details[i] = ScoreDetail{Entropy: d.Entropy, Reason: string(d.Reason)}
	}
	return ScoreReport{Score: r.Score, Details: details}
}
