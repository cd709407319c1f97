package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tkarev/bracedl/internal/expand"
	"github.com/tkarev/bracedl/internal/utils"
)

// Orchestrator expands a wildcard template and runs one transfer unit per
// target, all launched at once with real parallelism bounded only by the
// concurrency gate. Cancellation is advisory: units observe it at chunk
// boundaries, so latency is bounded by one chunk's transfer time.
type Orchestrator struct {
	spec   DownloadSpec
	client utils.HTTPDoer
	cancel atomic.Bool
}

func NewOrchestrator(spec DownloadSpec) *Orchestrator {
	if spec.ChunkSize <= 0 {
		spec.ChunkSize = utils.DefaultChunkSize
	}
	if spec.MaxConcurrent <= 0 {
		spec.MaxConcurrent = 1
	}
	client := utils.NewHTTPClient(utils.HTTPClientConfig{
		Timeout:        spec.Timeout,
		ConnectTimeout: spec.ConnectTimeout,
		UserAgent:      spec.UserAgent,
		Headers:        spec.Headers,
	})
	return &Orchestrator{spec: spec, client: client}
}

// NewOrchestratorWithClient injects a custom HTTP doer, mainly for tests.
func NewOrchestratorWithClient(spec DownloadSpec, client utils.HTTPDoer) *Orchestrator {
	o := NewOrchestrator(spec)
	o.client = client
	return o
}

// Cancel requests a cooperative stop. In-flight network calls are not killed;
// each unit exits at its next chunk boundary, keeping partial files intact.
func (o *Orchestrator) Cancel() {
	o.cancel.Store(true)
}

func (o *Orchestrator) Cancelled() bool {
	return o.cancel.Load()
}

// Run returns only after every unit reached a terminal state. Template
// errors (ErrInvalidTemplate, ErrInvalidRange) fail fast before any I/O;
// per-file failures never escape, they are aggregated into the summary.
func (o *Orchestrator) Run(events Events) (*Summary, error) {
	log := utils.GetLogger("orchestrator")
	targets, err := expand.Expand(o.spec.URLTemplate)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(o.spec.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	log.Info().Int("totalFiles", len(targets)).Int("maxConcurrent", o.spec.MaxConcurrent).Msg("Initiating download")

	gate := NewConcurrencyGate(o.spec.MaxConcurrent)

	type unitResult struct {
		outcome outcome
		message string
		bytes   int64
	}
	// One slot per target keeps aggregation race-free and preserves template
	// order for the failure report.
	results := make([]unitResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target expand.Target) {
			defer wg.Done()
			unit := newTransferUnit(
				uuid.NewString(),
				target,
				filepath.Join(o.spec.OutputDir, target.Filename),
				&o.spec,
				o.client,
				gate,
				events,
				o.Cancelled,
			)
			out, msg := unit.run()
			results[i] = unitResult{outcome: out, message: msg, bytes: unit.fetched}
		}(i, target)
	}
	wg.Wait()

	summary := &Summary{}
	for i, res := range results {
		summary.Bytes += res.bytes
		switch res.outcome {
		case outcomeCompleted:
			summary.Completed++
		case outcomeCancelled:
			summary.Cancelled++
		case outcomeFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{
				Filename: targets[i].Filename,
				Message:  res.message,
			})
		}
	}
	log.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("cancelled", summary.Cancelled).
		Msg("Run finished")
	return summary, nil
}
