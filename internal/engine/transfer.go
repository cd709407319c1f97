package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkarev/bracedl/internal/expand"
	"github.com/tkarev/bracedl/internal/utils"
)

// errCancelled marks a cooperative abort observed at a chunk boundary. It is
// a terminal outcome, not a transfer failure: the partial file and sidecar
// stay in place so a later run can resume.
var errCancelled = errors.New("transfer cancelled")

const maxFailureMessageLen = 160

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeFailed
	outcomeCancelled
)

// transferUnit drives one file through
// probing -> deciding -> fetching -> persisting -> terminal.
// It owns its local file and mutable state exclusively; nothing is shared
// across units except the gate and the cancel flag.
type transferUnit struct {
	id        string
	target    expand.Target
	localPath string
	spec      *DownloadSpec
	client    utils.HTTPDoer
	gate      *ConcurrencyGate
	events    Events
	cancelled func() bool
	log       zerolog.Logger

	phase      Phase
	downloaded int64 // high-watermark of bytes on disk, never decreases
	fetched    int64 // bytes written by this run, excludes resumed bytes
	expected   int64 // unknownSize until the probe succeeds
}

func newTransferUnit(id string, target expand.Target, localPath string, spec *DownloadSpec, client utils.HTTPDoer, gate *ConcurrencyGate, events Events, cancelled func() bool) *transferUnit {
	return &transferUnit{
		id:        id,
		target:    target,
		localPath: localPath,
		spec:      spec,
		client:    client,
		gate:      gate,
		events:    events,
		cancelled: cancelled,
		log:       utils.GetLogger("transfer").With().Str("transferID", id).Str("file", target.Filename).Logger(),
		expected:  unknownSize,
	}
}

// run executes the full state machine and returns the terminal outcome plus
// a human-readable message. It never panics outward on transfer errors; only
// programming errors escape.
func (t *transferUnit) run() (outcome, string) {
	t.setPhase(PhaseProbing)
	probe := probeTarget(t.client, t.target.URL)
	t.expected = probe.size
	t.log.Debug().Int64("size", probe.size).Bool("acceptsRanges", probe.acceptsRanges).Msg("Probe finished")

	t.setPhase(PhaseDeciding)
	localSize, localExists := statSize(t.localPath)
	if localExists && t.expected > 0 && localSize == t.expected {
		t.log.Info().Int64("size", localSize).Msg("Local file already complete, skipping")
		t.events.emitStart(t.target.Filename)
		t.events.emitComplete(t.target.Filename, true, "already downloaded")
		t.setPhase(PhaseCompleted)
		return outcomeCompleted, "already downloaded"
	}

	offset := int64(0)
	if localExists && t.spec.ResumeEnabled && probe.acceptsRanges && localSize < t.expected {
		if t.partialTrustworthy() {
			offset = localSize
			t.log.Info().Int64("offset", offset).Int64("total", t.expected).Msg("Resuming partial download")
		} else {
			t.log.Warn().Msg("Partial file does not match sidecar metadata, restarting from scratch")
		}
	}

	if err := writeSidecar(t.localPath, SidecarMetadata{ExpectedTotalSize: t.expected, URL: t.target.URL}); err != nil {
		t.log.Warn().Err(err).Msg("Failed to write sidecar metadata, resume validation unavailable")
	}

	t.events.emitStart(t.target.Filename)

	maxAttempts := 1
	delay := time.Duration(0)
	if t.spec.Retry.Enabled && t.spec.Retry.MaxAttempts > 1 {
		maxAttempts = t.spec.Retry.MaxAttempts
		delay = t.spec.Retry.Delay
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			t.log.Warn().Err(lastErr).Int("attempt", attempt).Int("maxAttempts", maxAttempts).Msg("Retrying download")
			time.Sleep(delay)
			// Never trust in-memory counters across attempts: the offset is
			// re-stated from disk so a retried connection cannot double-write
			// bytes that already reached the file. Completed chunks from the
			// failed attempt are kept even without range support.
			offset = 0
			if size, ok := statSize(t.localPath); ok {
				offset = size
			}
		}
		if t.cancelled() {
			return t.finishCancelled()
		}
		err := t.fetchAttempt(offset, probe.acceptsRanges)
		if err == nil {
			if err := removeSidecar(t.localPath); err != nil {
				t.log.Debug().Err(err).Msg("Could not remove sidecar metadata")
			}
			t.setPhase(PhaseCompleted)
			t.log.Info().Int64("bytes", t.downloaded).Msg("Download completed")
			t.events.emitComplete(t.target.Filename, true, "downloaded")
			return outcomeCompleted, "downloaded"
		}
		if errors.Is(err, errCancelled) {
			return t.finishCancelled()
		}
		lastErr = err
	}

	// Stale probe data must not be trusted by a future run once all attempts
	// are spent, so the sidecar goes away with the failure.
	if err := removeSidecar(t.localPath); err != nil {
		t.log.Debug().Err(err).Msg("Could not remove sidecar metadata")
	}
	t.setPhase(PhaseFailed)
	msg := truncateMessage(lastErr.Error())
	t.log.Error().Err(lastErr).Int("attempts", maxAttempts).Msg("Download failed, attempts exhausted")
	t.events.emitComplete(t.target.Filename, false, msg)
	return outcomeFailed, msg
}

// partialTrustworthy checks an existing partial file against its sidecar from
// a previous run. A missing sidecar is accepted (cancellation keeps it, but
// crashes may not); a sidecar recorded for a different URL or total size means
// the partial bytes belong to something else and must not be appended to.
func (t *transferUnit) partialTrustworthy() bool {
	meta, err := readSidecar(t.localPath)
	if err != nil {
		return os.IsNotExist(err)
	}
	return meta.URL == t.target.URL && meta.ExpectedTotalSize == t.expected
}

func (t *transferUnit) setPhase(phase Phase) {
	t.phase = phase
	t.log.Debug().Str("phase", phase.String()).Msg("Phase transition")
}

func (t *transferUnit) finishCancelled() (outcome, string) {
	t.setPhase(PhaseCancelled)
	t.log.Info().Int64("bytes", t.downloaded).Msg("Download cancelled, partial file kept")
	t.events.emitComplete(t.target.Filename, false, "cancelled")
	return outcomeCancelled, "cancelled"
}

// fetchAttempt performs one gated request-and-stream pass. The gate permit is
// held only inside this function and released on every exit path. An offset
// of zero truncates and writes fresh. A positive offset always appends: via a
// ranged request that must be answered with 206 when the server supports
// ranges, otherwise via a full fetch that discards the bytes the file already
// holds. Either way the progress counter never moves backwards.
func (t *transferUnit) fetchAttempt(offset int64, ranged bool) error {
	t.setPhase(PhaseFetching)
	t.gate.Acquire()
	defer t.gate.Release()
	if t.cancelled() {
		return errCancelled
	}

	fileMode := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		fileMode |= os.O_APPEND
	} else {
		fileMode |= os.O_TRUNC
	}
	outFile, err := os.OpenFile(t.localPath, fileMode, 0644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	defer outFile.Close()

	req, err := http.NewRequest(http.MethodGet, t.target.URL, nil)
	if err != nil {
		return fmt.Errorf("creating GET request: %w", err)
	}
	if offset > 0 && ranged {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing GET request: %w", err)
	}
	defer resp.Body.Close()

	// The response must match the requested mode; a server answering a range
	// request with a full body would silently corrupt the appended file.
	if offset > 0 && ranged {
		if resp.StatusCode != http.StatusPartialContent {
			return fmt.Errorf("expected partial content for ranged request, got status %d", resp.StatusCode)
		}
	} else if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if offset > 0 && !ranged {
		// No range support: re-fetch from the start but drop the bytes the
		// file already holds, so completed chunks are never rewritten.
		if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
			return fmt.Errorf("skipping already-written bytes: %w", err)
		}
	}

	t.downloaded = offset
	buffer := make([]byte, t.spec.ChunkSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if t.cancelled() {
				return errCancelled
			}
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return fmt.Errorf("writing to output file: %w", writeErr)
			}
			t.downloaded += int64(bytesRead)
			t.fetched += int64(bytesRead)
			t.events.emitProgress(t.target.Filename, t.downloaded, t.totalHint())
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("reading response body: %w", readErr)
		}
	}

	t.setPhase(PhasePersisting)
	if err := outFile.Sync(); err != nil {
		return fmt.Errorf("syncing output file: %w", err)
	}
	return nil
}

// totalHint is the denominator offered to observers: the probed size when
// known, otherwise the bytes seen so far so ratios never divide by zero.
func (t *transferUnit) totalHint() int64 {
	if t.expected > 0 {
		return t.expected
	}
	return t.downloaded
}

func statSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

func truncateMessage(msg string) string {
	if len(msg) > maxFailureMessageLen {
		return msg[:maxFailureMessageLen-3] + "..."
	}
	return msg
}
