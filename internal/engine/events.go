package engine

// Events are the observer hooks for a run. Any field may be nil. Callbacks
// are invoked from transfer goroutines, so observers that keep state must
// synchronize it themselves.
//
// Guarantees per file: OnStart fires once before any progress, OnProgress
// is monotonic in bytesDownloaded, and OnComplete fires exactly once. The
// total passed to OnProgress falls back to bytesDownloaded when the real
// size is unknown, so it is never zero as a denominator hint.
type Events struct {
	OnStart    func(filename string)
	OnProgress func(filename string, bytesDownloaded, bytesTotal int64)
	OnComplete func(filename string, success bool, message string)
}

func (e Events) emitStart(filename string) {
	if e.OnStart != nil {
		e.OnStart(filename)
	}
}

func (e Events) emitProgress(filename string, downloaded, total int64) {
	if e.OnProgress != nil {
		e.OnProgress(filename, downloaded, total)
	}
}

func (e Events) emitComplete(filename string, success bool, message string) {
	if e.OnComplete != nil {
		e.OnComplete(filename, success, message)
	}
}
