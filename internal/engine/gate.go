package engine

// ConcurrencyGate bounds how many transfers may be in active network I/O at
// once. Probing and deciding stay cheap and ungated; a permit is held only
// for the duration of one fetch attempt.
type ConcurrencyGate struct {
	permits chan struct{}
}

func NewConcurrencyGate(maxConcurrent int) *ConcurrencyGate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &ConcurrencyGate{permits: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a permit is available.
func (g *ConcurrencyGate) Acquire() {
	g.permits <- struct{}{}
}

// Release returns a permit, unblocking one waiter if any are queued.
func (g *ConcurrencyGate) Release() {
	<-g.permits
}

// InUse reports how many permits are currently held.
func (g *ConcurrencyGate) InUse() int {
	return len(g.permits)
}
