package gateway

import "sync"

// defaultHandleHistory bounds how many settled handles stay queryable by hash.
const defaultHandleHistory = 256

// tracker holds the donations awaiting confirmation, keyed by transaction
// hash, and a bounded history of settled ones.
type tracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	handles  map[string]TransactionHandle
	settled  []string
	history  int
}

func newTracker(history int) *tracker {
	if history <= 0 {
		history = defaultHandleHistory
	}
	return &tracker{
		inFlight: make(map[string]struct{}),
		handles:  make(map[string]TransactionHandle),
		history:  history,
	}
}

func (t *tracker) submitted(h TransactionHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight[h.Hash] = struct{}{}
	t.handles[h.Hash] = h
}

// settle records the final handle. It reports false when the hash was not in
// flight, so each donation is cleared at most once.
func (t *tracker) settle(h TransactionHandle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.inFlight[h.Hash]; !ok {
		return false
	}
	delete(t.inFlight, h.Hash)
	t.handles[h.Hash] = h
	t.settled = append(t.settled, h.Hash)
	if len(t.settled) > t.history {
		oldest := t.settled[0]
		t.settled = t.settled[1:]
		delete(t.handles, oldest)
	}
	return true
}

func (t *tracker) get(hash string) (TransactionHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[hash]
	return h, ok
}

func (t *tracker) inProgress() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight) > 0
}

func (t *tracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}
