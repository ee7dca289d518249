package engine

import "sync"

// matchLogs is the per-book, single-writer append-only match log of spec
// §5 ("match logs are single-writer per book").
type matchLogs struct {
	mu   sync.Mutex
	logs map[string][]*Match
}

func newMatchLogs() *matchLogs {
	return &matchLogs{logs: make(map[string][]*Match)}
}

func (m *matchLogs) append(bookID string, match *Match) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[bookID] = append(m.logs[bookID], match)
}

func (m *matchLogs) get(bookID string) []*Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.logs[bookID]
	out := make([]*Match, len(src))
	copy(out, src)
	return out
}

func (m *matchLogs) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = make(map[string][]*Match)
}
