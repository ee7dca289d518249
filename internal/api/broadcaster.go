package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"
)

// streamInterval is the ≤1Hz cadence of the §6 streaming update.
const streamInterval = time.Second

// broadcaster fans out per-book snapshot frames to every websocket client
// subscribed to that book, at ≤1Hz. It replaces the teacher's hand-rolled
// internal/worker.go WorkerPool with an ants.Pool bounded goroutine pool,
// since the number of concurrent websocket clients here is unbounded
// unlike the teacher's fixed-size TCP session pool.
type broadcaster struct {
	mu      sync.Mutex
	clients map[string][]*client // by book_id
	pool    *ants.Pool
	t       tomb.Tomb
}

type client struct {
	conn       *websocket.Conn
	snapshotFn func(string) frame
}

func newBroadcaster() (*broadcaster, error) {
	pool, err := ants.NewPool(64)
	if err != nil {
		return nil, err
	}
	b := &broadcaster{clients: make(map[string][]*client), pool: pool}
	b.t.Go(b.run)
	return b, nil
}

// register subscribes conn to bookID's stream, rendered via snapshot.
func (b *broadcaster) register(bookID string, conn *websocket.Conn, snapshot func(string) frame) {
	c := &client{conn: conn, snapshotFn: snapshot}
	b.mu.Lock()
	b.clients[bookID] = append(b.clients[bookID], c)
	b.mu.Unlock()

	// Push an immediate frame so the client doesn't wait a full tick.
	b.sendOne(bookID, c)

	go func() {
		// A websocket connection from a streaming-only client sends
		// nothing; reading here only serves to detect close/error so
		// the client can be pruned.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.unregister(bookID, c)
				return
			}
		}
	}()
}

func (b *broadcaster) unregister(bookID string, target *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	peers := b.clients[bookID]
	for i, c := range peers {
		if c == target {
			b.clients[bookID] = append(peers[:i], peers[i+1:]...)
			break
		}
	}
	_ = target.conn.Close()
}

// touch is a no-op hook kept for callers (order submission) that want to
// nudge an immediate broadcast instead of waiting for the next tick; the
// ≤1Hz ticker already satisfies the spec, so this only logs at debug
// level for observability.
func (b *broadcaster) touch(bookID string) {
	log.Debug().Str("book_id", bookID).Msg("order submitted, next stream tick will reflect it")
}

func (b *broadcaster) run() error {
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.t.Dying():
			return nil
		case <-ticker.C:
			b.broadcastAll()
		}
	}
}

func (b *broadcaster) broadcastAll() {
	b.mu.Lock()
	bookIDs := make([]string, 0, len(b.clients))
	for id := range b.clients {
		bookIDs = append(bookIDs, id)
	}
	b.mu.Unlock()

	for _, bookID := range bookIDs {
		bookID := bookID
		if err := b.pool.Submit(func() { b.broadcastBook(bookID) }); err != nil {
			log.Error().Err(err).Str("book_id", bookID).Msg("broadcaster pool submit failed")
		}
	}
}

func (b *broadcaster) broadcastBook(bookID string) {
	b.mu.Lock()
	peers := append([]*client(nil), b.clients[bookID]...)
	b.mu.Unlock()

	for _, c := range peers {
		b.sendOne(bookID, c)
	}
}

func (b *broadcaster) sendOne(bookID string, c *client) {
	fr := c.snapshotFn(bookID)
	if err := c.conn.WriteJSON(fr); err != nil {
		log.Warn().Err(err).Str("book_id", bookID).Msg("stream write failed, dropping client")
		b.unregister(bookID, c)
	}
}

// Close stops the broadcaster's tick goroutine and releases the pool.
func (b *broadcaster) Close() {
	b.t.Kill(nil)
	_ = b.t.Wait()
	b.pool.Release()
}
