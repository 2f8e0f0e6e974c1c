// Package handlers holds the admin HTTP surface's non-trivial route
// handlers, grounded on the teacher's pkg/server/handlers package layout.
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// CommitEvent is one entry in the commit feed, published after every
// successful (or failed) container-wide commit and every rollback; each
// new client first receives a "connected" event.
type CommitEvent struct {
	Type        string    `json:"type"` // "connected", "commit", "rollback", "error"
	TxID        uint64    `json:"txId,omitempty"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// CommitFeedManager fans out CommitEvents to every connected websocket
// client, grounded on the teacher's handlers.ChangeStreamManager.
type CommitFeedManager struct {
	mu    sync.RWMutex
	conns map[string]*feedConnection
}

type feedConnection struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewCommitFeedManager creates an empty manager.
func NewCommitFeedManager() *CommitFeedManager {
	return &CommitFeedManager{conns: make(map[string]*feedConnection)}
}

// Close closes every active connection.
func (m *CommitFeedManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		c.conn.Close()
	}
	m.conns = make(map[string]*feedConnection)
}

func (m *CommitFeedManager) add(c *feedConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.id] = c
}

func (m *CommitFeedManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, id)
}

// Publish broadcasts ev to every connected client, dropping connections
// that error on write.
func (m *CommitFeedManager) Publish(ev CommitEvent) {
	m.mu.RLock()
	conns := make([]*feedConnection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.mu.Lock()
		err := c.conn.WriteJSON(ev)
		c.mu.Unlock()
		if err != nil {
			log.Printf("jacis: commit feed write failed, dropping connection %s: %v", c.id, err)
			m.remove(c.id)
			c.conn.Close()
		}
	}
}

// HandleCommitFeed upgrades an HTTP connection and registers it for the
// commit feed until the client disconnects.
func (m *CommitFeedManager) HandleCommitFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("jacis: websocket upgrade failed: %v", err)
		return
	}
	id := fmt.Sprintf("feed-%d", time.Now().UnixNano())
	fc := &feedConnection{id: id, conn: conn}
	m.add(fc)
	defer func() {
		m.remove(id)
		conn.Close()
	}()

	if err := conn.WriteJSON(CommitEvent{Type: "connected", Timestamp: time.Now()}); err != nil {
		return
	}

	// Drain control frames from the client (close, ping) until it hangs up;
	// the feed itself is one-directional server -> client.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// CommitFeedListener is a jacis.TransactionListener that publishes every
// container-wide commit and rollback to a CommitFeedManager.
type CommitFeedListener struct {
	manager *CommitFeedManager
}

// NewCommitFeedListener creates a listener publishing into manager.
func NewCommitFeedListener(manager *CommitFeedManager) *CommitFeedListener {
	return &CommitFeedListener{manager: manager}
}

func (l *CommitFeedListener) BeforePrepare(tx *jacis.TxHandle) error { return nil }
func (l *CommitFeedListener) AfterPrepare(tx *jacis.TxHandle, err error) {}
func (l *CommitFeedListener) BeforeCommit(tx *jacis.TxHandle) error  { return nil }

func (l *CommitFeedListener) AfterCommit(tx *jacis.TxHandle, err error) {
	ev := CommitEvent{TxID: tx.ID, Description: tx.Description, Timestamp: time.Now()}
	if err != nil {
		ev.Type = "error"
		ev.Error = err.Error()
	} else {
		ev.Type = "commit"
	}
	l.manager.Publish(ev)
}

func (l *CommitFeedListener) BeforeRollback(tx *jacis.TxHandle) {}

func (l *CommitFeedListener) AfterRollback(tx *jacis.TxHandle) {
	l.manager.Publish(CommitEvent{
		Type:        "rollback",
		TxID:        tx.ID,
		Description: tx.Description,
		Timestamp:   time.Now(),
	})
}

// IsSynchronous reports that this listener runs inline; publishing is
// cheap (a map read plus a handful of non-blocking writes) so there is no
// reason to defer it to a goroutine.
func (l *CommitFeedListener) IsSynchronous() bool { return true }
