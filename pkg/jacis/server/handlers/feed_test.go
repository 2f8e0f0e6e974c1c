package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

type note struct {
	ID   string
	Text string
}

func (n *note) Clone() *note {
	cp := *n
	return &cp
}

func TestCommitFeedPublishesOnCommit(t *testing.T) {
	manager := NewCommitFeedManager()
	defer manager.Close()

	ts := httptest.NewServer(http.HandlerFunc(manager.HandleCommitFeed))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Drain the initial "connected" event.
	var connected CommitEvent
	if err := conn.ReadJSON(&connected); err != nil {
		t.Fatalf("read connected event: %v", err)
	}
	if connected.Type != "connected" {
		t.Fatalf("expected connected event first, got %+v", connected)
	}

	c := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *note, *note]("notes", jacis.NewCloneableAdapter[*note]())
	s := jacis.CreateStore(c, spec)
	c.RegisterTransactionListener(NewCommitFeedListener(manager))

	tx := c.BeginLocalTransaction("write a note")
	ctx := jacis.ContextWithTx(context.Background(), tx)
	if err := s.Update(ctx, "n1", &note{ID: "n1", Text: "hi"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev CommitEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read commit event: %v", err)
	}
	if ev.Type != "commit" || ev.Description != "write a note" {
		t.Fatalf("unexpected commit event: %+v", ev)
	}
}
