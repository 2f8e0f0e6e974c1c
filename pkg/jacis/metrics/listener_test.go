package metrics

import (
	"context"
	"testing"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

type widget struct {
	ID   string
	Qty  int
}

func (w *widget) Clone() *widget {
	cp := *w
	return &cp
}

func TestListenerRecordsCommitAndRollback(t *testing.T) {
	c := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *widget, *widget]("widgets", jacis.NewCloneableAdapter[*widget]())
	s := jacis.CreateStore(c, spec)

	collector := NewCollector()
	c.RegisterTransactionListener(NewListener(collector))

	tx := c.BeginLocalTransaction("seed")
	ctx := jacis.ContextWithTx(context.Background(), tx)
	if err := s.Update(ctx, "w1", &widget{ID: "w1", Qty: 5}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2 := c.BeginLocalTransaction("abandoned")
	ctx2 := jacis.ContextWithTx(context.Background(), tx2)
	_ = s.Update(ctx2, "w2", &widget{ID: "w2", Qty: 1})
	c.Rollback(tx2)

	snap := collector.Snapshot()
	if snap.CommitTotal != 1 {
		t.Fatalf("expected 1 commit, got %d", snap.CommitTotal)
	}
	if snap.RollbackTotal != 1 {
		t.Fatalf("expected 1 rollback, got %d", snap.RollbackTotal)
	}
	if snap.PrepareTotal != 1 {
		t.Fatalf("expected 1 prepare (rollback never prepares), got %d", snap.PrepareTotal)
	}
}
