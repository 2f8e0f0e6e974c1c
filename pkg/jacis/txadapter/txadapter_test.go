package txadapter

import (
	"context"
	"testing"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

func TestLocalAdapterBindAndDestroy(t *testing.T) {
	l := NewLocal()
	c := jacis.NewContainer(l)

	if _, err := l.GetCurrentTransaction(true); err != jacis.ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction before binding, got %v", err)
	}

	tx := jacis.NewTxHandle("adapter test", nil)
	if err := l.JoinCurrentTransaction(tx, c); err != nil {
		t.Fatalf("join: %v", err)
	}

	got, err := c.CurrentTransaction(context.Background(), true)
	if err != nil {
		t.Fatalf("current transaction: %v", err)
	}
	if !got.Equal(tx) {
		t.Fatalf("expected bound tx back, got %v", got)
	}

	l.DestroyCurrentTransaction()
	if _, err := l.GetCurrentTransaction(true); err != jacis.ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction after destroy, got %v", err)
	}
}

func TestExternalAdapterPolls(t *testing.T) {
	tx := jacis.NewTxHandle("external test", "ambient-ref")
	active := true
	e := NewExternal(func() (*jacis.TxHandle, bool) {
		if !active {
			return nil, false
		}
		return tx, true
	})

	got, err := e.GetCurrentTransaction(true)
	if err != nil {
		t.Fatalf("get current: %v", err)
	}
	if !got.Equal(tx) {
		t.Fatalf("expected polled tx, got %v", got)
	}

	active = false
	if _, err := e.GetCurrentTransaction(true); err != jacis.ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction once poll reports none active, got %v", err)
	}
}
