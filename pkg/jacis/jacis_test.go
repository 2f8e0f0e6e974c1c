package jacis

import (
	"context"
	"testing"
)

type account struct {
	ID       string
	Balance  int
	readOnly bool
}

func (a *account) Clone() *account {
	cp := *a
	return &cp
}

func (a *account) SwitchToReadOnlyMode() *account {
	cp := *a
	cp.readOnly = true
	return &cp
}

func newAccountContainer(t *testing.T) (*Container, *Store[string, *account, *account]) {
	t.Helper()
	c := NewContainer(nil)
	spec := DefaultObjectTypeSpec[string, *account, *account]("accounts", NewCloneableAdapter[*account]())
	s := CreateStore(c, spec)
	return c, s
}

func txCtx(c *Container, description string) (context.Context, *TxHandle) {
	tx := c.BeginLocalTransaction(description)
	return ContextWithTx(context.Background(), tx), tx
}

// Scenario A: basic commit and read (spec.md §8).
func TestBasicCommitAndRead(t *testing.T) {
	c, s := newAccountContainer(t)

	ctx, tx := txCtx(c, "open")
	if err := s.Update(ctx, "alice", &account{ID: "alice", Balance: 100}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	ctx2, tx2 := txCtx(c, "read")
	v, ok := s.GetReadOnly(ctx2, "alice")
	if !ok || v.Balance != 100 {
		t.Fatalf("expected alice balance 100, got %+v ok=%v", v, ok)
	}
	c.Rollback(tx2)
}

// Scenario B: stale object detection.
func TestStaleObjectDetection(t *testing.T) {
	c, s := newAccountContainer(t)

	ctx0, tx0 := txCtx(c, "seed")
	_ = s.Update(ctx0, "bob", &account{ID: "bob", Balance: 10})
	if err := c.Commit(tx0); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	ctxA, txA := txCtx(c, "A")
	if _, err := s.Get(ctxA, "bob"); err != nil {
		t.Fatalf("A get: %v", err)
	}
	ctxB, txB := txCtx(c, "B")
	vB, err := s.Get(ctxB, "bob")
	if err != nil {
		t.Fatalf("B get: %v", err)
	}
	vB.Balance = 20
	if err := s.Update(ctxB, "bob", vB); err != nil {
		t.Fatalf("B update: %v", err)
	}
	if err := c.Commit(txB); err != nil {
		t.Fatalf("B commit: %v", err)
	}

	vA, _ := s.Get(ctxA, "bob")
	vA.Balance = 30
	if err := s.Update(ctxA, "bob", vA); err != nil {
		t.Fatalf("A update: %v", err)
	}
	err = c.Commit(txA)
	if err == nil {
		t.Fatal("expected stale object error, got nil")
	}
	if _, ok := err.(*StaleObjectError); !ok {
		t.Fatalf("expected *StaleObjectError, got %T: %v", err, err)
	}
}

// Scenario C: retry-on-stale succeeds once the conflicting transaction is
// out of the way.
func TestRetryOnStale(t *testing.T) {
	c, s := newAccountContainer(t)
	ctx0, tx0 := txCtx(c, "seed")
	_ = s.Update(ctx0, "carol", &account{ID: "carol", Balance: 0})
	_ = c.Commit(tx0)

	attempts := 0
	for {
		attempts++
		ctx, tx := txCtx(c, "increment")
		v, err := s.Get(ctx, "carol")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if attempts == 1 {
			// simulate a concurrent winner between read and commit
			ctxWin, txWin := txCtx(c, "winner")
			vw, _ := s.Get(ctxWin, "carol")
			vw.Balance++
			_ = s.Update(ctxWin, "carol", vw)
			_ = c.Commit(txWin)
		}
		v.Balance++
		_ = s.Update(ctx, "carol", v)
		err = c.Commit(tx)
		if err == nil {
			break
		}
		if _, ok := err.(*StaleObjectError); !ok {
			t.Fatalf("expected stale object, got %v", err)
		}
		if attempts >= 5 {
			t.Fatal("too many retries")
		}
	}
	if attempts != 2 {
		t.Fatalf("expected exactly one retry (2 attempts), got %d", attempts)
	}
}

// Scenario E: rollback discards staged changes; after rolling back an
// update of "dan" and a removal of the absent "erin", dan's committed
// balance is unchanged.
func TestRollbackDiscardsChanges(t *testing.T) {
	c, s := newAccountContainer(t)
	ctx0, tx0 := txCtx(c, "seed")
	_ = s.Update(ctx0, "dan", &account{ID: "dan", Balance: 5})
	_ = c.Commit(tx0)

	ctx, tx := txCtx(c, "doomed")
	_ = s.Update(ctx, "dan", &account{ID: "dan", Balance: 999})
	_ = s.Remove(ctx, "erin")
	c.Rollback(tx)

	ctx2, tx2 := txCtx(c, "verify")
	v, ok := s.GetReadOnly(ctx2, "dan")
	if !ok || v.Balance != 5 {
		t.Fatalf("rollback leaked a change: %+v ok=%v", v, ok)
	}
	c.Rollback(tx2)
}

// Scenario F: Refresh discards a staged change for just that key.
func TestRefreshDiscardsStagedChange(t *testing.T) {
	c, s := newAccountContainer(t)
	ctx0, tx0 := txCtx(c, "seed")
	_ = s.Update(ctx0, "finn", &account{ID: "finn", Balance: 1})
	_ = c.Commit(tx0)

	ctx, tx := txCtx(c, "edit")
	v, _ := s.Get(ctx, "finn")
	v.Balance = 1000
	_ = s.Update(ctx, "finn", v)
	if err := s.Refresh(ctx, "finn"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	v2, err := s.Get(ctx, "finn")
	if err != nil {
		t.Fatalf("get after refresh: %v", err)
	}
	if v2.Balance != 1 {
		t.Fatalf("expected refresh to discard staged change, got balance=%d", v2.Balance)
	}
	c.Rollback(tx)
}

// Scenario D-equivalent: a modification listener vetoes a prepare,
// standing in for pkg/jacis/index's unique-index violation path.
func TestModificationVeto(t *testing.T) {
	c := NewContainer(nil)
	spec := DefaultObjectTypeSpec[string, *account, *account]("vetoed", NewCloneableAdapter[*account]())
	s := CreateStore(c, spec)

	veto := modListenerFunc{
		prepare: func(key string, change Change[*account], tx *TxHandle) error {
			if change.New.Balance < 0 {
				return errNegativeBalance
			}
			return nil
		},
	}
	if err := s.RegisterModificationListener(veto); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx, tx := txCtx(c, "overdraw")
	_ = s.Update(ctx, "gail", &account{ID: "gail", Balance: -5})
	err := c.Commit(tx)
	if err == nil {
		t.Fatal("expected veto error")
	}
	if _, ok := err.(*ModificationVetoError); !ok {
		t.Fatalf("expected *ModificationVetoError, got %T: %v", err, err)
	}
}

type modListenerFunc struct {
	prepare func(key string, change Change[*account], tx *TxHandle) error
}

func (f modListenerFunc) OnPrepareModification(key string, change Change[*account], tx *TxHandle) error {
	if f.prepare != nil {
		return f.prepare(key, change, tx)
	}
	return nil
}
func (f modListenerFunc) OnModification(key string, change Change[*account], tx *TxHandle) error {
	return nil
}
func (f modListenerFunc) IsThreadSafe() bool { return true }

var errNegativeBalance = &simpleErr{"balance must not go negative"}

type simpleErr struct{ msg string }

func (e *simpleErr) Error() string { return e.msg }

func TestStatsAndSize(t *testing.T) {
	c, s := newAccountContainer(t)
	ctx, tx := txCtx(c, "load")
	_ = s.Update(ctx, "a", &account{ID: "a", Balance: 1})
	_ = s.Update(ctx, "b", &account{ID: "b", Balance: 2})
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := s.Size(); got != 2 {
		t.Fatalf("expected size 2, got %d", got)
	}
	stats := s.Stats()
	if stats.CommittedEntries != 2 {
		t.Fatalf("expected 2 committed entries, got %d", stats.CommittedEntries)
	}
}
