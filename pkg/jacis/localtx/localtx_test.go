package localtx

import (
	"context"
	"errors"
	"testing"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

type balance struct {
	Owner  string
	Amount int
}

func (b *balance) Clone() *balance {
	cp := *b
	return &cp
}

func newBalanceContainer(t *testing.T) (*jacis.Container, *jacis.Store[string, *balance, *balance]) {
	t.Helper()
	c := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *balance, *balance]("balances", jacis.NewCloneableAdapter[*balance]())
	s := jacis.CreateStore(c, spec)
	return c, s
}

func TestWithLocalTxCommitsOnSuccess(t *testing.T) {
	c, s := newBalanceContainer(t)

	err := WithLocalTx(context.Background(), c, "deposit", func(ctx context.Context) error {
		return s.Update(ctx, "alice", &balance{Owner: "alice", Amount: 100})
	})
	if err != nil {
		t.Fatalf("with local tx: %v", err)
	}

	ctx := jacis.ContextWithTx(context.Background(), c.BeginLocalTransaction("read"))
	v, ok := s.GetReadOnly(ctx, "alice")
	if !ok || v.Amount != 100 {
		t.Fatalf("expected alice amount 100, got %+v ok=%v", v, ok)
	}
}

var errBoom = errors.New("boom")

func TestWithLocalTxRollsBackOnTaskError(t *testing.T) {
	c, s := newBalanceContainer(t)

	err := WithLocalTx(context.Background(), c, "failing deposit", func(ctx context.Context) error {
		_ = s.Update(ctx, "bob", &balance{Owner: "bob", Amount: 50})
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}

	ctx := jacis.ContextWithTx(context.Background(), c.BeginLocalTransaction("read"))
	if _, ok := s.GetReadOnly(ctx, "bob"); ok {
		t.Fatalf("expected bob to not exist after rollback")
	}
}

func TestWithLocalTxAndRetryRetriesOnStale(t *testing.T) {
	c, s := newBalanceContainer(t)

	err := WithLocalTx(context.Background(), c, "seed", func(ctx context.Context) error {
		return s.Update(ctx, "carol", &balance{Owner: "carol", Amount: 10})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	attempts := 0
	// Simulate contention: the first attempt's transaction reads a stale
	// version by racing an out-of-band commit between its Get and Update.
	racer := func() {
		_ = WithLocalTx(context.Background(), c, "racer", func(ctx context.Context) error {
			v, err := s.Get(ctx, "carol")
			if err != nil {
				return err
			}
			v.Amount++
			return s.Update(ctx, "carol", v)
		})
	}

	err = WithLocalTxAndRetry(context.Background(), c, "contended update", 5, func(ctx context.Context) error {
		attempts++
		v, err := s.Get(ctx, "carol")
		if err != nil {
			return err
		}
		if attempts == 1 {
			// force this attempt's view stale before it updates
			racer()
		}
		v.Amount += 5
		return s.Update(ctx, "carol", v)
	})
	if err != nil {
		t.Fatalf("with local tx and retry: %v", err)
	}
	if attempts < 2 {
		t.Fatalf("expected at least one retry, got %d attempts", attempts)
	}
}

func TestWithLocalTxAndPolicyRespectsShouldRetry(t *testing.T) {
	c, _ := newBalanceContainer(t)

	attempts := 0
	policy := RetryPolicy{
		MaxAttempts: 3,
		ShouldRetry: func(err error) bool { return errors.Is(err, errBoom) },
	}
	err := WithLocalTxAndPolicy(context.Background(), c, "always fails", policy, func(ctx context.Context) error {
		attempts++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly MaxAttempts=3 tries, got %d", attempts)
	}
}
