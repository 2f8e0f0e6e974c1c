package index

import (
	"context"
	"testing"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

type user struct {
	ID    string
	Email string
	Tags  []string
}

func (u *user) Clone() *user {
	cp := *u
	cp.Tags = append([]string(nil), u.Tags...)
	return &cp
}

func newUserStore(name string) (*jacis.Container, *jacis.Store[string, *user, *user]) {
	c := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *user, *user](name, jacis.NewCloneableAdapter[*user]())
	s := jacis.CreateStore(c, spec)
	return c, s
}

func emailKey(u *user) (any, bool) { return u.Email, true }

func TestUniqueIndexViolation(t *testing.T) {
	c, s := newUserStore("users")
	idx, err := NewUnique[string, *user](s, "by-email", emailKey)
	if err != nil {
		t.Fatalf("new unique: %v", err)
	}

	tx0 := c.BeginLocalTransaction("seed")
	ctx0 := jacis.ContextWithTx(context.Background(), tx0)
	_ = s.Update(ctx0, "u1", &user{ID: "u1", Email: "a@example.com"})
	if err := c.Commit(tx0); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	tx1 := c.BeginLocalTransaction("conflict")
	ctx1 := jacis.ContextWithTx(context.Background(), tx1)
	_ = s.Update(ctx1, "u2", &user{ID: "u2", Email: "a@example.com"})
	err = c.Commit(tx1)
	if err == nil {
		t.Fatal("expected unique index violation")
	}
	if _, ok := err.(*jacis.UniqueIndexViolationError); !ok {
		t.Fatalf("expected *jacis.UniqueIndexViolationError, got %T: %v", err, err)
	}

	if pk, ok := idx.Lookup(nil, "a@example.com"); !ok || pk != "u1" {
		t.Fatalf("expected a@example.com -> u1, got %v ok=%v", pk, ok)
	}
}

func tagKeys(u *user) []any {
	out := make([]any, len(u.Tags))
	for i, tag := range u.Tags {
		out[i] = tag
	}
	return out
}

func TestMultiIndex(t *testing.T) {
	c, s := newUserStore("users-tags")
	idx, err := NewMulti[string, *user](s, "by-tag", tagKeys)
	if err != nil {
		t.Fatalf("new multi: %v", err)
	}

	tx := c.BeginLocalTransaction("tag")
	ctx := jacis.ContextWithTx(context.Background(), tx)
	_ = s.Update(ctx, "u1", &user{ID: "u1", Tags: []string{"vip", "new"}})
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got := idx.Lookup("vip")
	if len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected [u1] for tag vip, got %v", got)
	}

	tx2 := c.BeginLocalTransaction("retag")
	ctx2 := jacis.ContextWithTx(context.Background(), tx2)
	v, _ := s.Get(ctx2, "u1")
	v.Tags = []string{"new"}
	_ = s.Update(ctx2, "u1", v)
	if err := c.Commit(tx2); err != nil {
		t.Fatalf("commit retag: %v", err)
	}
	if got := idx.Lookup("vip"); len(got) != 0 {
		t.Fatalf("expected vip tag cleared, got %v", got)
	}
	if got := idx.Lookup("new"); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected [u1] for tag new, got %v", got)
	}
}
