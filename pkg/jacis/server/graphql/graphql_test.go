package graphql

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mnohosten/jacis-go/pkg/jacis"
	"github.com/mnohosten/jacis-go/pkg/jacis/metrics"
)

type doc struct {
	ID   string
	Body string
}

func (d *doc) Clone() *doc {
	cp := *d
	return &cp
}

func TestQueryStores(t *testing.T) {
	c := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *doc, *doc]("docs", jacis.NewCloneableAdapter[*doc]())
	s := jacis.CreateStore(c, spec)

	tx := c.BeginLocalTransaction("seed")
	ctx := jacis.ContextWithTx(context.Background(), tx)
	_ = s.Update(ctx, "d1", &doc{ID: "d1", Body: "hello"})
	if err := c.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	h, err := NewHandler(c, metrics.NewCollector())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"query":"{ stores { name committedEntries } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct {
		Data struct {
			Stores []struct {
				Name             string `json:"name"`
				CommittedEntries int    `json:"committedEntries"`
			} `json:"stores"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	if len(resp.Data.Stores) != 1 || resp.Data.Stores[0].Name != "docs" || resp.Data.Stores[0].CommittedEntries != 1 {
		t.Fatalf("unexpected stores result: %+v", resp.Data.Stores)
	}
}

func TestQueryEngineNilCollector(t *testing.T) {
	c := jacis.NewContainer(nil)
	h, err := NewHandler(c, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"query":"{ engine { commitTotal } }"}`
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct {
		Data struct {
			Engine *struct {
				CommitTotal int `json:"commitTotal"`
			} `json:"engine"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rec.Body.String())
	}
	if resp.Data.Engine != nil {
		t.Fatalf("expected nil engine field with no collector, got %+v", resp.Data.Engine)
	}
}
