// Command jacis-admin runs a small demo container (an "accounts" store
// with a unique email index and a tracked balance-total view) behind the
// admin HTTP surface, grounded on the teacher's cmd/server entrypoint
// shape (flags -> Config -> server.New -> ListenAndServe with signal
// handling).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnohosten/jacis-go/pkg/jacis"
	"github.com/mnohosten/jacis-go/pkg/jacis/authn"
	"github.com/mnohosten/jacis-go/pkg/jacis/index"
	"github.com/mnohosten/jacis-go/pkg/jacis/metrics"
	"github.com/mnohosten/jacis-go/pkg/jacis/server"
	"github.com/mnohosten/jacis-go/pkg/jacis/trackedview"
)

type account struct {
	ID      string
	Email   string
	Balance int
}

func (a *account) Clone() *account {
	cp := *a
	return &cp
}

// balanceTotal is a trackedview.View summing every account's balance.
type balanceTotal struct {
	total int
}

func (v *balanceTotal) TrackModification(old *account, hadOld bool, new *account, hasNew bool) error {
	if hadOld {
		v.total -= old.Balance
	}
	if hasNew {
		v.total += new.Balance
	}
	return nil
}

func (v *balanceTotal) CheckView(all []*account) error {
	sum := 0
	for _, a := range all {
		sum += a.Balance
	}
	if sum != v.total {
		return fmt.Errorf("balance total drifted: tracked=%d actual=%d", v.total, sum)
	}
	return nil
}

func (v *balanceTotal) Clear() { v.total = 0 }

func (v *balanceTotal) Clone() trackedview.View[*account] {
	cp := *v
	return &cp
}

func main() {
	addr := flag.String("addr", ":8089", "admin HTTP listen address")
	adminUser := flag.String("admin-user", "admin", "bootstrap admin username")
	adminPass := flag.String("admin-pass", "", "bootstrap admin password (leave empty to disable auth)")
	flag.Parse()

	container := jacis.NewContainer(nil)
	spec := jacis.DefaultObjectTypeSpec[string, *account, *account]("accounts", jacis.NewCloneableAdapter[*account]())
	accounts := jacis.CreateStore(container, spec)

	if _, err := index.NewUnique[string, *account, *account](accounts, "accounts-by-email", func(a *account) (any, bool) {
		if a.Email == "" {
			return nil, false
		}
		return a.Email, true
	}); err != nil {
		log.Fatalf("jacis-admin: create email index: %v", err)
	}

	if _, err := trackedview.Register[string, *account, *account](accounts, "balance-total", &balanceTotal{}, true); err != nil {
		log.Fatalf("jacis-admin: register tracked view: %v", err)
	}

	collector := metrics.NewCollector()
	container.RegisterTransactionListener(metrics.NewListener(collector))

	var authStore *authn.Store
	if *adminPass != "" {
		authStore = authn.NewStore()
		if err := authStore.CreateUser(*adminUser, *adminPass, authn.RoleAdmin); err != nil {
			log.Fatalf("jacis-admin: create bootstrap admin: %v", err)
		}
	}

	cfg := server.DefaultConfig()
	cfg.Addr = *addr

	srv, err := server.New(cfg, container, authStore, collector)
	if err != nil {
		log.Fatalf("jacis-admin: build server: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("jacis-admin: listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("jacis-admin: server error: %v", err)
	case <-sigCh:
		log.Println("jacis-admin: shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("jacis-admin: shutdown: %v", err)
	}
}
