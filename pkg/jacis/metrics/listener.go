package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mnohosten/jacis-go/pkg/jacis"
)

// Listener is a jacis.TransactionListener that feeds a Collector from a
// Container's two-phase demarcation hooks.
type Listener struct {
	collector *Collector

	mu          sync.Mutex
	prepareAt   map[uint64]time.Time
}

// NewListener creates a listener reporting into collector.
func NewListener(collector *Collector) *Listener {
	return &Listener{collector: collector, prepareAt: make(map[uint64]time.Time)}
}

func (l *Listener) BeforePrepare(tx *jacis.TxHandle) error {
	l.mu.Lock()
	l.prepareAt[tx.ID] = time.Now()
	l.mu.Unlock()
	return nil
}

func (l *Listener) AfterPrepare(tx *jacis.TxHandle, err error) {
	l.collector.recordPrepare(err == nil)
	if err != nil {
		l.classify(err)
	}
}

func (l *Listener) BeforeCommit(tx *jacis.TxHandle) error { return nil }

func (l *Listener) AfterCommit(tx *jacis.TxHandle, err error) {
	l.mu.Lock()
	start, ok := l.prepareAt[tx.ID]
	delete(l.prepareAt, tx.ID)
	l.mu.Unlock()
	var d time.Duration
	if ok {
		d = time.Since(start)
	}
	l.collector.recordCommit(err == nil, d)
	if err != nil {
		l.classify(err)
	}
}

func (l *Listener) BeforeRollback(tx *jacis.TxHandle) {}

func (l *Listener) AfterRollback(tx *jacis.TxHandle) {
	l.mu.Lock()
	delete(l.prepareAt, tx.ID)
	l.mu.Unlock()
	l.collector.recordRollback()
}

// IsSynchronous reports that this listener runs inline with every
// prepare/commit/rollback, which it must: it times the interval between
// them.
func (l *Listener) IsSynchronous() bool { return true }

func (l *Listener) classify(err error) {
	switch err.(type) {
	case *jacis.StaleObjectError:
		atomic.AddUint64(&l.collector.staleObjectTotal, 1)
	case *jacis.UniqueIndexViolationError:
		atomic.AddUint64(&l.collector.uniqueViolationTotal, 1)
	case *jacis.ModificationVetoError:
		atomic.AddUint64(&l.collector.vetoTotal, 1)
	}
}
