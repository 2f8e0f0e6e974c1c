package jacis

import (
	"fmt"
	"sync/atomic"
	"time"
)

var nextTxSeq uint64

// TxHandle uniquely identifies a transaction. Equality is by ExternalRef,
// not by ID: a local transaction uses itself as its own external reference,
// while a transaction bridged in from an ambient coordinator (txadapter)
// uses whatever reference that coordinator hands back.
type TxHandle struct {
	ID          uint64
	Description string
	ExternalRef any
	CreatedAt   time.Time
}

// NewTxHandle allocates a handle with a fresh ID. If externalRef is nil the
// handle is its own external reference (the common case for locally
// managed transactions).
func NewTxHandle(description string, externalRef any) *TxHandle {
	h := &TxHandle{
		ID:          atomic.AddUint64(&nextTxSeq, 1),
		Description: description,
		CreatedAt:   time.Now(),
	}
	if externalRef == nil {
		h.ExternalRef = h
	} else {
		h.ExternalRef = externalRef
	}
	return h
}

// Equal compares two handles by external reference, per spec.
func (h *TxHandle) Equal(o *TxHandle) bool {
	if h == nil || o == nil {
		return h == o
	}
	return h.ExternalRef == o.ExternalRef
}

func (h *TxHandle) String() string {
	if h == nil {
		return "<nil-tx>"
	}
	return fmt.Sprintf("Tx#%d(%s)", h.ID, h.Description)
}
