// Package datastoretest provides a datastore.DataStore that fails on
// demand, used to exercise the exception-2 (not found) and exception-4
// (backend failure) paths in handler and server tests without depending on
// a real backend.
package datastoretest

import (
	"context"
	"sync"

	"github.com/lattice-iot/modbusd/common"
	"github.com/lattice-iot/modbusd/datastore"
)

// FailingStore wraps a datastore.MemoryStore and can be told to fail every
// call, or only calls touching a specific address or quantity.
type FailingStore struct {
	mu             sync.RWMutex
	inner          *datastore.MemoryStore
	failAlways     bool
	failOnAddress  *datastore.Address
	failOnQuantity *int
}

// NewFailingStore returns a FailingStore that behaves like an empty
// MemoryStore until one of its SetFail* methods is called.
func NewFailingStore() *FailingStore {
	return &FailingStore{inner: datastore.NewMemoryStore()}
}

// SetFail makes every subsequent Read/Write fail with ErrBackendFailure.
func (s *FailingStore) SetFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAlways = fail
}

// SetFailOnAddress fails only calls whose starting address (for Write, the
// written address) equals this address; later addresses of a range are not
// checked.
func (s *FailingStore) SetFailOnAddress(address datastore.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnAddress = &address
}

// ClearFailOnAddress removes a previously set SetFailOnAddress condition.
func (s *FailingStore) ClearFailOnAddress() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnAddress = nil
}

// SetFailOnQuantity fails only Read calls requesting exactly this count.
func (s *FailingStore) SetFailOnQuantity(quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnQuantity = &quantity
}

// ClearFailOnQuantity removes a previously set SetFailOnQuantity condition.
func (s *FailingStore) ClearFailOnQuantity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOnQuantity = nil
}

// Seed sets a value directly on the underlying MemoryStore, bypassing fail conditions.
func (s *FailingStore) Seed(ctx context.Context, kind datastore.Kind, address datastore.Address, value interface{}, enc byte) error {
	return s.inner.Write(ctx, kind, address, value, enc)
}

func (s *FailingStore) shouldFail(address datastore.Address, count int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failAlways {
		return true
	}
	if s.failOnAddress != nil && *s.failOnAddress == address {
		return true
	}
	if s.failOnQuantity != nil && *s.failOnQuantity == count {
		return true
	}
	return false
}

func (s *FailingStore) Read(ctx context.Context, kind datastore.Kind, first datastore.Address, count int) ([]datastore.Element, error) {
	if s.shouldFail(first, count) {
		return nil, common.ErrBackendFailure
	}
	return s.inner.Read(ctx, kind, first, count)
}

func (s *FailingStore) Write(ctx context.Context, kind datastore.Kind, address datastore.Address, value interface{}, enc byte) error {
	if s.shouldFail(address, 0) {
		return common.ErrBackendFailure
	}
	return s.inner.Write(ctx, kind, address, value, enc)
}
