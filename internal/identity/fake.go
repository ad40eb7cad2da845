package identity

import (
	"context"
	"fmt"
	"sync"
)

// FakeExchanger resolves session ids from an in-memory table.
type FakeExchanger struct {
	mu         sync.Mutex
	identities map[string]Identity
	calls      int
}

// NewFakeExchanger constructs an empty FakeExchanger.
func NewFakeExchanger() *FakeExchanger {
	return &FakeExchanger{identities: make(map[string]Identity)}
}

// Add registers the identity returned for externalSessionID.
func (f *FakeExchanger) Add(externalSessionID string, identity Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identities[externalSessionID] = identity
}

// Calls reports how many exchanges were attempted.
func (f *FakeExchanger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeExchanger) Exchange(_ context.Context, externalSessionID string) (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	identity, ok := f.identities[externalSessionID]
	if !ok {
		return Identity{}, fmt.Errorf("%w: unknown session id", ErrExchangeRejected)
	}
	return identity, nil
}
