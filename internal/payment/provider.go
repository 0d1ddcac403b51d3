package payment

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Intent statuses as reported by the upstream provider.
const (
	IntentSucceeded = "succeeded"
	IntentPending   = "pending"
	IntentFailed    = "failed"
)

// ErrIntentNotFound indicates the provider does not know the intent id.
var ErrIntentNotFound = errors.New("payment intent not found")

// Intent is the minimal view of a provider-side payment intent.
type Intent struct {
	ID     string
	Status string
	Amount string
}

// Provider abstracts the operations required from an upstream payment
// provider. Order confirmation only needs retrieval; intents are opened by
// the storefront client directly against the provider.
type Provider interface {
	RetrieveIntent(ctx context.Context, id string) (Intent, error)
}

// MockProvider is an in-process provider for development and tests. Intent
// ids prefixed with "pi_mock" succeed unless a different status was staged
// via Stage.
type MockProvider struct {
	mu     sync.RWMutex
	staged map[string]Intent
}

// NewMockProvider returns an empty MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{staged: make(map[string]Intent)}
}

// Stage registers a canned intent to be returned by RetrieveIntent.
func (p *MockProvider) Stage(intent Intent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged[intent.ID] = intent
}

// RetrieveIntent implements Provider.
func (p *MockProvider) RetrieveIntent(ctx context.Context, id string) (Intent, error) {
	p.mu.RLock()
	intent, ok := p.staged[id]
	p.mu.RUnlock()
	if ok {
		return intent, nil
	}
	if strings.HasPrefix(id, "pi_mock") {
		return Intent{ID: id, Status: IntentSucceeded}, nil
	}
	return Intent{}, ErrIntentNotFound
}
