package confirmation

import (
	"context"
	"sync"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// MemoryStore keeps confirmation state in process memory only. Progress is
// lost on restart: every bot starts unconfirmed again.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]domain.ConfirmationState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.ConfirmationState)}
}

func (m *MemoryStore) LoadConfirmation(_ context.Context, botID string) (domain.ConfirmationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[botID]
	return s, ok, nil
}

func (m *MemoryStore) SaveConfirmation(_ context.Context, state domain.ConfirmationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.BotID] = state
	return nil
}

func (m *MemoryStore) DeleteConfirmation(_ context.Context, botID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, botID)
	return nil
}
