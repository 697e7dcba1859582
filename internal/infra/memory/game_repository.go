package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"trivia-live/internal/app"
)

const pinLength = 6

// PinRegistry reserves join PINs in a shared backend so multiple instances
// never hand out the same code. Optional; nil means in-process only.
type PinRegistry interface {
	Reserve(ctx context.Context, pin, sessionID string) (bool, error)
	Release(ctx context.Context, pin string) error
}

// GameRepository is the in-memory implementation of app.GameRepository:
// live sessions keyed by id with a secondary PIN index.
type GameRepository struct {
	mu       sync.RWMutex
	sessions map[string]*app.GameSession
	byPIN    map[string]string // pin -> session id
	registry PinRegistry
}

func NewGameRepository(registry PinRegistry) *GameRepository {
	return &GameRepository{
		sessions: make(map[string]*app.GameSession),
		byPIN:    make(map[string]string),
		registry: registry,
	}
}

func (r *GameRepository) Add(g *app.GameSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[g.ID()] = g
	if g.PIN() != "" {
		r.byPIN[g.PIN()] = g.ID()
	}
	return nil
}

func (r *GameRepository) Get(sessionID string) (*app.GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.sessions[sessionID]
	return g, ok
}

func (r *GameRepository) GetByPIN(pin string) (*app.GameSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPIN[pin]
	if !ok {
		return nil, false
	}
	g, ok := r.sessions[id]
	return g, ok
}

func (r *GameRepository) Remove(sessionID string) {
	r.mu.Lock()
	g, ok := r.sessions[sessionID]
	var pin string
	if ok {
		pin = g.PIN()
		delete(r.sessions, sessionID)
		delete(r.byPIN, pin)
	}
	r.mu.Unlock()

	if ok && pin != "" && r.registry != nil {
		_ = r.registry.Release(context.Background(), pin)
	}
}

func (r *GameRepository) All() []*app.GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*app.GameSession, 0, len(r.sessions))
	for _, g := range r.sessions {
		all = append(all, g)
	}
	return all
}

// NewPIN generates a 6-digit join code unique among live sessions,
// regenerating on collision. With a shared registry configured the code is
// also reserved there.
func (r *GameRepository) NewPIN(ctx context.Context) (string, error) {
	for attempts := 0; attempts < 20; attempts++ {
		pin, err := randomPIN()
		if err != nil {
			return "", err
		}

		r.mu.RLock()
		_, taken := r.byPIN[pin]
		r.mu.RUnlock()
		if taken {
			continue
		}

		if r.registry != nil {
			reserved, err := r.registry.Reserve(ctx, pin, "")
			if err != nil {
				return "", fmt.Errorf("reserve pin: %w", err)
			}
			if !reserved {
				continue
			}
		}
		return pin, nil
	}
	return "", fmt.Errorf("failed to generate unique pin")
}

func randomPIN() (string, error) {
	code := make([]byte, pinLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
